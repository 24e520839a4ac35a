// Package metadata looks up bibliographic data for an ISBN so the admin
// catalog form can be prefilled.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mrlokans/elibrary/internal/config"
	"github.com/mrlokans/elibrary/internal/entities"
)

// ErrNotFound means the provider has no record for the ISBN.
var ErrNotFound = errors.New("isbn not found")

// ErrInvalidISBN means the input does not have 10 or 13 digits.
var ErrInvalidISBN = errors.New("invalid isbn")

const (
	userAgent           = "E-Library/1.0 (catalog lookup)"
	maxDescriptionRunes = 1000
)

// Suggestion is a partial book record in the shape of the create-book body.
// Fields the provider does not know are left empty.
type Suggestion struct {
	Title         string            `json:"title,omitempty"`
	Author        string            `json:"author,omitempty"`
	ISBN          string            `json:"isbn"`
	Publisher     string            `json:"publisher,omitempty"`
	PublishedYear int               `json:"published_year,omitempty"`
	Category      entities.Category `json:"category,omitempty"`
	Description   string            `json:"description,omitempty"`
	Pages         int               `json:"pages,omitempty"`
	CoverImage    string            `json:"cover_image,omitempty"`
	Subjects      []string          `json:"subjects,omitempty"`
}

// OpenLibraryClient fetches book metadata from the OpenLibrary API.
type OpenLibraryClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewOpenLibraryClient returns nil when no base URL is configured.
func NewOpenLibraryClient(cfg config.Lookup) *OpenLibraryClient {
	if cfg.OpenLibraryURL == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenLibraryClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.OpenLibraryURL, "/"),
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1), // 1 request per second
	}
}

// LookupISBN resolves an ISBN (hyphens and spaces allowed) to a suggestion.
func (c *OpenLibraryClient) LookupISBN(ctx context.Context, isbn string) (*Suggestion, error) {
	isbn = normalizeISBN(isbn)
	if isbn == "" {
		return nil, ErrInvalidISBN
	}

	var book openLibraryBook
	if err := c.getJSON(ctx, "/isbn/"+isbn+".json", &book); err != nil {
		return nil, err
	}

	s := convertToSuggestion(&book, isbn)

	// Editions reference authors by key only.
	if len(book.Authors) > 0 {
		if name, err := c.fetchAuthorName(ctx, book.Authors[0].Key); err == nil {
			s.Author = name
		}
	}

	return s, nil
}

func (c *OpenLibraryClient) fetchAuthorName(ctx context.Context, authorKey string) (string, error) {
	if authorKey == "" {
		return "", fmt.Errorf("empty author key")
	}
	var author struct {
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, authorKey+".json", &author); err != nil {
		return "", err
	}
	return author.Name, nil
}

func (c *OpenLibraryClient) getJSON(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func convertToSuggestion(book *openLibraryBook, isbn string) *Suggestion {
	s := &Suggestion{
		Title:      book.Title,
		ISBN:       isbn,
		Pages:      book.NumberOfPages,
		CoverImage: fmt.Sprintf("https://covers.openlibrary.org/b/isbn/%s-L.jpg", isbn),
		Subjects:   book.Subjects,
	}

	if book.PublishDate != "" {
		s.PublishedYear = extractYear(book.PublishDate)
	}
	if len(book.Publishers) > 0 {
		s.Publisher = book.Publishers[0]
	}

	switch v := book.Description.(type) {
	case string:
		s.Description = v
	case map[string]any:
		if val, ok := v["value"].(string); ok {
			s.Description = val
		}
	}
	if r := []rune(s.Description); len(r) > maxDescriptionRunes {
		s.Description = string(r[:maxDescriptionRunes])
	}

	if len(s.Subjects) > 10 {
		s.Subjects = s.Subjects[:10]
	}
	s.Category = GuessCategory(book.Subjects)
	return s
}

// normalizeISBN removes hyphens and spaces. It returns "" unless 10 or 13
// characters remain.
func normalizeISBN(isbn string) string {
	isbn = strings.ReplaceAll(isbn, "-", "")
	isbn = strings.ReplaceAll(isbn, " ", "")
	isbn = strings.TrimSpace(isbn)

	if len(isbn) != 10 && len(isbn) != 13 {
		return ""
	}
	return isbn
}

// extractYear tries to extract a 4-digit year from a date string.
func extractYear(dateStr string) int {
	dateStr = strings.TrimSpace(dateStr)
	if len(dateStr) < 4 {
		return 0
	}

	formats := []string{
		"2006",
		"January 2, 2006",
		"Jan 2, 2006",
		"2006-01-02",
		"January 2006",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t.Year()
		}
	}

	// Last resort: find 4 consecutive digits
	for i := 0; i <= len(dateStr)-4; i++ {
		if year, err := strconv.Atoi(dateStr[i : i+4]); err == nil && year > 1000 && year < 3000 {
			return year
		}
	}
	return 0
}

type openLibraryBook struct {
	Key           string      `json:"key"`
	Title         string      `json:"title"`
	Authors       []authorRef `json:"authors"`
	Publishers    []string    `json:"publishers"`
	PublishDate   string      `json:"publish_date"`
	NumberOfPages int         `json:"number_of_pages"`
	Description   any         `json:"description"` // Can be string or {type, value}
	Subjects      []string    `json:"subjects"`
}

type authorRef struct {
	Key string `json:"key"`
}
