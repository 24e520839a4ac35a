package http

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/elibrary/internal/apperrors"
	"github.com/mrlokans/elibrary/internal/auth"
	"github.com/mrlokans/elibrary/internal/catalog"
	"github.com/mrlokans/elibrary/internal/database/books"
	"github.com/mrlokans/elibrary/internal/entities"
	"github.com/mrlokans/elibrary/internal/metadata"
)

type locationRequest struct {
	Shelf   string `json:"shelf" binding:"max=50"`
	Section string `json:"section" binding:"max=50"`
}

func (l locationRequest) toEntity() entities.ShelfLocation {
	return entities.ShelfLocation{Shelf: l.Shelf, Section: l.Section}
}

type createBookRequest struct {
	Title         string            `json:"title" binding:"required,max=200"`
	Author        string            `json:"author" binding:"required,max=100"`
	ISBN          string            `json:"isbn" binding:"required,isbn"`
	Publisher     string            `json:"publisher" binding:"max=100"`
	PublishedYear int               `json:"published_year"`
	Category      entities.Category `json:"category" binding:"required"`
	Description   string            `json:"description" binding:"max=1000"`
	TotalCopies   int               `json:"total_copies" binding:"required,min=1"`
	Language      string            `json:"language" binding:"max=50"`
	Pages         int               `json:"pages" binding:"min=0"`
	CoverImage    string            `json:"cover_image"`
	Location      locationRequest   `json:"location"`
}

// updateBookRequest is a partial edit. available_copies is not accepted;
// it follows total_copies.
type updateBookRequest struct {
	Title         *string            `json:"title" binding:"omitempty,max=200"`
	Author        *string            `json:"author" binding:"omitempty,max=100"`
	ISBN          *string            `json:"isbn" binding:"omitempty,isbn"`
	Publisher     *string            `json:"publisher" binding:"omitempty,max=100"`
	PublishedYear *int               `json:"published_year"`
	Category      *entities.Category `json:"category"`
	Description   *string            `json:"description" binding:"omitempty,max=1000"`
	TotalCopies   *int               `json:"total_copies" binding:"omitempty,min=1"`
	Language      *string            `json:"language" binding:"omitempty,max=50"`
	Pages         *int               `json:"pages" binding:"omitempty,min=0"`
	CoverImage    *string            `json:"cover_image"`
	Location      *locationRequest   `json:"location"`
}

type BooksController struct {
	catalog *catalog.Service
	lookup  ISBNLookup
}

func NewBooksController(catalog *catalog.Service, lookup ISBNLookup) *BooksController {
	return &BooksController{catalog: catalog, lookup: lookup}
}

// List pages through the active catalog.
// GET /api/books?search=&category=&available=true&page=&limit=
func (bc *BooksController) List(c *gin.Context) {
	page, limit := pageParams(c)
	list, total, err := bc.catalog.List(c.Request.Context(), books.Filter{
		Search:        c.Query("search"),
		Category:      entities.Category(c.Query("category")),
		AvailableOnly: c.Query("available") == "true",
		Page:          page,
		Limit:         limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, list, page, limit, total)
}

// GET /api/books/:id
func (bc *BooksController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	book, err := bc.catalog.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, book)
}

// POST /api/books
func (bc *BooksController) Create(c *gin.Context) {
	var req createBookRequest
	if !bindJSON(c, &req) {
		return
	}

	book, err := bc.catalog.Create(c.Request.Context(), auth.GetActor(c), catalog.BookInput{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		Publisher:     req.Publisher,
		PublishedYear: req.PublishedYear,
		Category:      req.Category,
		Description:   req.Description,
		TotalCopies:   req.TotalCopies,
		Language:      req.Language,
		Pages:         req.Pages,
		CoverImage:    req.CoverImage,
		Location:      req.Location.toEntity(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, "Book added successfully", book)
}

// PUT /api/books/:id
func (bc *BooksController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req updateBookRequest
	if !bindJSON(c, &req) {
		return
	}

	update := catalog.UpdateRequest{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		Publisher:     req.Publisher,
		PublishedYear: req.PublishedYear,
		Category:      req.Category,
		Description:   req.Description,
		TotalCopies:   req.TotalCopies,
		Language:      req.Language,
		Pages:         req.Pages,
		CoverImage:    req.CoverImage,
	}
	if req.Location != nil {
		loc := req.Location.toEntity()
		update.Location = &loc
	}

	book, err := bc.catalog.Update(c.Request.Context(), auth.GetActor(c), id, update)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Book updated successfully", book)
}

// DELETE /api/books/:id
func (bc *BooksController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := bc.catalog.Delete(c.Request.Context(), auth.GetActor(c), id); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Book deleted successfully", nil)
}

// Lookup suggests catalog fields for an ISBN and reports whether the
// library already holds it.
// GET /api/isbn/:isbn
func (bc *BooksController) Lookup(c *gin.Context) {
	suggestion, err := bc.lookup.LookupISBN(c.Request.Context(), c.Param("isbn"))
	switch {
	case errors.Is(err, metadata.ErrInvalidISBN):
		respondBadRequest(c, "ISBN must have 10 or 13 digits")
		return
	case errors.Is(err, metadata.ErrNotFound):
		respondError(c, apperrors.NotFound("No book found for this ISBN"))
		return
	case err != nil:
		respondError(c, apperrors.Internal("ISBN lookup failed", err))
		return
	}

	existing, err := bc.catalog.FindByISBN(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"suggestion": suggestion, "existing": existing})
}
