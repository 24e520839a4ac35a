package http

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/elibrary/internal/entities"
)

func validBookBody() map[string]any {
	return map[string]any{
		"title":        "The Go Programming Language",
		"author":       "Alan Donovan",
		"isbn":         "978-0134190440",
		"category":     "Technology",
		"total_copies": 3,
		"location":     map[string]string{"shelf": "A1", "section": "Computing"},
	}
}

func TestBooks_CRUD(t *testing.T) {
	e := setupEnv(t)

	w := e.do(http.MethodPost, "/api/books", e.adminToken, validBookBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created entities.Book
	resp := decodeData(t, w, &created)
	assert.Equal(t, "Book added successfully", resp.Message)
	assert.Equal(t, 3, created.AvailableCopies)
	assert.Equal(t, "English", created.Language)
	assert.Equal(t, "A1", created.Location.Shelf)

	path := fmt.Sprintf("/api/books/%d", created.ID)

	w = e.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodPut, path, e.adminToken, map[string]any{"title": "GOPL", "total_copies": 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated entities.Book
	decodeData(t, w, &updated)
	assert.Equal(t, "GOPL", updated.Title)
	assert.Equal(t, "Alan Donovan", updated.Author)
	assert.Equal(t, 5, updated.TotalCopies)
	assert.Equal(t, 5, updated.AvailableCopies)

	w = e.do(http.MethodDelete, path, e.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Book deleted successfully", decode(t, w).Message)

	w = e.do(http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Book not found", decode(t, w).Message)
}

func TestBooks_ListIsPublicAndPaged(t *testing.T) {
	e := setupEnv(t)
	for i := 0; i < 3; i++ {
		e.createBook(t, fmt.Sprintf("978000000000%d", i), 1)
	}

	w := e.do(http.MethodGet, "/api/books?limit=2&page=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list []entities.Book
	resp := decodeData(t, w, &list)
	assert.Len(t, list, 1)
	assert.Equal(t, &Pagination{Page: 2, Limit: 2, Total: 3, Pages: 2}, resp.Pagination)
}

func TestBooks_ListRejectsUnknownCategory(t *testing.T) {
	e := setupEnv(t)

	w := e.do(http.MethodGet, "/api/books?category=Cooking", "", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid category", decode(t, w).Message)
}

func TestBooks_CreateValidation(t *testing.T) {
	e := setupEnv(t)

	body := validBookBody()
	body["isbn"] = "12345"
	delete(body, "title")
	body["total_copies"] = 0

	w := e.do(http.MethodPost, "/api/books", e.adminToken, body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "Validation failed", resp.Message)
	assert.Equal(t, "ISBN must have 10 or 13 digits", resp.Errors["isbn"])
	assert.Equal(t, "title is required", resp.Errors["title"])
	assert.Contains(t, resp.Errors, "total_copies")
}

func TestBooks_DuplicateISBN(t *testing.T) {
	e := setupEnv(t)
	e.createBook(t, "978-0134190440", 1)

	w := e.do(http.MethodPost, "/api/books", e.adminToken, validBookBody())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Book with this ISBN already exists", decode(t, w).Message)
}

func TestBooks_WritesRequireAdmin(t *testing.T) {
	e := setupEnv(t)
	book := e.createBook(t, "9780000000001", 1)
	path := fmt.Sprintf("/api/books/%d", book.ID)

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/api/books", "", validBookBody()).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPost, "/api/books", e.memberToken, validBookBody()).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPut, path, e.memberToken, map[string]any{"title": "x"}).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodDelete, path, e.memberToken, nil).Code)
}

func TestBooks_DeleteRefusedWhileOnLoan(t *testing.T) {
	e := setupEnv(t)
	book := e.createBook(t, "9780000000001", 1)

	w := e.do(http.MethodPost, "/api/borrow", e.memberToken, map[string]any{"book_id": book.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(http.MethodDelete, fmt.Sprintf("/api/books/%d", book.ID), e.adminToken, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Message, "Cannot delete book with active borrows")
}
