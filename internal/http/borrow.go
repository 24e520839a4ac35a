package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/elibrary/internal/apperrors"
	"github.com/mrlokans/elibrary/internal/auth"
	"github.com/mrlokans/elibrary/internal/circulation"
	"github.com/mrlokans/elibrary/internal/entities"
)

type borrowRequest struct {
	BookID uint `json:"book_id" binding:"required"`
	// UserID lets an admin issue a book on behalf of a member.
	UserID  uint   `json:"user_id"`
	DueDate string `json:"due_date"` // RFC 3339 or YYYY-MM-DD
	Notes   string `json:"notes" binding:"max=500"`
}

type returnRequest struct {
	Condition entities.BookCondition `json:"condition"`
	Notes     string                 `json:"notes" binding:"max=500"`
	Fine      *float64               `json:"fine" binding:"omitempty,min=0"`
}

// parseDueDate accepts a full timestamp or a bare date. A bare date means
// midnight UTC of that day.
func parseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, apperrors.ValidationFields("Validation failed",
			map[string]string{"due_date": "Due date must be a valid date"})
	}
	return t, nil
}

type BorrowController struct {
	circulation *circulation.Service
}

func NewBorrowController(circulation *circulation.Service) *BorrowController {
	return &BorrowController{circulation: circulation}
}

// Borrow lends a copy to the caller, or to user_id when an admin asks.
// POST /api/borrow
func (bc *BorrowController) Borrow(c *gin.Context) {
	var req borrowRequest
	if !bindJSON(c, &req) {
		return
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		respondError(c, err)
		return
	}

	record, err := bc.circulation.Borrow(c.Request.Context(), auth.GetActor(c), circulation.BorrowRequest{
		UserID:  req.UserID,
		BookID:  req.BookID,
		DueDate: due,
		Notes:   req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, "Book borrowed successfully", record)
}

// Return is mounted as both /api/borrow/return/:id and /api/borrow/:id/return.
// The body is optional.
func (bc *BorrowController) Return(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req returnRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	record, err := bc.circulation.Return(c.Request.Context(), auth.GetActor(c), id, circulation.ReturnRequest{
		Condition:  req.Condition,
		Notes:      req.Notes,
		ManualFine: req.Fine,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Book returned successfully", record)
}

// Renew is mounted as both /api/borrow/renew/:id and /api/borrow/:id/renew.
func (bc *BorrowController) Renew(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	record, err := bc.circulation.Renew(c.Request.Context(), auth.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Book renewed successfully", record)
}

// POST /api/borrow/:id/pay-fine
func (bc *BorrowController) PayFine(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	record, err := bc.circulation.PayFine(c.Request.Context(), auth.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Fine marked as paid", record)
}

// GET /api/borrow/my-books
func (bc *BorrowController) MyBooks(c *gin.Context) {
	records, err := bc.circulation.MyBooks(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, records)
}

// All pages through every record.
// GET /api/borrow/all?status=&overdue=true&page=&limit=
func (bc *BorrowController) All(c *gin.Context) {
	status := entities.BorrowStatus(c.Query("status"))
	switch status {
	case "", entities.BorrowStatusBorrowed, entities.BorrowStatusReturned, entities.BorrowStatusOverdue:
	default:
		respondBadRequest(c, "Invalid status")
		return
	}

	page, limit := pageParams(c)
	records, total, err := bc.circulation.List(c.Request.Context(), circulation.ListFilter{
		Status:      status,
		OverdueOnly: c.Query("overdue") == "true",
		Page:        page,
		Limit:       limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, records, page, limit, total)
}

// GET /api/borrow/overdue
func (bc *BorrowController) Overdue(c *gin.Context) {
	records, err := bc.circulation.Overdue(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, records)
}
