package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/elibrary/internal/auth"
	"github.com/mrlokans/elibrary/internal/entities"
	"github.com/mrlokans/elibrary/internal/reviews"
)

type createReviewRequest struct {
	BookID  uint   `json:"book_id" binding:"required"`
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Title   string `json:"title" binding:"required,min=5,max=100"`
	Comment string `json:"comment" binding:"required,min=10,max=1000"`
}

type helpfulRequest struct {
	Helpful *bool `json:"helpful"` // defaults to true
}

type reportRequest struct {
	Reason entities.ReportReason `json:"reason" binding:"required,oneof=inappropriate spam offensive fake other"`
}

type ReviewsController struct {
	reviews *reviews.Service
}

func NewReviewsController(reviews *reviews.Service) *ReviewsController {
	return &ReviewsController{reviews: reviews}
}

// ByBook pages through the approved reviews of a book.
// GET /api/reviews/book/:bookId
func (rc *ReviewsController) ByBook(c *gin.Context) {
	bookID, ok := parseIDParam(c, "bookId")
	if !ok {
		return
	}
	page, limit := pageParams(c)
	list, total, err := rc.reviews.ListByBook(c.Request.Context(), bookID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, list, page, limit, total)
}

// GET /api/reviews/book/:bookId/stats
func (rc *ReviewsController) Stats(c *gin.Context) {
	bookID, ok := parseIDParam(c, "bookId")
	if !ok {
		return
	}
	stats, err := rc.reviews.Stats(c.Request.Context(), bookID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, stats)
}

// GET /api/reviews/my-reviews
func (rc *ReviewsController) Mine(c *gin.Context) {
	list, err := rc.reviews.ListByUser(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, list)
}

// POST /api/reviews
func (rc *ReviewsController) Create(c *gin.Context) {
	var req createReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	review, err := rc.reviews.Create(c.Request.Context(), auth.GetActor(c), reviews.CreateRequest{
		BookID:  req.BookID,
		Rating:  req.Rating,
		Title:   req.Title,
		Comment: req.Comment,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, "Review added successfully", review)
}

// POST /api/reviews/:id/helpful
func (rc *ReviewsController) Helpful(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req helpfulRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	helpful := req.Helpful == nil || *req.Helpful

	count, err := rc.reviews.MarkHelpful(c.Request.Context(), auth.GetActor(c), id, helpful)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Thank you for your feedback", gin.H{"helpful_count": count})
}

// POST /api/reviews/:id/report
func (rc *ReviewsController) Report(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req reportRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := rc.reviews.Report(c.Request.Context(), auth.GetActor(c), id, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Review reported successfully", nil)
}

// DELETE /api/reviews/:id
func (rc *ReviewsController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := rc.reviews.Delete(c.Request.Context(), auth.GetActor(c), id); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Review deleted successfully", nil)
}
