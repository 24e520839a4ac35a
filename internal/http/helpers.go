package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/mrlokans/elibrary/internal/apperrors"
	"github.com/mrlokans/elibrary/internal/database"
)

// contextKeyExposeErrors marks requests whose 500 responses may carry the
// underlying error text. Only set in development.
const contextKeyExposeErrors = "expose_errors"

// --- Response Types ---

// Response is the envelope of every API response.
type Response struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message,omitempty"`
	Data       any               `json:"data,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
	Pagination *Pagination       `json:"pagination,omitempty"`
	Error      string            `json:"error,omitempty"` // development only
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func newPagination(page, limit int, total int64) *Pagination {
	page, limit = database.NormalizePage(page, limit)
	pages := int((total + int64(limit) - 1) / int64(limit))
	return &Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// --- Success Response Helpers ---

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func respondMessage(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message, Data: data})
}

func respondCreated(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, Response{Success: true, Message: message, Data: data})
}

func respondPage(c *gin.Context, data any, page, limit int, total int64) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Pagination: newPagination(page, limit, total)})
}

// --- Error Response Helpers ---

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{Message: message})
}

// respondError maps a service error onto a status code. Anything that is not
// an *apperrors.Error is treated as internal: logged, and reported to the
// client as "Server error".
func respondError(c *gin.Context, err error) {
	ae, ok := apperrors.As(err)
	if !ok {
		ae = &apperrors.Error{Kind: apperrors.KindInternal, Message: "Server error", Err: err}
	}

	status := statusFor(ae.Kind)
	body := Response{Message: ae.Message, Errors: ae.Fields}
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", c.GetString(contextKeyRequestID),
			"error", err)
		body.Message = "Server error"
		if c.GetBool(contextKeyExposeErrors) {
			body.Error = err.Error()
		}
	}
	c.JSON(status, body)
}

func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation, apperrors.KindConflict:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// --- Request Parsing ---

// bindJSON decodes the body into req and runs its binding rules. On failure
// it writes a 400 with per-field messages and returns false.
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
		c.JSON(http.StatusBadRequest, Response{Message: "Validation failed", Errors: fields})
		return false
	}

	respondBadRequest(c, "Invalid request body")
	return false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Please include a valid email"
	case "isbn":
		return "ISBN must have 10 or 13 digits"
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

// parseIDParam extracts an unsigned integer ID from the URL path.
// On failure it responds with a 400 and returns 0, false.
func parseIDParam(c *gin.Context, paramName string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(paramName), 10, 32)
	if err != nil || id == 0 {
		respondBadRequest(c, "Invalid "+paramName)
		return 0, false
	}
	return uint(id), true
}

// pageParams reads ?page= and ?limit=, falling back to the defaults.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return database.NormalizePage(page, limit)
}
