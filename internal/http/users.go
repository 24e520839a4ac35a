package http

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/elibrary/internal/auth"
	"github.com/mrlokans/elibrary/internal/database/users"
	"github.com/mrlokans/elibrary/internal/entities"
	"github.com/mrlokans/elibrary/internal/members"
)

type profileRequest struct {
	Name    *string `json:"name" binding:"omitempty,min=2,max=100"`
	Phone   *string `json:"phone"`
	Address *string `json:"address" binding:"omitempty,max=200"`
}

type adminUserRequest struct {
	Name      *string        `json:"name" binding:"omitempty,min=2,max=100"`
	Email     *string        `json:"email" binding:"omitempty,email"`
	Role      *entities.Role `json:"role" binding:"omitempty,oneof=admin user"`
	StudentID *string        `json:"student_id" binding:"omitempty,max=50"`
	Phone     *string        `json:"phone"`
	Address   *string        `json:"address" binding:"omitempty,max=200"`
}

type UsersController struct {
	members *members.Service
}

func NewUsersController(members *members.Service) *UsersController {
	return &UsersController{members: members}
}

// List pages through accounts.
// GET /api/users?search=&role=&active=&page=&limit=
func (uc *UsersController) List(c *gin.Context) {
	page, limit := pageParams(c)
	filter := users.Filter{
		Search: c.Query("search"),
		Role:   entities.Role(c.Query("role")),
		Page:   page,
		Limit:  limit,
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			respondBadRequest(c, "Invalid active filter")
			return
		}
		filter.Active = &active
	}

	list, total, err := uc.members.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, list, page, limit, total)
}

// Get returns an account with its recent borrow history.
// GET /api/users/:id
func (uc *UsersController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	profile, err := uc.members.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, profile)
}

// UpdateProfile edits the caller's own contact details.
// PUT /api/users/profile
func (uc *UsersController) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := uc.members.UpdateProfile(c.Request.Context(), auth.GetActor(c), members.ProfileUpdate{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Profile updated successfully", user)
}

// PUT /api/users/:id
func (uc *UsersController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req adminUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := uc.members.Update(c.Request.Context(), auth.GetActor(c), id, members.AdminUpdate{
		Name:      req.Name,
		Email:     req.Email,
		Role:      req.Role,
		StudentID: req.StudentID,
		Phone:     req.Phone,
		Address:   req.Address,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "User updated successfully", user)
}

// PUT /api/users/:id/toggle-status
func (uc *UsersController) ToggleStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	user, err := uc.members.ToggleStatus(c.Request.Context(), auth.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	state := "deactivated"
	if user.IsActive {
		state = "activated"
	}
	respondMessage(c, "User "+state+" successfully", user)
}

// GET /api/users/stats/dashboard
func (uc *UsersController) Dashboard(c *gin.Context) {
	stats, err := uc.members.DashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, stats)
}
