package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tripsplit/tripsplit/internal/apiresponse"
	"github.com/tripsplit/tripsplit/internal/expenses"
	"github.com/tripsplit/tripsplit/internal/groups"
	"github.com/tripsplit/tripsplit/internal/models"
)

type CreateGroupRequest struct {
	Name           string `json:"name" binding:"required" validate:"max=100"`
	Description    string `json:"description" validate:"max=500"`
	Currency       string `json:"currency" binding:"required" validate:"currency"`
	DigestSchedule string `json:"digest_schedule"` // Cron expression, optional
}

type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type MemberDetail struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type GroupDetail struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Currency       string         `json:"currency"`
	DigestSchedule string         `json:"digest_schedule,omitempty"`
	NextDigestAt   *time.Time     `json:"next_digest_at,omitempty"`
	CreatedByID    string         `json:"created_by_id"`
	CreatedAt      time.Time      `json:"created_at"`
	Members        []MemberDetail `json:"members,omitempty"`
}

func groupDetail(group *models.Group) GroupDetail {
	detail := GroupDetail{
		ID:             group.ID,
		Name:           group.Name,
		Description:    group.Description,
		Currency:       group.Currency,
		DigestSchedule: group.DigestSchedule,
		NextDigestAt:   group.NextDigestAt,
		CreatedByID:    group.CreatedByID,
		CreatedAt:      group.CreatedAt,
	}
	for _, m := range group.Members {
		detail.Members = append(detail.Members, memberDetail(&m))
	}
	return detail
}

func memberDetail(m *models.GroupMember) MemberDetail {
	return MemberDetail{
		UserID:   m.UserID,
		Name:     m.User.Name,
		Email:    m.User.Email,
		Role:     m.Role,
		JoinedAt: m.CreatedAt,
	}
}

// respondServiceError maps domain errors onto envelope error codes
func (s *Server) respondServiceError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, groups.ErrNotFound):
		apiresponse.Fail(c, http.StatusNotFound, apiresponse.CodeNotFound, "Group not found", "")
	case errors.Is(err, expenses.ErrNotFound):
		apiresponse.Fail(c, http.StatusNotFound, apiresponse.CodeNotFound, "Expense not found", "")
	case errors.Is(err, groups.ErrUserNotFound):
		apiresponse.Fail(c, http.StatusNotFound, apiresponse.CodeNotFound, "User not found", err.Error())
	case errors.Is(err, groups.ErrForbidden), errors.Is(err, expenses.ErrForbidden):
		apiresponse.Fail(c, http.StatusForbidden, apiresponse.CodeForbidden, "Forbidden", err.Error())
	case errors.Is(err, groups.ErrAlreadyMember):
		apiresponse.Fail(c, http.StatusConflict, apiresponse.CodeConflict, "Already a member", err.Error())
	case errors.Is(err, groups.ErrInvalidSchedule),
		errors.Is(err, expenses.ErrInvalidSplit),
		errors.Is(err, expenses.ErrNotMember),
		errors.Is(err, expenses.ErrCurrencyMismatch):
		apiresponse.Fail(c, http.StatusBadRequest, apiresponse.CodeValidation, "Validation failed", err.Error())
	default:
		s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Failed to " + action)
		apiresponse.Fail(c, http.StatusInternalServerError, apiresponse.CodeInternal, "Internal server error", "")
	}
}

// @Router /api/groups [get]
// @Success 200 {object} apiresponse.Paginated[GroupDetail]
func (s *Server) listGroups(c *gin.Context) {
	sessionData, _ := GetSessionData(c)
	page := apiresponse.ParsePageRequest(c)

	list, total, err := s.groupsService.ListForUser(c.Request.Context(), sessionData.UserID, page.Offset(), page.Limit)
	if err != nil {
		s.respondServiceError(c, err, "list groups")
		return
	}

	details := make([]GroupDetail, len(list))
	for i := range list {
		details[i] = groupDetail(&list[i])
	}
	apiresponse.Page(c, "Groups", details, page, total)
}

// @Router /api/groups [post]
// @Param request body CreateGroupRequest true "Create group request"
// @Success 201 {object} GroupDetail
func (s *Server) createGroup(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponse.Fail(c, http.StatusBadRequest, apiresponse.CodeValidation, "Invalid request body", err.Error())
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		apiresponse.Fail(c, http.StatusBadRequest, apiresponse.CodeValidation, "Validation failed", err.Error())
		return
	}

	group, err := s.groupsService.Create(c.Request.Context(), groups.CreateGroupParams{
		Name:           req.Name,
		Description:    req.Description,
		Currency:       req.Currency,
		DigestSchedule: req.DigestSchedule,
		CreatedByID:    sessionData.UserID,
	})
	if err != nil {
		s.respondServiceError(c, err, "create group")
		return
	}

	apiresponse.OK(c, http.StatusCreated, "Group created", groupDetail(group))
}

// @Router /api/groups/{id} [get]
// @Param id path string true "Group ID"
// @Success 200 {object} GroupDetail
func (s *Server) getGroup(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	group, err := s.groupsService.GetForMember(c.Request.Context(), c.Param("id"), sessionData.UserID)
	if err != nil {
		s.respondServiceError(c, err, "get group")
		return
	}

	apiresponse.OK(c, http.StatusOK, "Group", groupDetail(group))
}

// @Router /api/groups/{id}/members [post]
// @Param id path string true "Group ID"
// @Param request body AddMemberRequest true "Add member request"
// @Success 201 {object} MemberDetail
func (s *Server) addMember(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponse.Fail(c, http.StatusBadRequest, apiresponse.CodeValidation, "Invalid request body", err.Error())
		return
	}

	member, err := s.groupsService.AddMember(c.Request.Context(), c.Param("id"), sessionData.UserID, req.Email)
	if err != nil {
		s.respondServiceError(c, err, "add member")
		return
	}

	apiresponse.OK(c, http.StatusCreated, "Member added", memberDetail(member))
}
