package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	userdomain "github.com/smallbiznis/cloudnest/internal/user/domain"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
)

func (s *Server) ListUsers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Role  string `form:"role"`
		Email string `form:"email"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.userSvc.List(c.Request.Context(), userdomain.ListUsersRequest{
		ListFilter: userdomain.ListFilter{
			Role:  userdomain.Role(strings.TrimSpace(query.Role)),
			Email: strings.TrimSpace(query.Email),
		},
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateUserRequest struct {
	FullName *string `json:"full_name"`
	Company  *string `json:"company"`
	Phone    *string `json:"phone"`
	Role     *string `json:"role"`
	Verified *bool   `json:"verified"`
}

// UpdateUser edits a profile. Only a super admin may change roles.
func (s *Server) UpdateUser(c *gin.Context) {
	staff, _ := currentUser(c)

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var role *userdomain.Role
	if req.Role != nil {
		if staff.Role != userdomain.RoleSuperAdmin {
			AbortWithError(c, ErrForbidden)
			return
		}
		r := userdomain.Role(strings.TrimSpace(*req.Role))
		role = &r
	}

	user, err := s.userSvc.Update(c.Request.Context(), userdomain.UpdateUserRequest{
		ID:       pathID(c),
		FullName: req.FullName,
		Company:  req.Company,
		Phone:    req.Phone,
		Role:     role,
		Verified: req.Verified,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}

func (s *Server) GetProfile(c *gin.Context) {
	user, _ := currentUser(c)
	c.JSON(http.StatusOK, gin.H{"data": user})
}

type updateProfileRequest struct {
	FullName *string `json:"full_name"`
	Company  *string `json:"company"`
}

// UpdateProfile lets a customer edit their own name and company. A blank
// full_name leaves the name unchanged.
func (s *Server) UpdateProfile(c *gin.Context) {
	user, _ := currentUser(c)

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.FullName != nil && strings.TrimSpace(*req.FullName) == "" {
		req.FullName = nil
	}

	updated, err := s.userSvc.Update(c.Request.Context(), userdomain.UpdateUserRequest{
		ID:       user.ID.String(),
		FullName: req.FullName,
		Company:  req.Company,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": updated})
}
