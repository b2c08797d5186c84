package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	settingsdomain "github.com/smallbiznis/cloudnest/internal/settings/domain"
)

// GetPublicSettings serves the storefront copy and payment instructions.
func (s *Server) GetPublicSettings(c *gin.Context) {
	settings, err := s.settingsSvc.Get(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": settings})
}

func (s *Server) GetSettings(c *gin.Context) {
	settings, err := s.settingsSvc.Get(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": settings})
}

func (s *Server) UpdateSettings(c *gin.Context) {
	var req settingsdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	settings, err := s.settingsSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": settings})
}

// SubmitContact accepts the storefront contact form.
func (s *Server) SubmitContact(c *gin.Context) {
	var req settingsdomain.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	msg, err := s.settingsSvc.SubmitContact(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{"id": msg.ID.String()}})
}
