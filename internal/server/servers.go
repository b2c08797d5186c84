package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	provisioningdomain "github.com/smallbiznis/cloudnest/internal/provisioning/domain"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
)

type listServersQuery struct {
	pagination.Pagination
	UserID string `form:"user_id"`
	Status string `form:"status"`
}

func (s *Server) ListMyServers(c *gin.Context) {
	user, _ := currentUser(c)

	var query listServersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.serverSvc.List(c.Request.Context(), provisioningdomain.ListServersRequest{
		ListFilter: provisioningdomain.ListFilter{
			UserID: user.ID,
			Status: provisioningdomain.Status(strings.TrimSpace(query.Status)),
		},
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMyServer(c *gin.Context) {
	user, _ := currentUser(c)

	server, err := s.serverSvc.GetForUser(c.Request.Context(), user.ID, pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": server})
}

type serverControlRequest struct {
	Action  string `json:"action"`
	OS      string `json:"os"`
	Message string `json:"message"`
}

// RequestServerControl files a reboot or reinstall request with support.
func (s *Server) RequestServerControl(c *gin.Context) {
	user, _ := currentUser(c)

	var req serverControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ticketID, err := s.serverSvc.RequestControl(c.Request.Context(), provisioningdomain.ControlRequest{
		UserID:   user.ID,
		ServerID: pathID(c),
		Action:   provisioningdomain.ControlAction(strings.TrimSpace(req.Action)),
		OS:       strings.TrimSpace(req.OS),
		Message:  strings.TrimSpace(req.Message),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"ticket_id": ticketID.String()}})
}

type provisionServerRequest struct {
	OrderID string `json:"order_id"`
	Payment string `json:"payment"`
	provisioningdomain.Credentials
}

func (s *Server) ProvisionServer(c *gin.Context) {
	var req provisionServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		AbortWithError(c, newValidationError("order_id", "required", "order_id is required"))
		return
	}

	server, err := s.serverSvc.Provision(c.Request.Context(), provisioningdomain.ProvisionRequest{
		OrderID:     strings.TrimSpace(req.OrderID),
		Credentials: req.Credentials,
		Payment:     provisioningdomain.ProvisionPayment(strings.TrimSpace(req.Payment)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": server})
}

func (s *Server) ListServers(c *gin.Context) {
	var query listServersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	userID, err := parseOptionalSnowflakeID(query.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user_id"))
		return
	}

	resp, err := s.serverSvc.List(c.Request.Context(), provisioningdomain.ListServersRequest{
		ListFilter: provisioningdomain.ListFilter{
			UserID: userID,
			Status: provisioningdomain.Status(strings.TrimSpace(query.Status)),
		},
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateServerCredentials(c *gin.Context) {
	var req provisioningdomain.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	server, err := s.serverSvc.UpdateCredentials(c.Request.Context(), pathID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": server})
}

func (s *Server) SendServerCredentials(c *gin.Context) {
	if err := s.serverSvc.ResendCredentials(c.Request.Context(), pathID(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"queued": true}})
}

type serverTransitionRequest struct {
	InvoiceID string `json:"invoice_id"`
	Reason    string `json:"reason"`
}

func (s *Server) SuspendServer(c *gin.Context) {
	var req serverTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	server, err := s.serverSvc.Suspend(c.Request.Context(), pathID(c), strings.TrimSpace(req.InvoiceID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": server})
}

func (s *Server) UnsuspendServer(c *gin.Context) {
	server, err := s.serverSvc.Unsuspend(c.Request.Context(), pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": server})
}

func (s *Server) CancelServer(c *gin.Context) {
	var req serverTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	server, err := s.serverSvc.Cancel(c.Request.Context(), pathID(c), strings.TrimSpace(req.InvoiceID), strings.TrimSpace(req.Reason))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": server})
}
