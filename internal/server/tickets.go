package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	supportdomain "github.com/smallbiznis/cloudnest/internal/support/domain"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
)

type openTicketRequest struct {
	Subject  string `json:"subject"`
	Priority string `json:"priority"`
	Message  string `json:"message"`
	OrderID  string `json:"order_id"`
	ServerID string `json:"server_id"`
}

func (s *Server) OpenTicket(c *gin.Context) {
	user, _ := currentUser(c)

	var req openTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	orderID, err := parseOptionalSnowflakeID(req.OrderID)
	if err != nil {
		AbortWithError(c, newValidationError("order_id", "invalid_order_id", "invalid order_id"))
		return
	}
	serverID, err := parseOptionalSnowflakeID(req.ServerID)
	if err != nil {
		AbortWithError(c, newValidationError("server_id", "invalid_server_id", "invalid server_id"))
		return
	}

	ticket, err := s.supportSvc.Open(c.Request.Context(), supportdomain.OpenRequest{
		UserID:   user.ID,
		OrderID:  optionalID(orderID),
		ServerID: optionalID(serverID),
		Subject:  strings.TrimSpace(req.Subject),
		Priority: supportdomain.Priority(strings.TrimSpace(req.Priority)),
		Message:  strings.TrimSpace(req.Message),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": ticket})
}

type listTicketsQuery struct {
	pagination.Pagination
	UserID string `form:"user_id"`
	Status string `form:"status"`
}

func (s *Server) ListMyTickets(c *gin.Context) {
	user, _ := currentUser(c)

	var query listTicketsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.supportSvc.List(c.Request.Context(), supportdomain.ListTicketsRequest{
		UserID:     user.ID,
		Status:     supportdomain.Status(strings.TrimSpace(query.Status)),
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMyTicket(c *gin.Context) {
	user, _ := currentUser(c)

	thread, err := s.supportSvc.GetForUser(c.Request.Context(), user.ID, pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": thread})
}

type ticketMessageRequest struct {
	Body string `json:"body"`
}

func (s *Server) ReplyToMyTicket(c *gin.Context) {
	s.replyToTicket(c, false)
}

func (s *Server) ReplyToTicket(c *gin.Context) {
	s.replyToTicket(c, true)
}

func (s *Server) replyToTicket(c *gin.Context, staff bool) {
	user, _ := currentUser(c)

	var req ticketMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	msg, err := s.supportSvc.Reply(c.Request.Context(), supportdomain.ReplyRequest{
		TicketID: pathID(c),
		UserID:   user.ID,
		Body:     strings.TrimSpace(req.Body),
		IsStaff:  staff,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": msg})
}

func (s *Server) ListTickets(c *gin.Context) {
	var query listTicketsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	userID, err := parseOptionalSnowflakeID(query.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user_id"))
		return
	}

	resp, err := s.supportSvc.List(c.Request.Context(), supportdomain.ListTicketsRequest{
		UserID:     userID,
		Status:     supportdomain.Status(strings.TrimSpace(query.Status)),
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTicket(c *gin.Context) {
	thread, err := s.supportSvc.Get(c.Request.Context(), pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": thread})
}

func (s *Server) SetTicketStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ticket, err := s.supportSvc.SetStatus(c.Request.Context(), pathID(c), supportdomain.Status(strings.TrimSpace(req.Status)))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ticket})
}

func optionalID(id snowflake.ID) *snowflake.ID {
	if id == 0 {
		return nil
	}
	return &id
}
