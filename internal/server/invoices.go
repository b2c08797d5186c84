package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/cloudnest/internal/payment/domain"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
)

type listInvoicesQuery struct {
	pagination.Pagination
	UserID string `form:"user_id"`
	Status string `form:"status"`
	Kind   string `form:"kind"`
}

func (s *Server) ListMyInvoices(c *gin.Context) {
	user, _ := currentUser(c)

	var query listInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoicesRequest{
		ListFilter: invoicedomain.ListFilter{
			UserID: user.ID,
			Status: invoicedomain.Status(strings.TrimSpace(query.Status)),
			Kind:   invoicedomain.Kind(strings.TrimSpace(query.Kind)),
		},
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMyInvoice(c *gin.Context) {
	user, _ := currentUser(c)

	inv, err := s.invoiceSvc.GetForUser(c.Request.Context(), user.ID, pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": inv})
}

func (s *Server) PayInvoiceWithWallet(c *gin.Context) {
	user, _ := currentUser(c)

	res, err := s.paymentSvc.PayWithWallet(c.Request.Context(), user.ID, pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

type paymentProofRequest struct {
	Reference string `json:"reference"`
}

func (s *Server) SubmitPaymentProof(c *gin.Context) {
	user, _ := currentUser(c)

	var req paymentProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	inv, err := s.invoiceSvc.SubmitPaymentProof(c.Request.Context(), user.ID, pathID(c), strings.TrimSpace(req.Reference))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": inv})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query listInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	userID, err := parseOptionalSnowflakeID(query.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user_id"))
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoicesRequest{
		ListFilter: invoicedomain.ListFilter{
			UserID: userID,
			Status: invoicedomain.Status(strings.TrimSpace(query.Status)),
			Kind:   invoicedomain.Kind(strings.TrimSpace(query.Kind)),
		},
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type settleInvoiceRequest struct {
	Status    string `json:"status"`
	Method    string `json:"method"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

// SettleInvoice records a staff decision: paid, unpaid (proof rejected) or
// cancelled.
func (s *Server) SettleInvoice(c *gin.Context) {
	staff, _ := currentUser(c)

	var req settleInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	inv, err := s.paymentSvc.Settle(c.Request.Context(), paymentdomain.SettleRequest{
		InvoiceID: pathID(c),
		Status:    invoicedomain.Status(strings.TrimSpace(req.Status)),
		Method:    paymentdomain.Method(strings.TrimSpace(req.Method)),
		Reference: strings.TrimSpace(req.Reference),
		Reason:    strings.TrimSpace(req.Reason),
		StaffID:   staff.ID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": inv})
}
