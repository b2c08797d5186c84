package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	userservice "github.com/smallbiznis/cloudnest/internal/user/service"
	walletdomain "github.com/smallbiznis/cloudnest/internal/wallet/domain"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
)

func (s *Server) GetWallet(c *gin.Context) {
	user, _ := currentUser(c)

	balance, err := s.walletSvc.Balance(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"user_id": user.ID.String(),
		"balance": balance,
	}})
}

func (s *Server) ListWalletTransactions(c *gin.Context) {
	user, _ := currentUser(c)

	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.walletSvc.ListTransactions(c.Request.Context(), walletdomain.ListTransactionsRequest{
		UserID:     user.ID,
		Pagination: query,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type topUpRequest struct {
	Amount           int64  `json:"amount"`
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`
}

func (s *Server) RequestTopUp(c *gin.Context) {
	user, _ := currentUser(c)

	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	item, err := s.walletSvc.RequestTopUp(c.Request.Context(), walletdomain.TopUpInput{
		UserID:           user.ID,
		Amount:           req.Amount,
		PaymentMethod:    walletdomain.TopUpMethod(strings.TrimSpace(req.PaymentMethod)),
		PaymentReference: strings.TrimSpace(req.PaymentReference),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) ListMyTopUps(c *gin.Context) {
	user, _ := currentUser(c)

	items, err := s.walletSvc.ListTopUps(c.Request.Context(), walletdomain.TopUpFilter{UserID: user.ID})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ListTopUps(c *gin.Context) {
	userID, err := parseOptionalSnowflakeID(c.Query("user_id"))
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user_id"))
		return
	}

	items, err := s.walletSvc.ListTopUps(c.Request.Context(), walletdomain.TopUpFilter{
		UserID: userID,
		Status: walletdomain.TopUpStatus(strings.TrimSpace(c.Query("status"))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

type reviewTopUpRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (s *Server) ReviewTopUp(c *gin.Context) {
	staff, _ := currentUser(c)

	var req reviewTopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var approve bool
	switch walletdomain.TopUpStatus(strings.TrimSpace(req.Status)) {
	case walletdomain.TopUpStatusApproved:
		approve = true
	case walletdomain.TopUpStatusRejected:
	default:
		AbortWithError(c, newValidationError("status", "invalid_status", "status must be approved or rejected"))
		return
	}

	item, err := s.walletSvc.ReviewTopUp(c.Request.Context(), walletdomain.ReviewTopUpRequest{
		ID:         pathID(c),
		Approve:    approve,
		Notes:      strings.TrimSpace(req.Notes),
		ReviewerID: staff.ID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

type walletAdjustmentRequest struct {
	Amount int64  `json:"amount"`
	Note   string `json:"note"`
}

// AdjustWallet credits a positive amount and debits a negative one.
func (s *Server) AdjustWallet(c *gin.Context) {
	userID, err := userservice.ParseID(pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req walletAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	txn, err := s.walletSvc.Adjust(c.Request.Context(), walletdomain.AdjustRequest{
		UserID: userID,
		Amount: req.Amount,
		Note:   strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": txn})
}
