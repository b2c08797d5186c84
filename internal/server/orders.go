package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/cloudnest/internal/order/domain"
	"github.com/smallbiznis/cloudnest/internal/pricing"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
)

type placeOrderRequest struct {
	PlanID        string   `json:"plan_id"`
	BillingCycle  string   `json:"billing_cycle"`
	DataCenterID  string   `json:"datacenter_id"`
	AddOnIDs      []string `json:"addon_ids"`
	OS            string   `json:"os"`
	ControlPanel  string   `json:"control_panel"`
	PaymentMethod string   `json:"payment_method"`
	Notes         string   `json:"notes"`
}

func (s *Server) PlaceOrder(c *gin.Context) {
	user, _ := currentUser(c)

	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.PlanID) == "" {
		AbortWithError(c, newValidationError("plan_id", "required", "plan_id is required"))
		return
	}

	res, err := s.orderSvc.PlaceOrder(c.Request.Context(), orderdomain.PlaceOrderRequest{
		UserID:        user.ID,
		PlanID:        strings.TrimSpace(req.PlanID),
		BillingCycle:  pricing.BillingCycle(strings.TrimSpace(req.BillingCycle)),
		DataCenterID:  strings.TrimSpace(req.DataCenterID),
		AddOnIDs:      req.AddOnIDs,
		OS:            strings.TrimSpace(req.OS),
		ControlPanel:  strings.TrimSpace(req.ControlPanel),
		PaymentMethod: orderdomain.PaymentMethod(strings.TrimSpace(req.PaymentMethod)),
		Notes:         strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": res})
}

type listOrdersQuery struct {
	pagination.Pagination
	UserID        string `form:"user_id"`
	Status        string `form:"status"`
	PaymentStatus string `form:"payment_status"`
}

func (s *Server) ListMyOrders(c *gin.Context) {
	user, _ := currentUser(c)

	var query listOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.List(c.Request.Context(), orderdomain.ListOrdersRequest{
		ListFilter: orderdomain.ListFilter{
			UserID: user.ID,
			Status: orderdomain.Status(strings.TrimSpace(query.Status)),
		},
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMyOrder(c *gin.Context) {
	user, _ := currentUser(c)

	order, err := s.orderSvc.GetForUser(c.Request.Context(), user.ID, pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) ListOrders(c *gin.Context) {
	var query listOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	userID, err := parseOptionalSnowflakeID(query.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user_id"))
		return
	}

	resp, err := s.orderSvc.List(c.Request.Context(), orderdomain.ListOrdersRequest{
		ListFilter: orderdomain.ListFilter{
			UserID:        userID,
			Status:        orderdomain.Status(strings.TrimSpace(query.Status)),
			PaymentStatus: orderdomain.PaymentStatus(strings.TrimSpace(query.PaymentStatus)),
		},
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateOrderRequest struct {
	PaymentStatus string `json:"payment_status"`
	OrderStatus   string `json:"order_status"`
	Reason        string `json:"reason"`
}

// UpdateOrder applies a staff payment decision and/or a cancellation.
// Activation only happens through provisioning.
func (s *Server) UpdateOrder(c *gin.Context) {
	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	paymentStatus := orderdomain.PaymentStatus(strings.TrimSpace(req.PaymentStatus))
	orderStatus := orderdomain.Status(strings.TrimSpace(req.OrderStatus))
	if paymentStatus == "" && orderStatus == "" {
		AbortWithError(c, newValidationError("request", "required", "payment_status or order_status is required"))
		return
	}
	if orderStatus != "" && orderStatus != orderdomain.StatusCancelled {
		AbortWithError(c, orderdomain.ErrInvalidStatus)
		return
	}

	ctx := c.Request.Context()
	id := pathID(c)
	var (
		order orderdomain.Order
		err   error
	)
	if paymentStatus != "" {
		order, err = s.orderSvc.UpdatePaymentStatus(ctx, id, paymentStatus)
		if err != nil {
			AbortWithError(c, err)
			return
		}
	}
	if orderStatus == orderdomain.StatusCancelled {
		order, err = s.orderSvc.Cancel(ctx, id, strings.TrimSpace(req.Reason))
		if err != nil {
			AbortWithError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) RefundOrder(c *gin.Context) {
	order, err := s.orderSvc.Refund(c.Request.Context(), pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}
