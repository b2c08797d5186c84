package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/cloudnest/internal/catalog/domain"
	"github.com/smallbiznis/cloudnest/internal/pricing"
)

type planRequest struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Description    string   `json:"description"`
	CPU            string   `json:"cpu"`
	RAM            string   `json:"ram"`
	Storage        string   `json:"storage"`
	Bandwidth      string   `json:"bandwidth"`
	PriceMonthly   int64    `json:"price_monthly"`
	PriceQuarterly int64    `json:"price_quarterly"`
	PriceYearly    int64    `json:"price_yearly"`
	Features       []string `json:"features"`
	Active         *bool    `json:"active"`
}

func (r planRequest) input() catalogdomain.PlanInput {
	return catalogdomain.PlanInput{
		Name:           strings.TrimSpace(r.Name),
		Type:           catalogdomain.PlanType(strings.TrimSpace(r.Type)),
		Description:    strings.TrimSpace(r.Description),
		CPU:            strings.TrimSpace(r.CPU),
		RAM:            strings.TrimSpace(r.RAM),
		Storage:        strings.TrimSpace(r.Storage),
		Bandwidth:      strings.TrimSpace(r.Bandwidth),
		PriceMonthly:   r.PriceMonthly,
		PriceQuarterly: r.PriceQuarterly,
		PriceYearly:    r.PriceYearly,
		Features:       r.Features,
		Active:         r.Active,
	}
}

type addOnRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Price        int64  `json:"price"`
	BillingCycle string `json:"billing_cycle"`
	Active       *bool  `json:"active"`
}

func (r addOnRequest) input() catalogdomain.AddOnInput {
	return catalogdomain.AddOnInput{
		Name:         strings.TrimSpace(r.Name),
		Description:  strings.TrimSpace(r.Description),
		Category:     catalogdomain.AddOnCategory(strings.TrimSpace(r.Category)),
		Price:        r.Price,
		BillingCycle: pricing.BillingCycle(strings.TrimSpace(r.BillingCycle)),
		Active:       r.Active,
	}
}

type dataCenterRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Active   *bool  `json:"active"`
}

func (r dataCenterRequest) input() catalogdomain.DataCenterInput {
	return catalogdomain.DataCenterInput{
		Name:     strings.TrimSpace(r.Name),
		Location: strings.TrimSpace(r.Location),
		Active:   r.Active,
	}
}

func (s *Server) ListPlans(c *gin.Context) {
	plans, err := s.catalogSvc.ListPlans(c.Request.Context(), catalogdomain.ListPlansRequest{
		Type:       catalogdomain.PlanType(strings.TrimSpace(c.Query("type"))),
		ActiveOnly: true,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plans})
}

func (s *Server) GetPlan(c *gin.Context) {
	plan, err := s.catalogSvc.GetPlan(c.Request.Context(), pathID(c), true)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func (s *Server) ListAddOns(c *gin.Context) {
	addOns, err := s.catalogSvc.ListAddOns(c.Request.Context(), true)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": addOns})
}

func (s *Server) ListDataCenters(c *gin.Context) {
	dcs, err := s.catalogSvc.ListDataCenters(c.Request.Context(), true)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dcs})
}

func (s *Server) AdminListPlans(c *gin.Context) {
	activeOnly, err := activeOnlyQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	plans, err := s.catalogSvc.ListPlans(c.Request.Context(), catalogdomain.ListPlansRequest{
		Type:       catalogdomain.PlanType(strings.TrimSpace(c.Query("type"))),
		ActiveOnly: activeOnly,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plans})
}

func (s *Server) CreatePlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	plan, err := s.catalogSvc.CreatePlan(c.Request.Context(), req.input())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": plan})
}

func (s *Server) UpdatePlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	plan, err := s.catalogSvc.UpdatePlan(c.Request.Context(), pathID(c), req.input())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func (s *Server) DeactivatePlan(c *gin.Context) {
	plan, err := s.catalogSvc.SetPlanActive(c.Request.Context(), pathID(c), false)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func (s *Server) AdminListAddOns(c *gin.Context) {
	activeOnly, err := activeOnlyQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	addOns, err := s.catalogSvc.ListAddOns(c.Request.Context(), activeOnly)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": addOns})
}

func (s *Server) CreateAddOn(c *gin.Context) {
	var req addOnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	addOn, err := s.catalogSvc.CreateAddOn(c.Request.Context(), req.input())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": addOn})
}

func (s *Server) UpdateAddOn(c *gin.Context) {
	var req addOnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	addOn, err := s.catalogSvc.UpdateAddOn(c.Request.Context(), pathID(c), req.input())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": addOn})
}

func (s *Server) DeactivateAddOn(c *gin.Context) {
	addOn, err := s.catalogSvc.SetAddOnActive(c.Request.Context(), pathID(c), false)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": addOn})
}

func (s *Server) AdminListDataCenters(c *gin.Context) {
	activeOnly, err := activeOnlyQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	dcs, err := s.catalogSvc.ListDataCenters(c.Request.Context(), activeOnly)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dcs})
}

func (s *Server) CreateDataCenter(c *gin.Context) {
	var req dataCenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	dc, err := s.catalogSvc.CreateDataCenter(c.Request.Context(), req.input())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": dc})
}

func (s *Server) UpdateDataCenter(c *gin.Context) {
	var req dataCenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	dc, err := s.catalogSvc.UpdateDataCenter(c.Request.Context(), pathID(c), req.input())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dc})
}

func (s *Server) DeactivateDataCenter(c *gin.Context) {
	dc, err := s.catalogSvc.SetDataCenterActive(c.Request.Context(), pathID(c), false)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dc})
}
