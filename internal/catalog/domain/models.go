package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/internal/pricing"
	"gorm.io/datatypes"
)

type PlanType string

const (
	PlanTypeVPS       PlanType = "vps"
	PlanTypeShared    PlanType = "shared"
	PlanTypeDedicated PlanType = "dedicated"
)

func (t PlanType) Valid() bool {
	return t == PlanTypeVPS || t == PlanTypeShared || t == PlanTypeDedicated
}

type Plan struct {
	ID             snowflake.ID                `gorm:"primaryKey" json:"id"`
	Name           string                      `gorm:"type:varchar(255);not null" json:"name"`
	Slug           string                      `gorm:"type:varchar(255);not null;uniqueIndex" json:"slug"`
	Type           PlanType                    `gorm:"type:varchar(32);not null;index" json:"type"`
	Description    string                      `gorm:"type:text" json:"description,omitempty"`
	CPU            string                      `gorm:"type:varchar(64)" json:"cpu,omitempty"`
	RAM            string                      `gorm:"type:varchar(64)" json:"ram,omitempty"`
	Storage        string                      `gorm:"type:varchar(64)" json:"storage,omitempty"`
	Bandwidth      string                      `gorm:"type:varchar(64)" json:"bandwidth,omitempty"`
	PriceMonthly   int64                       `gorm:"not null" json:"price_monthly"`
	PriceQuarterly int64                       `gorm:"not null" json:"price_quarterly"`
	PriceYearly    int64                       `gorm:"not null" json:"price_yearly"`
	Features       datatypes.JSONSlice[string] `json:"features"`
	Active         bool                        `gorm:"not null" json:"active"`
	CreatedAt      time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time                   `gorm:"not null" json:"updated_at"`
}

func (Plan) TableName() string { return "plans" }

func (p Plan) Prices() pricing.PlanPrices {
	return pricing.PlanPrices{
		Monthly:   p.PriceMonthly,
		Quarterly: p.PriceQuarterly,
		Yearly:    p.PriceYearly,
	}
}

type AddOnCategory string

const (
	AddOnCategorySSL     AddOnCategory = "ssl"
	AddOnCategoryBackup  AddOnCategory = "backup"
	AddOnCategoryPanel   AddOnCategory = "panel"
	AddOnCategoryIP      AddOnCategory = "ip"
	AddOnCategorySupport AddOnCategory = "support"
)

func (c AddOnCategory) Valid() bool {
	switch c {
	case AddOnCategorySSL, AddOnCategoryBackup, AddOnCategoryPanel, AddOnCategoryIP, AddOnCategorySupport:
		return true
	default:
		return false
	}
}

type AddOn struct {
	ID           snowflake.ID         `gorm:"primaryKey" json:"id"`
	Name         string               `gorm:"type:varchar(255);not null" json:"name"`
	Description  string               `gorm:"type:text" json:"description,omitempty"`
	Category     AddOnCategory        `gorm:"type:varchar(32);not null" json:"category"`
	Price        int64                `gorm:"not null" json:"price"`
	BillingCycle pricing.BillingCycle `gorm:"type:varchar(32);not null" json:"billing_cycle"`
	Active       bool                 `gorm:"not null" json:"active"`
	CreatedAt    time.Time            `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time            `gorm:"not null" json:"updated_at"`
}

func (AddOn) TableName() string { return "addons" }

func (a AddOn) PriceInput() pricing.AddOnPrice {
	return pricing.AddOnPrice{Price: a.Price, BillingCycle: a.BillingCycle}
}

type DataCenter struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:varchar(255);not null" json:"name"`
	Location  string       `gorm:"type:varchar(255);not null" json:"location"`
	Active    bool         `gorm:"not null" json:"active"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (DataCenter) TableName() string { return "datacenters" }
