package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SingletonID is the primary key of the one site settings row.
const SingletonID int64 = 1

// SiteSettings is the storefront copy staff edit from the admin panel. The
// bank transfer and crypto fields are what customers are shown when they pay
// an invoice outside the wallet.
type SiteSettings struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement:false" json:"-"`
	CompanyName         string    `gorm:"type:varchar(255);not null" json:"company_name"`
	CompanyDescription  string    `gorm:"type:text" json:"company_description"`
	ContactEmail        string    `gorm:"type:varchar(255)" json:"contact_email"`
	ContactPhone        string    `gorm:"type:varchar(64)" json:"contact_phone"`
	ContactAddress      string    `gorm:"type:text" json:"contact_address"`
	SkypeID             string    `gorm:"type:varchar(128)" json:"skype_id"`
	AboutUs             string    `gorm:"type:text" json:"about_us"`
	TermsOfService      string    `gorm:"type:text" json:"terms_of_service"`
	PrivacyPolicy       string    `gorm:"type:text" json:"privacy_policy"`
	SLA                 string    `gorm:"column:sla;type:text" json:"sla"`
	AUP                 string    `gorm:"column:aup;type:text" json:"aup"`
	DataCenters         string    `gorm:"type:text" json:"data_centers"`
	BankTransferDetails string    `gorm:"type:text" json:"bank_transfer_details"`
	CryptoAddresses     string    `gorm:"type:text" json:"crypto_addresses"`
	SocialTwitter       string    `gorm:"type:varchar(255)" json:"social_twitter"`
	SocialLinkedIn      string    `gorm:"column:social_linkedin;type:varchar(255)" json:"social_linkedin"`
	SocialGitHub        string    `gorm:"column:social_github;type:varchar(255)" json:"social_github"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (SiteSettings) TableName() string { return "site_settings" }

// Defaults is served until staff save settings for the first time.
func Defaults() SiteSettings {
	return SiteSettings{
		ID:                 SingletonID,
		CompanyName:        "CloudNest",
		CompanyDescription: "Enterprise Cloud Infrastructure Provider",
		ContactEmail:       "support@cloudnest.com",
		ContactPhone:       "+1 (555) 123-4567",
		ContactAddress:     "123 Cloud Street, Tech City, TC 12345",
		AboutUs:            "CloudNest provides enterprise-grade cloud infrastructure including VPS, Shared Hosting, and Dedicated Servers.",
	}
}

// ContactMessage is a storefront contact form submission.
type ContactMessage struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:varchar(255);not null" json:"name"`
	Email     string       `gorm:"type:varchar(255);not null;index" json:"email"`
	Subject   string       `gorm:"type:varchar(255);not null" json:"subject"`
	Message   string       `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (ContactMessage) TableName() string { return "contact_messages" }
