package domain

import (
	"context"
	"errors"
)

// UpdateRequest changes only the fields that are set.
type UpdateRequest struct {
	CompanyName         *string `json:"company_name"`
	CompanyDescription  *string `json:"company_description"`
	ContactEmail        *string `json:"contact_email"`
	ContactPhone        *string `json:"contact_phone"`
	ContactAddress      *string `json:"contact_address"`
	SkypeID             *string `json:"skype_id"`
	AboutUs             *string `json:"about_us"`
	TermsOfService      *string `json:"terms_of_service"`
	PrivacyPolicy       *string `json:"privacy_policy"`
	SLA                 *string `json:"sla"`
	AUP                 *string `json:"aup"`
	DataCenters         *string `json:"data_centers"`
	BankTransferDetails *string `json:"bank_transfer_details"`
	CryptoAddresses     *string `json:"crypto_addresses"`
	SocialTwitter       *string `json:"social_twitter"`
	SocialLinkedIn      *string `json:"social_linkedin"`
	SocialGitHub        *string `json:"social_github"`
}

type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type Service interface {
	// Get returns the saved settings, or Defaults when none were saved.
	Get(ctx context.Context) (SiteSettings, error)
	// Update upserts the settings row.
	Update(ctx context.Context, req UpdateRequest) (SiteSettings, error)
	// SubmitContact stores the message and emails the sender a confirmation.
	SubmitContact(ctx context.Context, req ContactRequest) (ContactMessage, error)
}

var (
	ErrInvalidCompanyName = errors.New("invalid_company_name")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidSubject     = errors.New("invalid_subject")
	ErrInvalidMessage     = errors.New("invalid_message")
)
