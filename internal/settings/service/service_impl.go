package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/internal/clock"
	"github.com/smallbiznis/cloudnest/internal/notification"
	"github.com/smallbiznis/cloudnest/internal/settings/domain"
	"github.com/smallbiznis/cloudnest/pkg/db"
	"github.com/smallbiznis/cloudnest/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Settings repository.Repository[domain.SiteSettings]
	Contacts repository.Repository[domain.ContactMessage]
	Notifier notification.Notifier `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	settings repository.Repository[domain.SiteSettings]
	contacts repository.Repository[domain.ContactMessage]
	notifier notification.Notifier
}

func New(p Params) domain.Service {
	notifier := p.Notifier
	if notifier == nil {
		notifier = notification.Discard{}
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("settings.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		settings: p.Settings,
		contacts: p.Contacts,
		notifier: notifier,
	}
}

func (s *Service) Get(ctx context.Context) (domain.SiteSettings, error) {
	var current *domain.SiteSettings
	err := db.Retry(ctx, func(ctx context.Context) error {
		var err error
		current, err = s.settings.FindByID(ctx, domain.SingletonID)
		return err
	})
	if err != nil {
		return domain.SiteSettings{}, err
	}
	if current == nil {
		return domain.Defaults(), nil
	}
	return *current, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (domain.SiteSettings, error) {
	fields, err := updateFields(req)
	if err != nil {
		return domain.SiteSettings{}, err
	}
	now := s.clock.Now()
	fields["updated_at"] = now

	var saved domain.SiteSettings
	err = db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			store := s.settings.WithTrx(tx)
			current, err := store.FindByID(ctx, domain.SingletonID)
			if err != nil {
				return err
			}
			if current == nil {
				row := domain.Defaults()
				row.UpdatedAt = now
				if err := store.Create(ctx, &row); err != nil {
					if db.IsDuplicateKeyErr(err) {
						// Another writer created the row first; the retry updates it.
						return fmt.Errorf("%w: site settings created concurrently", db.ErrTransient)
					}
					return err
				}
			}
			if _, err := store.Update(ctx, domain.SingletonID, fields); err != nil {
				return err
			}
			updated, err := store.FindByID(ctx, domain.SingletonID)
			if err != nil {
				return err
			}
			saved = *updated
			return nil
		})
	})
	if err != nil {
		return domain.SiteSettings{}, err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	s.log.Info("site settings updated", zap.Strings("fields", keys))
	return saved, nil
}

func updateFields(req domain.UpdateRequest) (map[string]any, error) {
	columns := map[string]*string{
		"company_name":          req.CompanyName,
		"company_description":   req.CompanyDescription,
		"contact_email":         req.ContactEmail,
		"contact_phone":         req.ContactPhone,
		"contact_address":       req.ContactAddress,
		"skype_id":              req.SkypeID,
		"about_us":              req.AboutUs,
		"terms_of_service":      req.TermsOfService,
		"privacy_policy":        req.PrivacyPolicy,
		"sla":                   req.SLA,
		"aup":                   req.AUP,
		"data_centers":          req.DataCenters,
		"bank_transfer_details": req.BankTransferDetails,
		"crypto_addresses":      req.CryptoAddresses,
		"social_twitter":        req.SocialTwitter,
		"social_linkedin":       req.SocialLinkedIn,
		"social_github":         req.SocialGitHub,
	}

	fields := make(map[string]any, len(columns)+1)
	for column, value := range columns {
		if value != nil {
			fields[column] = strings.TrimSpace(*value)
		}
	}
	if name, ok := fields["company_name"]; ok && name == "" {
		return nil, domain.ErrInvalidCompanyName
	}
	if email, ok := fields["contact_email"].(string); ok && email != "" && !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidEmail
	}
	return fields, nil
}

func (s *Service) SubmitContact(ctx context.Context, req domain.ContactRequest) (domain.ContactMessage, error) {
	msg := domain.ContactMessage{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
		Subject: strings.TrimSpace(req.Subject),
		Message: strings.TrimSpace(req.Message),
	}
	switch {
	case msg.Name == "":
		return domain.ContactMessage{}, domain.ErrInvalidName
	case msg.Email == "" || !strings.Contains(msg.Email, "@"):
		return domain.ContactMessage{}, domain.ErrInvalidEmail
	case msg.Subject == "":
		return domain.ContactMessage{}, domain.ErrInvalidSubject
	case msg.Message == "":
		return domain.ContactMessage{}, domain.ErrInvalidMessage
	}
	msg.ID = s.genID.Generate()
	msg.CreatedAt = s.clock.Now()

	err := db.Retry(ctx, func(ctx context.Context) error {
		return s.contacts.Create(ctx, &msg)
	})
	if err != nil {
		return domain.ContactMessage{}, err
	}

	s.log.Info("contact message received", zap.String("contact_id", msg.ID.String()))
	s.notifier.Notify(ctx, notification.Message{
		Email:    msg.Email,
		Template: notification.TemplateContactReceived,
		Data: map[string]any{
			"name":  msg.Name,
			"topic": msg.Subject,
		},
	})
	return msg, nil
}
