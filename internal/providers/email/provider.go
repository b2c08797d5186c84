package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error
}

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("email").Funcs(template.FuncMap{
	"money": FormatMoney,
}).ParseFS(templateFS, "templates/*.html"))

var subjects = map[string]string{
	"order_placed":       "Your CloudNest order has been received",
	"order_updated":      "Your CloudNest order was updated",
	"invoice_created":    "New invoice from CloudNest",
	"invoice_paid":       "Payment received, thank you",
	"server_provisioned": "Your server is ready",
	"server_credentials": "Your server credentials",
	"server_suspended":   "Your service has been suspended",
	"server_unsuspended": "Your service has been restored",
	"server_cancelled":   "Your service has been cancelled",
	"renewal_charged":    "Your service was renewed",
	"topup_reviewed":     "Your wallet top-up was reviewed",
	"ticket_updated":     "Update on your support ticket",
	"contact_received":   "We received your message",
}

// Render executes templateName and returns the subject and HTML body.
// A "subject" key in data overrides the default subject.
func Render(templateName string, data map[string]any) (string, string, error) {
	t := templates.Lookup(templateName + ".html")
	if t == nil {
		return "", "", fmt.Errorf("unknown email template %q", templateName)
	}

	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}

	subject := "Notification from CloudNest"
	if s, ok := subjects[templateName]; ok {
		subject = s
	}
	if s, ok := data["subject"].(string); ok && strings.TrimSpace(s) != "" {
		subject = s
	}
	return subject, body.String(), nil
}

// FormatMoney renders minor units as a dollar amount.
func FormatMoney(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// NoOpProvider renders templates so broken ones still surface, then discards the mail.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}

func (p *NoOpProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	_, _, err := Render(templateName, data)
	return err
}
