package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/cloudnest/internal/notification"
	"github.com/smallbiznis/cloudnest/internal/settings/domain"
	"github.com/smallbiznis/cloudnest/internal/testutil"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestGetServesDefaultsBeforeFirstSave(t *testing.T) {
	stack := testutil.NewStack(t)

	settings, err := stack.Settings.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.Defaults(), settings)

	var rows int64
	require.NoError(t, stack.DB.Model(&domain.SiteSettings{}).Count(&rows).Error)
	require.Zero(t, rows)
}

func TestUpdateKeepsFieldsItDoesNotName(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()

	saved, err := stack.Settings.Update(ctx, domain.UpdateRequest{
		BankTransferDetails: ptr("  Bank: First Cloud\nIBAN: DE00 1234  "),
		CryptoAddresses:     ptr("BTC: bc1qxyz"),
	})
	require.NoError(t, err)
	require.Equal(t, "Bank: First Cloud\nIBAN: DE00 1234", saved.BankTransferDetails)
	require.Equal(t, "CloudNest", saved.CompanyName)
	require.Equal(t, testutil.Epoch, saved.UpdatedAt.UTC())

	stack.Clock.Advance(time.Hour)
	saved, err = stack.Settings.Update(ctx, domain.UpdateRequest{CompanyName: ptr("Nest Hosting")})
	require.NoError(t, err)
	require.Equal(t, "Nest Hosting", saved.CompanyName)
	require.Equal(t, "BTC: bc1qxyz", saved.CryptoAddresses)

	got, err := stack.Settings.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "Bank: First Cloud\nIBAN: DE00 1234", got.BankTransferDetails)
	require.Equal(t, "Nest Hosting", got.CompanyName)

	var rows int64
	require.NoError(t, stack.DB.Model(&domain.SiteSettings{}).Count(&rows).Error)
	require.EqualValues(t, 1, rows)
}

func TestUpdateValidation(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()

	_, err := stack.Settings.Update(ctx, domain.UpdateRequest{CompanyName: ptr("   ")})
	require.ErrorIs(t, err, domain.ErrInvalidCompanyName)

	_, err = stack.Settings.Update(ctx, domain.UpdateRequest{ContactEmail: ptr("support.cloudnest.com")})
	require.ErrorIs(t, err, domain.ErrInvalidEmail)

	// A blank contact email clears it.
	saved, err := stack.Settings.Update(ctx, domain.UpdateRequest{ContactEmail: ptr("")})
	require.NoError(t, err)
	require.Empty(t, saved.ContactEmail)
}

func TestSubmitContactStoresAndConfirms(t *testing.T) {
	stack := testutil.NewStack(t)

	msg, err := stack.Settings.SubmitContact(context.Background(), domain.ContactRequest{
		Name:    " Linus ",
		Email:   "Linus@Example.com",
		Subject: "Colocation",
		Message: "Do you rent half racks?",
	})
	require.NoError(t, err)
	require.NotZero(t, msg.ID)
	require.Equal(t, "linus@example.com", msg.Email)
	require.Equal(t, testutil.Epoch, msg.CreatedAt.UTC())

	var stored domain.ContactMessage
	require.NoError(t, stack.DB.First(&stored, "id = ?", msg.ID).Error)
	require.Equal(t, "Linus", stored.Name)
	require.Equal(t, "Do you rent half racks?", stored.Message)

	sent := stack.Notifier.Messages()
	require.Len(t, sent, 1)
	require.Equal(t, notification.TemplateContactReceived, sent[0].Template)
	require.Equal(t, "linus@example.com", sent[0].Email)
	require.Equal(t, "Colocation", sent[0].Data["topic"])
}

func TestSubmitContactValidation(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	valid := domain.ContactRequest{Name: "A", Email: "a@example.com", Subject: "S", Message: "M"}

	cases := []struct {
		name string
		edit func(*domain.ContactRequest)
		want error
	}{
		{"missing name", func(r *domain.ContactRequest) { r.Name = " " }, domain.ErrInvalidName},
		{"bad email", func(r *domain.ContactRequest) { r.Email = "nobody" }, domain.ErrInvalidEmail},
		{"missing subject", func(r *domain.ContactRequest) { r.Subject = "" }, domain.ErrInvalidSubject},
		{"missing message", func(r *domain.ContactRequest) { r.Message = "\n" }, domain.ErrInvalidMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.edit(&req)
			_, err := stack.Settings.SubmitContact(ctx, req)
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Empty(t, stack.Notifier.Messages())
}
