package service_test

import (
	"context"
	"testing"

	"github.com/smallbiznis/cloudnest/internal/testutil"
	"github.com/smallbiznis/cloudnest/internal/user/domain"
	"github.com/smallbiznis/cloudnest/internal/user/service"
	"github.com/stretchr/testify/require"
)

func TestCreateNormalizesEmailAndDefaultsRole(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()

	user, err := stack.Users.Create(ctx, domain.CreateUserRequest{
		Email:    "  Jane@Example.COM ",
		FullName: "Jane Roe",
	})
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", user.Email)
	require.Equal(t, domain.RoleUser, user.Role)
	require.Zero(t, user.WalletBalance)

	got, err := stack.Users.GetByEmail(ctx, "JANE@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	_, err = stack.Users.Create(ctx, domain.CreateUserRequest{Email: "jane@example.com", FullName: "Again"})
	require.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestCreateValidation(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()

	_, err := stack.Users.Create(ctx, domain.CreateUserRequest{Email: "nope", FullName: "N"})
	require.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = stack.Users.Create(ctx, domain.CreateUserRequest{Email: "a@b.c"})
	require.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = stack.Users.Create(ctx, domain.CreateUserRequest{Email: "a@b.c", FullName: "A", Role: "root"})
	require.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestUpdateAppliesOnlyProvidedFields(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, stack.DB, stack.Node, "edit@example.com", 2500)

	company := "Acme Hosting"
	role := domain.RoleAdmin
	updated, err := stack.Users.Update(ctx, domain.UpdateUserRequest{
		ID:      user.ID.String(),
		Company: &company,
		Role:    &role,
	})
	require.NoError(t, err)
	require.Equal(t, "Acme Hosting", updated.Company)
	require.True(t, updated.Role.IsStaff())
	require.Equal(t, user.FullName, updated.FullName)
	require.Equal(t, int64(2500), updated.WalletBalance)

	blank := " "
	_, err = stack.Users.Update(ctx, domain.UpdateUserRequest{ID: user.ID.String(), FullName: &blank})
	require.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = stack.Users.Update(ctx, domain.UpdateUserRequest{ID: "424242", Company: &company})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListAndCountByRole(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	testutil.CreateUser(t, stack.DB, stack.Node, "one@example.com", 0)
	testutil.CreateUser(t, stack.DB, stack.Node, "two@example.com", 0)
	testutil.CreateStaff(t, stack.DB, stack.Node, "staff@example.com")

	customers, err := stack.Users.Count(ctx, domain.ListFilter{Role: domain.RoleUser})
	require.NoError(t, err)
	require.Equal(t, int64(2), customers)

	resp, err := stack.Users.List(ctx, domain.ListUsersRequest{ListFilter: domain.ListFilter{Role: domain.RoleAdmin}})
	require.NoError(t, err)
	require.Len(t, resp.Users, 1)
	require.Equal(t, "staff@example.com", resp.Users[0].Email)

	_, err = stack.Users.List(ctx, domain.ListUsersRequest{ListFilter: domain.ListFilter{Role: "guest"}})
	require.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestParseID(t *testing.T) {
	id, err := service.ParseID(" 1234 ")
	require.NoError(t, err)
	require.EqualValues(t, 1234, id)

	for _, bad := range []string{"", "0", "-5", "12ab"} {
		_, err := service.ParseID(bad)
		require.ErrorIs(t, err, domain.ErrInvalidID, bad)
	}
}
