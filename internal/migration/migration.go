package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	catalogdomain "github.com/smallbiznis/cloudnest/internal/catalog/domain"
	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	orderdomain "github.com/smallbiznis/cloudnest/internal/order/domain"
	paymentdomain "github.com/smallbiznis/cloudnest/internal/payment/domain"
	provisioningdomain "github.com/smallbiznis/cloudnest/internal/provisioning/domain"
	settingsdomain "github.com/smallbiznis/cloudnest/internal/settings/domain"
	supportdomain "github.com/smallbiznis/cloudnest/internal/support/domain"
	userdomain "github.com/smallbiznis/cloudnest/internal/user/domain"
	walletdomain "github.com/smallbiznis/cloudnest/internal/wallet/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrate brings the schema up to date. Postgres runs the versioned SQL
// migrations; the other dialects are created from the models.
func Migrate(conn *gorm.DB, dialect string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if strings.EqualFold(dialect, "postgres") {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	return AutoMigrate(conn)
}

// AutoMigrate creates every table from its model.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&userdomain.User{},
		&catalogdomain.Plan{},
		&catalogdomain.AddOn{},
		&catalogdomain.DataCenter{},
		&walletdomain.Transaction{},
		&walletdomain.TopUpRequest{},
		&orderdomain.Order{},
		&provisioningdomain.Server{},
		&invoicedomain.Invoice{},
		&paymentdomain.Payment{},
		&supportdomain.Ticket{},
		&supportdomain.TicketMessage{},
		&settingsdomain.SiteSettings{},
		&settingsdomain.ContactMessage{},
	)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}
