package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/cloudnest/internal/catalog/domain"
	userdomain "github.com/smallbiznis/cloudnest/internal/user/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultAdminName = "CloudNest Admin"
	seedNodeID       = 1
)

type Options struct {
	// AdminEmail names the super admin account to ensure. Empty skips it.
	AdminEmail string
	Log        *zap.Logger
}

var defaultDataCenters = []struct {
	Name     string
	Location string
}{
	{Name: "North America", Location: "New York, USA"},
	{Name: "Europe", Location: "Frankfurt, Germany"},
	{Name: "Asia Pacific", Location: "Singapore"},
}

// Run seeds the bootstrap super admin and the default data centers. It is
// safe to run on every start.
func Run(ctx context.Context, db *gorm.DB, opts Options) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	node, err := snowflake.NewNode(seedNodeID)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if email := strings.ToLower(strings.TrimSpace(opts.AdminEmail)); email != "" {
			created, err := ensureSuperAdminTx(ctx, tx, node, email)
			if err != nil {
				return err
			}
			if created {
				log.Info("bootstrap super admin created", zap.String("email", email))
			}
		}

		n, err := ensureDataCentersTx(ctx, tx, node)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info("default data centers created", zap.Int("count", n))
		}
		return nil
	})
}

// ensureSuperAdminTx creates the account or promotes an existing one.
func ensureSuperAdminTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, email string) (bool, error) {
	var user userdomain.User
	err := tx.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		if user.Role == userdomain.RoleSuperAdmin {
			return false, nil
		}
		return false, tx.WithContext(ctx).Model(&userdomain.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]any{"role": userdomain.RoleSuperAdmin, "updated_at": time.Now().UTC()}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	now := time.Now().UTC()
	user = userdomain.User{
		ID:        node.Generate(),
		Email:     email,
		FullName:  defaultAdminName,
		Role:      userdomain.RoleSuperAdmin,
		Verified:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return false, err
	}
	return true, nil
}

func ensureDataCentersTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (int, error) {
	var count int64
	if err := tx.WithContext(ctx).Model(&catalogdomain.DataCenter{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	items := make([]catalogdomain.DataCenter, 0, len(defaultDataCenters))
	for _, dc := range defaultDataCenters {
		items = append(items, catalogdomain.DataCenter{
			ID:        node.Generate(),
			Name:      dc.Name,
			Location:  dc.Location,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
		return 0, err
	}
	return len(items), nil
}
