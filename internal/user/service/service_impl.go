package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/internal/clock"
	"github.com/smallbiznis/cloudnest/internal/user/domain"
	"github.com/smallbiznis/cloudnest/pkg/db"
	"github.com/smallbiznis/cloudnest/pkg/db/option"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("user.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateUserRequest) (domain.User, error) {
	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, domain.ErrInvalidEmail
	}
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return domain.User{}, domain.ErrInvalidName
	}
	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return domain.User{}, domain.ErrInvalidRole
	}

	now := s.clock.Now()
	user := domain.User{
		ID:        s.genID.Generate(),
		Email:     email,
		FullName:  name,
		Company:   strings.TrimSpace(req.Company),
		Phone:     strings.TrimSpace(req.Phone),
		Role:      role,
		Verified:  req.Verified,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := db.Retry(ctx, func(ctx context.Context) error {
		return s.repo.Insert(ctx, s.db, &user)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, err
	}

	s.log.Info("user created", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.User, error) {
	userID, err := ParseID(id)
	if err != nil {
		return domain.User{}, err
	}

	var item *domain.User
	err = db.Retry(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.repo.FindByID(ctx, s.db, userID)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	if item == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return domain.User{}, domain.ErrInvalidEmail
	}

	var item *domain.User
	err := db.Retry(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.repo.FindByEmail(ctx, s.db, email)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	if item == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListUsersRequest) (domain.ListUsersResponse, error) {
	if req.Role != "" && !req.Role.Valid() {
		return domain.ListUsersResponse{}, domain.ErrInvalidRole
	}
	req.Email = normalizeEmail(req.Email)

	offset, err := req.Pagination.Offset()
	if err != nil {
		return domain.ListUsersResponse{}, err
	}

	var items []*domain.User
	err = db.Retry(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.repo.List(ctx, s.db, req.ListFilter,
			option.WithOffset(offset),
			option.WithLimit(req.Pagination.Limit()+1),
		)
		return err
	})
	if err != nil {
		return domain.ListUsersResponse{}, err
	}

	items, pageInfo := pagination.BuildPageInfo(items, req.Pagination, offset)
	users := make([]domain.User, 0, len(items))
	for _, item := range items {
		users = append(users, *item)
	}
	return domain.ListUsersResponse{PageInfo: pageInfo, Users: users}, nil
}

// Update applies staff edits. Wallet balance is deliberately not editable here.
func (s *Service) Update(ctx context.Context, req domain.UpdateUserRequest) (domain.User, error) {
	userID, err := ParseID(req.ID)
	if err != nil {
		return domain.User{}, err
	}

	fields := map[string]any{}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return domain.User{}, domain.ErrInvalidName
		}
		fields["full_name"] = name
	}
	if req.Company != nil {
		fields["company"] = strings.TrimSpace(*req.Company)
	}
	if req.Phone != nil {
		fields["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			return domain.User{}, domain.ErrInvalidRole
		}
		fields["role"] = *req.Role
	}
	if req.Verified != nil {
		fields["verified"] = *req.Verified
	}
	if len(fields) == 0 {
		return s.GetByID(ctx, req.ID)
	}
	fields["updated_at"] = s.clock.Now()

	var affected int64
	err = db.Retry(ctx, func(ctx context.Context) error {
		var err error
		affected, err = s.repo.Update(ctx, s.db, userID, fields)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	if affected == 0 {
		return domain.User{}, domain.ErrNotFound
	}
	return s.GetByID(ctx, req.ID)
}

func (s *Service) Count(ctx context.Context, filter domain.ListFilter) (int64, error) {
	var count int64
	err := db.Retry(ctx, func(ctx context.Context) error {
		var err error
		count, err = s.repo.Count(ctx, s.db, filter)
		return err
	})
	return count, err
}

// ParseID parses a decimal snowflake id as carried in URLs and tokens.
func ParseID(value string) (snowflake.ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, domain.ErrInvalidID
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return snowflake.ID(id), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
