package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/internal/clock"
	"github.com/smallbiznis/cloudnest/internal/notification"
	"github.com/smallbiznis/cloudnest/internal/support/domain"
	userservice "github.com/smallbiznis/cloudnest/internal/user/service"
	"github.com/smallbiznis/cloudnest/pkg/db"
	"github.com/smallbiznis/cloudnest/pkg/db/option"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
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
	Tickets  repository.Repository[domain.Ticket]
	Messages repository.Repository[domain.TicketMessage]
	Notifier notification.Notifier `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	tickets  repository.Repository[domain.Ticket]
	messages repository.Repository[domain.TicketMessage]
	notifier notification.Notifier
}

func New(p Params) domain.Service {
	notifier := p.Notifier
	if notifier == nil {
		notifier = notification.Discard{}
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("support.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		tickets:  p.Tickets,
		messages: p.Messages,
		notifier: notifier,
	}
}

func (s *Service) Open(ctx context.Context, req domain.OpenRequest) (domain.Ticket, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return domain.Ticket{}, domain.ErrInvalidSubject
	}
	body := strings.TrimSpace(req.Message)
	if body == "" {
		return domain.Ticket{}, domain.ErrInvalidMessage
	}
	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		return domain.Ticket{}, domain.ErrInvalidPriority
	}

	now := s.clock.Now()
	ticket := domain.Ticket{
		ID:        s.genID.Generate(),
		UserID:    req.UserID,
		OrderID:   req.OrderID,
		ServerID:  req.ServerID,
		Subject:   subject,
		Priority:  priority,
		Status:    domain.StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	msg := domain.TicketMessage{
		ID:        s.genID.Generate(),
		TicketID:  ticket.ID,
		UserID:    req.UserID,
		Body:      body,
		CreatedAt: now,
	}

	err := db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.tickets.WithTrx(tx).Create(ctx, &ticket); err != nil {
				return err
			}
			return s.messages.WithTrx(tx).Create(ctx, &msg)
		})
	})
	if err != nil {
		return domain.Ticket{}, err
	}

	s.log.Info("ticket opened",
		zap.String("ticket_id", ticket.ID.String()),
		zap.String("user_id", ticket.UserID.String()),
		zap.String("priority", string(ticket.Priority)),
	)
	return ticket, nil
}

func (s *Service) Reply(ctx context.Context, req domain.ReplyRequest) (domain.TicketMessage, error) {
	ticketID, err := parseID(req.TicketID)
	if err != nil {
		return domain.TicketMessage{}, err
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return domain.TicketMessage{}, domain.ErrInvalidMessage
	}

	status := domain.StatusOpen
	if req.IsStaff {
		status = domain.StatusAnswered
	}
	now := s.clock.Now()
	msg := domain.TicketMessage{
		ID:        s.genID.Generate(),
		TicketID:  ticketID,
		UserID:    req.UserID,
		Body:      body,
		IsStaff:   req.IsStaff,
		CreatedAt: now,
	}

	var ticket *domain.Ticket
	err = db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			ticket, err = s.tickets.WithTrx(tx).FindByID(ctx, int64(ticketID))
			if err != nil {
				return err
			}
			if ticket == nil || (!req.IsStaff && ticket.UserID != req.UserID) {
				return domain.ErrNotFound
			}
			if err := s.messages.WithTrx(tx).Create(ctx, &msg); err != nil {
				return err
			}
			_, err = s.tickets.WithTrx(tx).Update(ctx, int64(ticketID), map[string]any{
				"status":     status,
				"updated_at": now,
			})
			return err
		})
	})
	if err != nil {
		return domain.TicketMessage{}, err
	}

	if req.IsStaff {
		s.notifyUpdated(ctx, ticket.UserID, ticket.Subject, status)
	}
	return msg, nil
}

func (s *Service) SetStatus(ctx context.Context, id string, status domain.Status) (domain.Ticket, error) {
	if !status.Valid() {
		return domain.Ticket{}, domain.ErrInvalidStatus
	}
	ticketID, err := parseID(id)
	if err != nil {
		return domain.Ticket{}, err
	}

	var affected int64
	err = db.Retry(ctx, func(ctx context.Context) error {
		var err error
		affected, err = s.tickets.Update(ctx, int64(ticketID), map[string]any{
			"status":     status,
			"updated_at": s.clock.Now(),
		})
		return err
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	if affected == 0 {
		return domain.Ticket{}, domain.ErrNotFound
	}

	thread, err := s.Get(ctx, id)
	if err != nil {
		return domain.Ticket{}, err
	}
	s.notifyUpdated(ctx, thread.UserID, thread.Subject, status)
	return thread.Ticket, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Thread, error) {
	ticketID, err := parseID(id)
	if err != nil {
		return domain.Thread{}, err
	}

	var (
		ticket   *domain.Ticket
		messages []*domain.TicketMessage
	)
	err = db.Retry(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.tickets.FindByID(ctx, int64(ticketID))
		if err != nil || ticket == nil {
			return err
		}
		messages, err = s.messages.Find(ctx, &domain.TicketMessage{TicketID: ticketID},
			option.WithOrder("created_at asc, id asc"),
		)
		return err
	})
	if err != nil {
		return domain.Thread{}, err
	}
	if ticket == nil {
		return domain.Thread{}, domain.ErrNotFound
	}

	thread := domain.Thread{Ticket: *ticket, Messages: make([]domain.TicketMessage, 0, len(messages))}
	for _, m := range messages {
		thread.Messages = append(thread.Messages, *m)
	}
	return thread, nil
}

func (s *Service) GetForUser(ctx context.Context, userID snowflake.ID, id string) (domain.Thread, error) {
	thread, err := s.Get(ctx, id)
	if err != nil {
		return domain.Thread{}, err
	}
	if thread.UserID != userID {
		return domain.Thread{}, domain.ErrNotFound
	}
	return thread, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTicketsRequest) (domain.ListTicketsResponse, error) {
	if req.Status != "" && !req.Status.Valid() {
		return domain.ListTicketsResponse{}, domain.ErrInvalidStatus
	}
	offset, err := req.Pagination.Offset()
	if err != nil {
		return domain.ListTicketsResponse{}, err
	}

	var items []*domain.Ticket
	err = db.Retry(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.tickets.Find(ctx, &domain.Ticket{UserID: req.UserID, Status: req.Status},
			option.WithOrder("updated_at desc, id desc"),
			option.WithOffset(offset),
			option.WithLimit(req.Pagination.Limit()+1),
		)
		return err
	})
	if err != nil {
		return domain.ListTicketsResponse{}, err
	}

	items, pageInfo := pagination.BuildPageInfo(items, req.Pagination, offset)
	tickets := make([]domain.Ticket, 0, len(items))
	for _, item := range items {
		tickets = append(tickets, *item)
	}
	return domain.ListTicketsResponse{PageInfo: pageInfo, Tickets: tickets}, nil
}

func (s *Service) Count(ctx context.Context, status domain.Status) (int64, error) {
	var count int64
	err := db.Retry(ctx, func(ctx context.Context) error {
		var err error
		count, err = s.tickets.Count(ctx, &domain.Ticket{Status: status})
		return err
	})
	return count, err
}

func (s *Service) notifyUpdated(ctx context.Context, userID snowflake.ID, subject string, status domain.Status) {
	s.notifier.Notify(ctx, notification.Message{
		UserID:   userID,
		Template: notification.TemplateTicketUpdated,
		Data: map[string]any{
			"subject": subject,
			"status":  string(status),
		},
	})
}

func parseID(value string) (snowflake.ID, error) {
	id, err := userservice.ParseID(value)
	if err != nil {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
