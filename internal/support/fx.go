package support

import (
	"github.com/smallbiznis/cloudnest/internal/support/domain"
	"github.com/smallbiznis/cloudnest/internal/support/service"
	"github.com/smallbiznis/cloudnest/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("support.service",
	fx.Provide(
		repository.ProvideStore[domain.Ticket],
		repository.ProvideStore[domain.TicketMessage],
	),
	fx.Provide(service.New),
)
