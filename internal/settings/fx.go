package settings

import (
	"github.com/smallbiznis/cloudnest/internal/settings/domain"
	"github.com/smallbiznis/cloudnest/internal/settings/service"
	"github.com/smallbiznis/cloudnest/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("settings.service",
	fx.Provide(
		repository.ProvideStore[domain.SiteSettings],
		repository.ProvideStore[domain.ContactMessage],
	),
	fx.Provide(service.New),
)
