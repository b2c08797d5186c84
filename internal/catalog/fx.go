package catalog

import (
	"github.com/smallbiznis/cloudnest/internal/catalog/domain"
	"github.com/smallbiznis/cloudnest/internal/catalog/service"
	"github.com/smallbiznis/cloudnest/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(
		repository.ProvideStore[domain.Plan],
		repository.ProvideStore[domain.AddOn],
		repository.ProvideStore[domain.DataCenter],
	),
	fx.Provide(service.New),
)
