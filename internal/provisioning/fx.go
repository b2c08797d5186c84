package provisioning

import (
	"github.com/smallbiznis/cloudnest/internal/provisioning/repository"
	"github.com/smallbiznis/cloudnest/internal/provisioning/service"
	"go.uber.org/fx"
)

var Module = fx.Module("provisioning.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
