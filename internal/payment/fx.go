package payment

import (
	"github.com/smallbiznis/cloudnest/internal/payment/repository"
	"github.com/smallbiznis/cloudnest/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
