package notification

import (
	"github.com/smallbiznis/cloudnest/internal/providers/email"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	email.Module,
	fx.Provide(
		New,
		func(q *Queue) Notifier { return q },
	),
)
