package webhookevent

import (
	"github.com/smallbiznis/communa/internal/webhookevent/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook.event",
	fx.Provide(
		repository.NewRepository,
	),
)
