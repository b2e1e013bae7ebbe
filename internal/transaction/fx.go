package transaction

import (
	subscriptionservice "github.com/smallbiznis/communa/internal/subscription/service"
	"github.com/smallbiznis/communa/internal/transaction/repository"
	"github.com/smallbiznis/communa/internal/transaction/service"
	"go.uber.org/fx"
)

var Module = fx.Module("transaction",
	fx.Provide(
		repository.NewRepository,
		func(s *subscriptionservice.Service) service.SubscriptionResolver { return s },
		service.New,
	),
)
