package connectedaccount

import (
	"github.com/smallbiznis/communa/internal/connectedaccount/repository"
	"github.com/smallbiznis/communa/internal/connectedaccount/service"
	"go.uber.org/fx"
)

var Module = fx.Module("connectedaccount",
	fx.Provide(
		repository.NewRepository,
		service.New,
	),
)
