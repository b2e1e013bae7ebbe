package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/communa/internal/config"
	"github.com/smallbiznis/communa/internal/connectedaccount"
	"github.com/smallbiznis/communa/internal/logger"
	"github.com/smallbiznis/communa/internal/migration"
	"github.com/smallbiznis/communa/internal/observability"
	"github.com/smallbiznis/communa/internal/ratelimit"
	"github.com/smallbiznis/communa/internal/server"
	"github.com/smallbiznis/communa/internal/subscription"
	"github.com/smallbiznis/communa/internal/tenant"
	"github.com/smallbiznis/communa/internal/transaction"
	"github.com/smallbiznis/communa/internal/webhook"
	"github.com/smallbiznis/communa/internal/webhook/reprocess"
	"github.com/smallbiznis/communa/internal/webhookevent"
	"github.com/smallbiznis/communa/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		ratelimit.Module,

		tenant.Module,
		webhookevent.Module,
		subscription.Module,
		transaction.Module,
		connectedaccount.Module,
		webhook.Module,
		reprocess.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
