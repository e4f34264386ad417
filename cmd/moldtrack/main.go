package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopfloor/moldtrack/internal/clock"
	"github.com/shopfloor/moldtrack/internal/config"
	"github.com/shopfloor/moldtrack/internal/logger"
	"github.com/shopfloor/moldtrack/internal/migration"
	"github.com/shopfloor/moldtrack/internal/observability"
	"github.com/shopfloor/moldtrack/internal/server"
	"github.com/shopfloor/moldtrack/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
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
