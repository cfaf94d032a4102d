package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/worldcitisim/affiliates/internal/affiliate"
	"github.com/worldcitisim/affiliates/internal/attribution"
	"github.com/worldcitisim/affiliates/internal/audit"
	"github.com/worldcitisim/affiliates/internal/clock"
	"github.com/worldcitisim/affiliates/internal/commission"
	"github.com/worldcitisim/affiliates/internal/config"
	"github.com/worldcitisim/affiliates/internal/export"
	"github.com/worldcitisim/affiliates/internal/identity"
	"github.com/worldcitisim/affiliates/internal/ledger"
	"github.com/worldcitisim/affiliates/internal/migration"
	"github.com/worldcitisim/affiliates/internal/observability"
	"github.com/worldcitisim/affiliates/internal/providers/qr"
	"github.com/worldcitisim/affiliates/internal/server"
	"github.com/worldcitisim/affiliates/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		audit.Module,
		identity.Module,
		ledger.Module,
		affiliate.Module,
		attribution.Module,
		commission.Module,
		export.Module,
		qr.Module,

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
