package main

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/verdantgrid/h2ledger/internal/observability"
	"github.com/verdantgrid/h2ledger/internal/server"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		server.Module,
	)

	app.Run()
}

// RegisterSnowflake provides the node used for audit transaction ids.
func RegisterSnowflake() (*snowflake.Node, error) {
	nodeID := int64(1)
	if raw := os.Getenv("SNOWFLAKE_NODE_ID"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			nodeID = parsed
		}
	}
	return snowflake.NewNode(nodeID)
}
