// Command rollup-indexer runs the multi-chain bridge event indexer
// described in §1: discover rollups from an L1 rollup manager, index
// their bridge and Transfer events into DuckDB, and serve the results
// over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/common"
	gethlog "github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/rollupfed/indexer/internal/supervisor"
)

const defaultRollupManager = "0x5132A183E9F3CB7C848b0AAC5Ae0c4f0491B7aB2"

func main() {
	app := &cli.App{
		Name:  "rollup-indexer",
		Usage: "index bridge and transfer events across an L1 and its rollups into DuckDB",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "rpc-url",
				Usage:    "L1 JSON-RPC endpoint",
				Required: true,
				EnvVars:  []string{"ROLLUP_INDEXER_RPC_URL"},
			},
			&cli.StringFlag{
				Name:    "http-addr",
				Usage:   "address the HTTP query surface listens on",
				Value:   "0.0.0.0:3000",
				EnvVars: []string{"ROLLUP_INDEXER_HTTP_ADDR"},
			},
			&cli.StringFlag{
				Name:    "db-path",
				Usage:   "DuckDB file path",
				Value:   "data.duckdb",
				EnvVars: []string{"ROLLUP_INDEXER_DB_PATH"},
			},
			&cli.BoolFlag{
				Name:  "in-memory",
				Usage: "use an in-memory DuckDB database instead of db-path",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "trace, debug, info, warn, error, or crit",
				Value: "info",
			},
		},
		Args:      true,
		ArgsUsage: "[rollup-manager-address]",
		Action:    run,
	}

	if err := app.Run(os.Args); err != nil {
		gethlog.Crit("rollup-indexer exited with error", "err", err)
	}
}

func run(c *cli.Context) error {
	lvl, err := levelFromString(c.String("log-level"))
	if err != nil {
		return err
	}
	usecolor := term.IsTerminal(int(os.Stderr.Fd()))
	glogger := gethlog.NewGlogHandler(gethlog.NewTerminalHandler(os.Stderr, usecolor))
	glogger.Verbosity(lvl)
	gethlog.SetDefault(gethlog.NewLogger(glogger))

	managerAddrStr := defaultRollupManager
	if c.Args().Len() > 0 {
		managerAddrStr = c.Args().Get(0)
	}
	if !common.IsHexAddress(managerAddrStr) {
		return fmt.Errorf("invalid rollup-manager-address %q", managerAddrStr)
	}

	cfg := supervisor.Config{
		L1RPCURL:          c.String("rpc-url"),
		RollupManagerAddr: common.HexToAddress(managerAddrStr),
		HTTPAddr:          c.String("http-addr"),
		DBPath:            c.String("db-path"),
		InMemory:          c.Bool("in-memory"),
	}

	return supervisor.Run(context.Background(), cfg)
}

// levelFromString maps the --log-level flag onto the handful of slog levels
// the geth log package defines, since the package itself only parses the
// legacy integer verbosity scale.
func levelFromString(s string) (slog.Level, error) {
	switch s {
	case "trace":
		return gethlog.LevelTrace, nil
	case "debug":
		return gethlog.LevelDebug, nil
	case "info":
		return gethlog.LevelInfo, nil
	case "warn":
		return gethlog.LevelWarn, nil
	case "error":
		return gethlog.LevelError, nil
	case "crit":
		return gethlog.LevelCrit, nil
	default:
		return 0, fmt.Errorf("invalid log-level %q", s)
	}
}
