package cli

import (
	"context"
	"os"

	"github.com/blockwatch-gateway/gateway/internal/gateway"
	"github.com/blockwatch-gateway/gateway/internal/walletregistry"

	"github.com/urfave/cli/v3"
)

// Run initializes and executes the gateway CLI application.
//
// It registers all available commands, including:
//
//   - `start`: Starts every configured chain's poller and the transports.
//   - `watch`: Registers a wallet in the supplemental subscription audit log.
//   - `unwatch`: Removes a wallet from the subscription audit log.
//
// Parameters:
//   - ctx: Context used to control the lifecycle of the CLI application.
//   - wr: The walletregistry service backing the watch/unwatch commands.
//   - gw: The gateway service started by the start command.
//
// This function sets up shell completion and invokes the CLI framework to parse and run commands.
func Run(ctx context.Context, wr walletregistry.Service, gw gateway.Service) error {
	app := &cli.Command{
		EnableShellCompletion: true,
		Name:                  "gateway",
		Description:           "Command-line interface for managing and running the blockchain indexer gateway.",
		Usage:                 "gateway [command] [flags]",
		Commands: []*cli.Command{
			startPipelineCommand(gw),
			startWatchingWalletCommand(wr),
			stopWatchingWalletCommand(wr),
		},
	}

	return app.Run(ctx, os.Args)
}
