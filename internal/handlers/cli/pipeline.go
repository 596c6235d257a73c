package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/blockwatch-gateway/gateway/internal/gateway"
	"github.com/blockwatch-gateway/gateway/internal/pkg/x/chflow"

	"github.com/urfave/cli/v3"
)

// startPipelineCommand returns a CLI command that starts every configured
// chain's height poller and the transport handlers sitting in front of them.
//
// Usage example:
//
//	gateway start
//
// The process runs indefinitely until it receives an interrupt (SIGINT or SIGTERM).
func startPipelineCommand(gw gateway.Service) *cli.Command {
	return &cli.Command{
		Name:        "start",
		Description: "Starts the gateway: every chain's height poller plus the HTTP/WS transports.",
		Usage:       "Initializes and runs the full pipeline. Terminates gracefully on Ctrl+C or termination signals.",
		Action: func(ctx context.Context, c *cli.Command) error {
			quit := make(chan os.Signal, 1)
			defer close(quit)

			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			if err := gw.Start(ctx); err != nil {
				return err
			}
			defer gw.Close()

			// Waits for a signal, but also returns if ctx is canceled out
			// from under us (e.g. a parent process tearing the pipeline
			// down programmatically) rather than blocking forever.
			chflow.Receive(ctx, quit)
			return nil
		},
	}
}
