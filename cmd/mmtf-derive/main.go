// Command mmtf-derive decodes MMTF structure collections and derives
// per-chain datasets.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/mmtf-derive/internal/adapters/driving/cli"
	"github.com/custodia-labs/mmtf-derive/internal/connectors"
	"github.com/custodia-labs/mmtf-derive/internal/derivers"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetServices(cli.Services{
		Sources:  connectors.NewFactory(),
		Derivers: derivers.NewDefaultRegistry(),
	})

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
