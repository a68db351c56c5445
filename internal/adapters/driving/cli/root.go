package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mmtf-derive/internal/adapters/driven/config/file"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
	"github.com/custodia-labs/mmtf-derive/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=v1.2.3".
var version = "dev"

var (
	verbose    bool
	configPath string
)

// Injected services.
var (
	configStore    driven.ConfigStore
	sourceFactory  driven.SourceFactory
	deriverFactory driven.DeriverFactory
)

// Services holds the dependencies the commands use.
type Services struct {
	Config   driven.ConfigStore
	Sources  driven.SourceFactory
	Derivers driven.DeriverFactory
}

// SetServices injects the services used by every command. A nil Config
// is opened from --config (or the default path) by the commands that
// need it.
func SetServices(s Services) {
	configStore = s.Config
	sourceFactory = s.Sources
	deriverFactory = s.Derivers
}

var rootCmd = &cobra.Command{
	Use:   "mmtf-derive",
	Short: "Decode MMTF structures and derive per-chain datasets",
	Long: `mmtf-derive decodes macromolecular structures in MMTF format, filters
them by experimental quality and chain type, extracts polymer chains and
derives per-chain records such as DSSP secondary structure in Q8 and Q3
form.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.mmtf-derive/config.toml)")
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	logger.SetOutput(cmd.ErrOrStderr())
	return nil
}

// ensureConfig opens the config file named by --config, or the default
// file when no store was injected.
func ensureConfig() error {
	if configStore != nil && (configPath == "" || configStore.Path() == configPath) {
		return nil
	}
	var (
		store *file.ConfigStore
		err   error
	)
	if configPath != "" {
		store, err = file.Open(configPath)
	} else {
		store, err = file.NewConfigStore("")
	}
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	configStore = store
	logger.Debug("Using config %s", store.Path())
	return nil
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func requireServices() error {
	if err := ensureConfig(); err != nil {
		return err
	}
	if sourceFactory == nil {
		return errors.New("source factory not configured")
	}
	return nil
}
