package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mmtf-derive/internal/adapters/driven/config"
	"github.com/custodia-labs/mmtf-derive/internal/adapters/driven/sink/jsonl"
	"github.com/custodia-labs/mmtf-derive/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
	"github.com/custodia-labs/mmtf-derive/internal/core/services"
	"github.com/custodia-labs/mmtf-derive/internal/filter"
	"github.com/custodia-labs/mmtf-derive/internal/logger"
	"github.com/custodia-labs/mmtf-derive/internal/mmtf"
)

var runCmd = &cobra.Command{
	Use:   "run <source>",
	Short: "Derive per-chain records from a structure collection",
	Long: `Decodes every structure of a source, applies the configured filters,
extracts polymer chains and runs the configured derivers. Records are
written as JSON lines.

A source is written as type:location:
  filesystem:/data/mmtf     directory of .mmtf and .mmtf.gz files
  rcsb:1STP,4HHB            download from the RCSB PDB
  sqlite:./archive.db       records stored with 'fetch --archive'
A bare path is read as a filesystem directory.

Flags override the values in the config file.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runPartitions    int
	runWorkers       int
	runOut           string
	runMaxResolution float64
	runMaxRFree      float64
	runMethods       []string
	runChainTypes    []string
	runMinLength     int
	runDerivers      []string
	runAllModels     bool
	runUseChainID    bool
	runExcludeDups   bool
	runSourceOpts    map[string]string
	runWatch         bool
	runNoHistory     bool
	manifestDB       string
)

func init() {
	f := runCmd.Flags()
	f.IntVarP(&runPartitions, "partitions", "p", 0, "Number of partitions")
	f.IntVarP(&runWorkers, "workers", "w", 0, "Partitions processed concurrently (default: number of CPUs)")
	f.StringVarP(&runOut, "out", "o", "", "Output file for JSON lines, - for stdout")
	f.Float64Var(&runMaxResolution, "max-resolution", 0, "Keep structures with resolution at most this (Å)")
	f.Float64Var(&runMaxRFree, "max-rfree", 0, "Keep structures with R-free at most this")
	f.StringSliceVar(&runMethods, "method", nil, "Keep structures solved by any of these experimental methods")
	f.StringSliceVar(&runChainTypes, "chain-type", nil, "Keep chains of these polymer types (protein, dna, rna, saccharide)")
	f.IntVar(&runMinLength, "min-length", 0, "Keep chains with at least this many residues")
	f.StringSliceVarP(&runDerivers, "derivers", "d", nil, "Derivers to run, in order")
	f.BoolVar(&runAllModels, "all-models", false, "Extract chains from every model")
	f.BoolVar(&runUseChainID, "use-chain-id", false, "Name chains by label id instead of author name")
	f.BoolVar(&runExcludeDups, "exclude-duplicates", false, "Keep one chain per distinct sequence within a structure")
	f.StringToStringVar(&runSourceOpts, "source-opt", nil, "Source option key=value (e.g. rate=2, debounce=250ms)")
	f.BoolVar(&runWatch, "watch", false, "Keep running and process records as the source reports them")
	f.BoolVar(&runNoHistory, "no-history", false, "Do not record the run in the run database")
	f.StringVar(&manifestDB, "manifest-db", "", "Run database path (default ~/.mmtf-derive/data/runs.db)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) (err error) {
	if err := requireServices(); err != nil {
		return err
	}
	ctx := cmd.Context()

	spec, err := domain.ParseSourceSpec(args[0])
	if err != nil {
		return err
	}
	spec.Options = runSourceOpts

	cfg, err := configStore.PipelineConfig()
	if err != nil {
		return fmt.Errorf("load pipeline config: %w", err)
	}
	applyRunFlags(cmd, &cfg)

	decoder := mmtf.NewDecoder(mmtf.WithDivisorOverride(cfg.DivisorOverride))
	pipeline, err := services.NewPipeline(decoder, deriverFactory, cfg)
	if err != nil {
		return err
	}

	if !runNoHistory {
		store, err := openRunStore()
		if err != nil {
			return err
		}
		defer store.Close()
		pipeline.SetManifestStore(store.ManifestStore())
	}

	src, err := sourceFactory.Create(ctx, spec)
	if err != nil {
		return err
	}
	defer src.Close()

	out := runOut
	if out == "" {
		out = configStore.GetString(config.KeyOutput)
	}
	if out == "" {
		out = "-"
	}
	sink, err := jsonl.Create(out)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer func() {
		err = errors.Join(err, sink.Close())
	}()

	logger.Info("Running %s with %d partitions", spec, cfg.PartitionCount)

	if runWatch {
		ws, ok := src.(driven.WatchSource)
		if !ok {
			return fmt.Errorf("%w: %s sources cannot be watched", domain.ErrInvalidInput, spec.Type)
		}
		cmd.PrintErrf("Watching %s (Ctrl+C to stop)\n", spec)
		pipeline.SetStatusReporter(services.DefaultStatusInterval, func(st domain.RunStatus) {
			cmd.PrintErrln(renderWatchStatus(st))
		})
		manifest, err := pipeline.Watch(ctx, ws, sink)
		cmd.PrintErrln(renderWatchStatus(pipeline.Status()))
		cmd.PrintErrf("Wrote %s records\n", count(sink.Count()))
		if len(manifest) > 0 {
			cmd.PrintErrln(renderManifest(manifest, maxManifestLines))
		}
		return err
	}

	res, err := pipeline.RunTo(ctx, src, sink)
	if res != nil {
		printSummary(cmd.ErrOrStderr(), res)
	}
	return err
}

// applyRunFlags overrides cfg with the flags set on the command line.
// Quality and chain flags add filters to the configured ones.
func applyRunFlags(cmd *cobra.Command, cfg *domain.PipelineConfig) {
	flags := cmd.Flags()
	if flags.Changed("partitions") {
		cfg.PartitionCount = runPartitions
	}
	if flags.Changed("workers") {
		cfg.Workers = runWorkers
	}
	if flags.Changed("all-models") {
		cfg.Extract.AllModels = runAllModels
	}
	if flags.Changed("use-chain-id") {
		cfg.Extract.UseChainID = runUseChainID
	}
	if flags.Changed("exclude-duplicates") {
		cfg.Extract.ExcludeDuplicates = runExcludeDups
	}
	if flags.Changed("derivers") {
		cfg.Derivers = make([]domain.DeriverSpec, len(runDerivers))
		for i, name := range runDerivers {
			cfg.Derivers[i] = domain.DeriverSpec{Name: name}
		}
	}

	if flags.Changed("max-resolution") {
		cfg.Filters = append(cfg.Filters, filter.Resolution(0, runMaxResolution))
	}
	if flags.Changed("max-rfree") {
		cfg.Filters = append(cfg.Filters, filter.RFree(0, runMaxRFree))
	}
	if len(runMethods) > 0 {
		cfg.Filters = append(cfg.Filters, filter.ExperimentalMethod(runMethods...))
	}
	if len(runChainTypes) > 0 {
		types := make([]domain.PolymerType, len(runChainTypes))
		for i, t := range runChainTypes {
			types[i] = domain.PolymerType(strings.ToLower(t))
		}
		cfg.Filters = append(cfg.Filters, filter.ChainType(types...))
	}
	if flags.Changed("min-length") {
		cfg.Filters = append(cfg.Filters, filter.MinLength(runMinLength))
	}
}

// openRunStore opens the run database named by --manifest-db, the
// manifest_db config key, or the default location.
func openRunStore() (*sqlite.Store, error) {
	path := manifestDB
	if path == "" {
		if err := ensureConfig(); err != nil {
			return nil, err
		}
		path = configStore.GetString(config.KeyManifestDB)
	}
	if path == "" {
		return sqlite.NewStore("")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return sqlite.Open(path)
}
