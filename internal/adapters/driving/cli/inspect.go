package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/mmtf-derive/internal/connectors/filesystem"
	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/services"
	"github.com/custodia-labs/mmtf-derive/internal/mmtf"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the contents of one MMTF file",
	Long: `Decodes a single .mmtf or .mmtf.gz file and prints its header and
polymer chains. With --derive the configured derivers run on every chain
and their fields are included.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var (
	inspectFormat    string
	inspectDerive    bool
	inspectAllModels bool
)

func init() {
	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "text", "Output format: text, yaml or json")
	inspectCmd.Flags().BoolVar(&inspectDerive, "derive", false, "Run the configured derivers on each chain")
	inspectCmd.Flags().BoolVar(&inspectAllModels, "all-models", false, "List chains of every model")
	rootCmd.AddCommand(inspectCmd)
}

// structureReport is the inspect output.
type structureReport struct {
	ID          string        `yaml:"id" json:"id"`
	Title       string        `yaml:"title,omitempty" json:"title,omitempty"`
	Methods     []string      `yaml:"methods,omitempty" json:"methods,omitempty"`
	Resolution  *float64      `yaml:"resolution,omitempty" json:"resolution,omitempty"`
	RFree       *float64      `yaml:"rFree,omitempty" json:"rFree,omitempty"`
	RWork       *float64      `yaml:"rWork,omitempty" json:"rWork,omitempty"`
	ReleaseDate string        `yaml:"releaseDate,omitempty" json:"releaseDate,omitempty"`
	Version     string        `yaml:"mmtfVersion,omitempty" json:"mmtfVersion,omitempty"`
	Size        string        `yaml:"size" json:"size"`
	Models      int           `yaml:"models" json:"models"`
	Chains      int           `yaml:"chains" json:"chains"`
	Groups      int           `yaml:"groups" json:"groups"`
	Atoms       int           `yaml:"atoms" json:"atoms"`
	Polymers    []chainReport `yaml:"polymers" json:"polymers"`
}

type chainReport struct {
	Key         string         `yaml:"key" json:"key"`
	PolymerType string         `yaml:"polymerType" json:"polymerType"`
	Length      int            `yaml:"length" json:"length"`
	Sequence    string         `yaml:"sequence" json:"sequence"`
	Derived     map[string]any `yaml:"derived,omitempty" json:"derived,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	rec, err := filesystem.ReadRecord(args[0])
	if err != nil {
		return err
	}

	if err := ensureConfig(); err != nil {
		return err
	}
	cfg, err := configStore.PipelineConfig()
	if err != nil {
		return fmt.Errorf("load pipeline config: %w", err)
	}

	s, err := mmtf.NewDecoder(mmtf.WithDivisorOverride(cfg.DivisorOverride)).Decode(rec.Content)
	if err != nil {
		return err
	}

	extract := cfg.Extract
	if cmd.Flags().Changed("all-models") {
		extract.AllModels = inspectAllModels
	}
	report := newStructureReport(s, len(rec.Content))
	for chain := range services.ExtractPolymerChains(s, extract) {
		cr := chainReport{
			Key:         chain.Key,
			PolymerType: string(chain.PolymerType),
			Length:      len(chain.Sequence),
			Sequence:    chain.Sequence,
		}
		if inspectDerive {
			if deriverFactory == nil {
				return fmt.Errorf("deriver factory not configured")
			}
			d, err := deriverFactory.Build(cfg.Derivers)
			if err != nil {
				return err
			}
			derived, err := d.Derive(cmd.Context(), chain)
			if err != nil {
				return err
			}
			cr.Derived = derivedFields(derived)
		}
		report.Polymers = append(report.Polymers, cr)
	}

	return writeReport(cmd.OutOrStdout(), report, inspectFormat)
}

func newStructureReport(s *domain.Structure, size int) structureReport {
	opt := func(v domain.OptionalFloat) *float64 {
		if !v.Valid {
			return nil
		}
		f := v.Value
		return &f
	}
	return structureReport{
		ID:          s.ID,
		Title:       s.Title,
		Methods:     s.ExperimentalMethods,
		Resolution:  opt(s.Resolution),
		RFree:       opt(s.RFree),
		RWork:       opt(s.RWork),
		ReleaseDate: s.ReleaseDate,
		Version:     s.MMTFVersion,
		Size:        humanize.Bytes(uint64(size)),
		Models:      s.NumModels(),
		Chains:      s.NumChains(),
		Groups:      s.NumGroups(),
		Atoms:       s.NumAtoms(),
	}
}

// derivedFields returns the flat record without the fields the report
// already shows.
func derivedFields(rec domain.ChainRecord) map[string]any {
	flat := rec.Flat()
	for _, k := range []string{domain.FieldStructureID, domain.FieldChainID, domain.FieldKey, domain.FieldSequence} {
		delete(flat, k)
	}
	return flat
}

func writeReport(w io.Writer, r structureReport, format string) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "text":
		writeText(w, r)
		return nil
	default:
		return fmt.Errorf("%w: unknown format %q", domain.ErrInvalidInput, format)
	}
}

func writeText(w io.Writer, r structureReport) {
	fmt.Fprintln(w, titleStyle.Render(r.ID)+" "+mutedStyle.Render(r.Title))
	fmt.Fprintln(w, row("Methods", strings.Join(r.Methods, ", ")))
	if r.Resolution != nil {
		fmt.Fprintln(w, row("Resolution", fmt.Sprintf("%.2f Å", *r.Resolution)))
	}
	if r.RFree != nil {
		fmt.Fprintln(w, row("R-free", fmt.Sprintf("%.3f", *r.RFree)))
	}
	fmt.Fprintln(w, row("Size", r.Size))
	fmt.Fprintln(w, row("Models", count(r.Models)))
	fmt.Fprintln(w, row("Chains", count(r.Chains)))
	fmt.Fprintln(w, row("Groups", count(r.Groups)))
	fmt.Fprintln(w, row("Atoms", count(r.Atoms)))
	fmt.Fprintln(w)
	for _, c := range r.Polymers {
		fmt.Fprintf(w, "%s %s %s\n", titleStyle.Render(c.Key), mutedStyle.Render(c.PolymerType), count(c.Length))
		fmt.Fprintf(w, "  %s\n", c.Sequence)
		if q3, ok := c.Derived[domain.FieldQ3].(string); ok && q3 != "" {
			fmt.Fprintf(w, "  %s\n", q3)
		}
	}
}
