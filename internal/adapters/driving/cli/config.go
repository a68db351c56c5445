package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/mmtf-derive/internal/adapters/driven/config"
	"github.com/custodia-labs/mmtf-derive/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mmtf-derive/internal/filter"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	Long: `View and change the TOML configuration file.

Keys use dot notation for nested tables, e.g. extract.all_models.
Filters and deriver options are edited in the file itself.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored values and the resulting pipeline configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Sets and saves a configuration value. Values are stored as booleans,
integers or numbers when they parse as one, comma-separated values as
lists, and as strings otherwise.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := ensureConfig(); err != nil {
			return err
		}
		cmd.Println(configStore.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if err := ensureConfig(); err != nil {
		return err
	}

	cmd.Println(titleStyle.Render("Configuration") + " " + mutedStyle.Render(configStore.Path()))
	keys := configStore.Keys()
	if len(keys) == 0 {
		cmd.Println(mutedStyle.Render("  (no values set, using defaults)"))
	}
	for _, key := range keys {
		val, _ := configStore.Get(key)
		cmd.Printf("  %s = %s\n", key, formatValue(val))
	}
	cmd.Println()

	cfg, err := configStore.PipelineConfig()
	if err != nil {
		cmd.Println(warningStyle.Render(fmt.Sprintf("Warning: %v", err)))
		return nil
	}

	cmd.Println(titleStyle.Render("Pipeline"))
	cmd.Println(row("Partitions", count(cfg.PartitionCount)))
	cmd.Println(row("Workers", count(cfg.EffectiveWorkers())))
	names := make([]string, len(cfg.Derivers))
	for i, d := range cfg.Derivers {
		names[i] = d.Name
	}
	cmd.Println(row("Derivers", strings.Join(names, ", ")))
	for _, p := range cfg.Filters {
		cmd.Printf("  filter %s %s\n", mutedStyle.Render(string(filter.TargetOf(p))), filter.String(p))
	}
	cmd.Println()
	cmd.Println(successStyle.Render("Configuration is valid."))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if err := ensureConfig(); err != nil {
		return err
	}
	key, val := args[0], parseValue(args[1])
	if s, ok := val.(string); ok && key == config.KeyDerivers {
		val = []string{s}
	}

	// Validate on a scratch copy so the file never holds an invalid value.
	scratch := memory.NewConfigStore()
	for _, k := range configStore.Keys() {
		v, _ := configStore.Get(k)
		_ = scratch.Set(k, v)
	}
	_ = scratch.Set(key, val)
	if _, err := scratch.PipelineConfig(); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	if err := configStore.Set(key, val); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	cmd.Printf("Set %s = %s\n", key, formatValue(val))
	return nil
}

// parseValue converts a command-line value to the narrowest type it
// parses as.
func parseValue(s string) any {
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// formatValue renders a stored value on one line.
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return strconv.Quote(val)
	case []any, []string, map[string]any:
		var node yaml.Node
		if err := node.Encode(val); err != nil {
			return fmt.Sprint(val)
		}
		node.Style = yaml.FlowStyle
		out, err := yaml.Marshal(&node)
		if err != nil {
			return fmt.Sprint(val)
		}
		return strings.TrimSpace(string(out))
	default:
		return fmt.Sprint(val)
	}
}
