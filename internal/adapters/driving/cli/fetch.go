package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/mmtf-derive/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/mmtf-derive/internal/connectors/rcsb"
	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <id>...",
	Short: "Download structures from the RCSB PDB",
	Long: `Downloads MMTF records by PDB ID into a directory (--out-dir) or a
record archive (--archive). Downloads are rate limited and retried on
server errors. IDs may also be read from a file with --ids-from.`,
	RunE: runFetch,
}

var (
	fetchOutDir  string
	fetchArchive string
	fetchIDsFrom string
	fetchRate    float64
	fetchBaseURL string
)

func init() {
	fetchCmd.Flags().StringVar(&fetchOutDir, "out-dir", "", "Directory to write <id>.mmtf.gz files to")
	fetchCmd.Flags().StringVar(&fetchArchive, "archive", "", "SQLite archive to store records in")
	fetchCmd.Flags().StringVar(&fetchIDsFrom, "ids-from", "", "File with whitespace or comma separated IDs")
	fetchCmd.Flags().Float64Var(&fetchRate, "rate", rcsb.DefaultRate, "Requests per second")
	fetchCmd.Flags().StringVar(&fetchBaseURL, "base-url", rcsb.DefaultBaseURL, "Download endpoint")
	fetchCmd.MarkFlagsMutuallyExclusive("out-dir", "archive")
	fetchCmd.MarkFlagsOneRequired("out-dir", "archive")
	rootCmd.AddCommand(fetchCmd)
}

// recordWriter stores one downloaded record.
type recordWriter func(rec domain.RawRecord) error

func runFetch(cmd *cobra.Command, args []string) error {
	ids := append([]string(nil), args...)
	if fetchIDsFrom != "" {
		data, err := os.ReadFile(fetchIDsFrom)
		if err != nil {
			return fmt.Errorf("read IDs: %w", err)
		}
		ids = append(ids, splitIDs(string(data))...)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: no structure IDs given", domain.ErrInvalidInput)
	}

	var write recordWriter
	if fetchArchive != "" {
		store, err := sqlite.Open(fetchArchive)
		if err != nil {
			return err
		}
		defer store.Close()
		archive := store.Archive()
		write = func(rec domain.RawRecord) error {
			return archive.Put(cmd.Context(), rec)
		}
	} else {
		if err := os.MkdirAll(fetchOutDir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		write = func(rec domain.RawRecord) error {
			return os.WriteFile(filepath.Join(fetchOutDir, fileName(rec)), rec.Content, 0644)
		}
	}

	conn := rcsb.New(ids, rcsb.WithBaseURL(fetchBaseURL), rcsb.WithRate(fetchRate))
	defer conn.Close()

	var (
		fetched int
		total   uint64
		errs    []error
	)
	recordsCh, errsCh := conn.Records(cmd.Context())
	for recordsCh != nil || errsCh != nil {
		select {
		case rec, ok := <-recordsCh:
			if !ok {
				recordsCh = nil
				continue
			}
			if err := write(rec); err != nil {
				return fmt.Errorf("store %s: %w", rec.ID, err)
			}
			fetched++
			total += uint64(len(rec.Content))
			cmd.Printf("%s %s\n", successStyle.Render(fmt.Sprintf("%-6s", rec.ID)), mutedStyle.Render(humanize.Bytes(uint64(len(rec.Content)))))
		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			errs = append(errs, err)
			cmd.PrintErrln(errorStyle.Render(err.Error()))
		}
	}
	if err := cmd.Context().Err(); err != nil {
		return err
	}

	cmd.Printf("Fetched %s of %s structures (%s)\n", count(fetched), count(len(conn.IDs())), humanize.Bytes(total))
	if len(errs) > 0 {
		return fmt.Errorf("%d downloads failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func splitIDs(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t' || r == '\r'
	})
}

// fileName names a record file by its ID and compression.
func fileName(rec domain.RawRecord) string {
	name := strings.ToLower(rec.ID) + ".mmtf"
	if bytes.HasPrefix(rec.Content, []byte{0x1f, 0x8b}) {
		name += ".gz"
	}
	return name
}
