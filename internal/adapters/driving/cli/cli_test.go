package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/mmtf-derive/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mmtf-derive/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/mmtf-derive/internal/connectors"
	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/derivers"
	"github.com/custodia-labs/mmtf-derive/internal/mmtf"
	"github.com/custodia-labs/mmtf-derive/internal/mmtf/mmtftest"
)

// setupTestServices injects in-memory services and restores the command
// tree and globals when the test ends.
func setupTestServices(t *testing.T) *memory.ConfigStore {
	t.Helper()

	origConfig, origSources, origDerivers := configStore, sourceFactory, deriverFactory
	resetCommandState()
	t.Cleanup(func() {
		resetCommandState()
		configStore, sourceFactory, deriverFactory = origConfig, origSources, origDerivers
	})

	store := memory.NewConfigStore()
	SetServices(Services{
		Config:   store,
		Sources:  connectors.NewFactory(),
		Derivers: derivers.NewDefaultRegistry(),
	})
	return store
}

// resetCommandState returns every flag to its default. Cobra keeps flag
// values between Execute calls in the same process.
func resetCommandState() {
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				if _, ok := f.Value.(pflag.SliceValue); !ok && f.Value.Type() != "stringToString" {
					_ = f.Value.Set(f.DefValue)
				}
				f.Changed = false
			})
		}
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)

	runMethods, runChainTypes, runDerivers = nil, nil, nil
	runSourceOpts = map[string]string{}
	rootCmd.SetArgs(nil)
	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
}

// execute runs the root command and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeStructure(t *testing.T, dir string, spec mmtftest.StructureSpec) string {
	t.Helper()
	data, err := mmtf.Encode(mmtftest.Build(spec))
	require.NoError(t, err)
	path := filepath.Join(dir, strings.ToLower(spec.ID)+".mmtf")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestRunCmd_Filesystem(t *testing.T) {
	setupTestServices(t)
	dir := t.TempDir()
	writeStructure(t, dir, mmtftest.Protein("1ABC", 10))
	writeStructure(t, dir, mmtftest.Homodimer("2DIM", 8))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "9bad.mmtf"), []byte{0x81, 0xa1}, 0644))
	out := filepath.Join(t.TempDir(), "chains.jsonl")

	_, stderr, err := execute(t, "run", dir, "--out", out, "--no-history", "--partitions", "2")
	require.NoError(t, err)

	lines := readLines(t, out)
	require.Len(t, lines, 3)
	keys := make([]string, len(lines))
	for i, l := range lines {
		keys[i] = l[domain.FieldKey].(string)
		assert.Contains(t, l, domain.FieldQ3)
	}
	assert.ElementsMatch(t, []string{"1ABC.A", "2DIM.A", "2DIM.B"}, keys)
	assert.Contains(t, stderr, "9BAD")
	assert.Contains(t, stderr, "1 failed")
}

func TestRunCmd_FlagsAddFilters(t *testing.T) {
	setupTestServices(t)
	dir := t.TempDir()
	writeStructure(t, dir, mmtftest.Protein("1ABC", 10))
	writeStructure(t, dir, mmtftest.Protein("1XYZ", 4))
	out := filepath.Join(t.TempDir(), "chains.jsonl")

	_, _, err := execute(t, "run", "filesystem:"+dir, "-o", out, "--no-history",
		"--min-length", "5", "--derivers", "composition", "--chain-type", "PROTEIN")
	require.NoError(t, err)

	lines := readLines(t, out)
	require.Len(t, lines, 1)
	assert.Equal(t, "1ABC", lines[0][domain.FieldStructureID])
	assert.NotContains(t, lines[0], domain.FieldQ3)
}

func TestRunCmd_RecordsHistory(t *testing.T) {
	setupTestServices(t)
	dir := t.TempDir()
	writeStructure(t, dir, mmtftest.Protein("1ABC", 6))
	db := filepath.Join(t.TempDir(), "runs.db")
	out := filepath.Join(t.TempDir(), "chains.jsonl")

	_, _, err := execute(t, "run", dir, "--out", out, "--manifest-db", db)
	require.NoError(t, err)

	resetCommandState()
	stdout, _, err := execute(t, "runs", "list", "--manifest-db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "ok")

	store, err := sqlite.Open(db)
	require.NoError(t, err)
	runs, err := store.ManifestStore().ListRuns(t.Context())
	require.NoError(t, store.Close())
	require.NoError(t, err)
	require.Len(t, runs, 1)

	resetCommandState()
	stdout, _, err = execute(t, "runs", "show", runs[0].RunID, "--manifest-db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, runs[0].RunID)
	assert.Contains(t, stdout, "No failures.")
}

func TestRunsCmd_Empty(t *testing.T) {
	setupTestServices(t)
	db := filepath.Join(t.TempDir(), "runs.db")

	stdout, _, err := execute(t, "runs", "--manifest-db", db)

	require.NoError(t, err)
	assert.Contains(t, stdout, "No runs recorded.")
}

func TestRunCmd_Errors(t *testing.T) {
	t.Run("unknown source type", func(t *testing.T) {
		setupTestServices(t)
		_, _, err := execute(t, "run", "ftp:somewhere", "--no-history", "-o", filepath.Join(t.TempDir(), "x"))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	})

	t.Run("unknown deriver", func(t *testing.T) {
		setupTestServices(t)
		_, _, err := execute(t, "run", t.TempDir(), "--no-history", "--derivers", "nope")
		require.Error(t, err)
	})

	t.Run("watch unsupported source", func(t *testing.T) {
		setupTestServices(t)
		_, _, err := execute(t, "run", "rcsb:1ABC", "--no-history", "--watch", "-o", filepath.Join(t.TempDir(), "x"))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestInspectCmd(t *testing.T) {
	setupTestServices(t)
	path := writeStructure(t, t.TempDir(), mmtftest.Homodimer("2DIM", 8))

	t.Run("yaml", func(t *testing.T) {
		resetCommandState()
		stdout, _, err := execute(t, "inspect", path, "--format", "yaml")
		require.NoError(t, err)

		var report structureReport
		require.NoError(t, yaml.Unmarshal([]byte(stdout), &report))
		assert.Equal(t, "2DIM", report.ID)
		require.Len(t, report.Polymers, 2)
		assert.Equal(t, "2DIM.A", report.Polymers[0].Key)
		assert.Equal(t, 8, report.Polymers[0].Length)
		assert.Nil(t, report.Polymers[0].Derived)
	})

	t.Run("json with derive", func(t *testing.T) {
		resetCommandState()
		stdout, _, err := execute(t, "inspect", path, "-f", "json", "--derive")
		require.NoError(t, err)

		var report structureReport
		require.NoError(t, json.Unmarshal([]byte(stdout), &report))
		require.Len(t, report.Polymers, 2)
		assert.Contains(t, report.Polymers[1].Derived, domain.FieldQ8)
		assert.NotContains(t, report.Polymers[1].Derived, domain.FieldSequence)
	})

	t.Run("text", func(t *testing.T) {
		resetCommandState()
		stdout, _, err := execute(t, "inspect", path)
		require.NoError(t, err)
		assert.Contains(t, stdout, "2DIM.B")
	})

	t.Run("unknown format", func(t *testing.T) {
		resetCommandState()
		_, _, err := execute(t, "inspect", path, "--format", "xml")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("missing file", func(t *testing.T) {
		resetCommandState()
		_, _, err := execute(t, "inspect", filepath.Join(t.TempDir(), "none.mmtf"))
		assert.Error(t, err)
	})
}

func TestConfigCmd(t *testing.T) {
	store := setupTestServices(t)

	stdout, _, err := execute(t, "config", "set", "partition_count", "4")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Set partition_count = 4")
	assert.Equal(t, 4, store.GetInt("partition_count"))

	resetCommandState()
	_, _, err = execute(t, "config", "set", "derivers", "secstruct,composition")
	require.NoError(t, err)
	assert.Equal(t, []string{"secstruct", "composition"}, store.GetStringSlice("derivers"))

	resetCommandState()
	stdout, _, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "partition_count = 4")
	assert.Contains(t, stdout, "[secstruct, composition]")
	assert.Contains(t, stdout, "Configuration is valid.")
}

func TestConfigCmd_SetRejectsInvalid(t *testing.T) {
	store := setupTestServices(t)

	_, _, err := execute(t, "config", "set", "derivers", "secstruct")
	require.NoError(t, err)

	resetCommandState()
	_, _, err = execute(t, "config", "set", "partition_count", "-3")
	require.Error(t, err)
	_, set := store.Get("partition_count")
	assert.False(t, set)
}

func TestConfigCmd_Path(t *testing.T) {
	setupTestServices(t)

	stdout, _, err := execute(t, "config", "path")

	require.NoError(t, err)
	assert.Equal(t, ":memory:\n", stdout)
}

func TestFetchCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/")
		if id == "0000" {
			http.NotFound(w, r)
			return
		}
		data, err := mmtf.Encode(mmtftest.Build(mmtftest.Protein(id, 4)))
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)

	t.Run("out dir", func(t *testing.T) {
		setupTestServices(t)
		dir := filepath.Join(t.TempDir(), "structures")

		stdout, _, err := execute(t, "fetch", "1abc", "2xyz", "--out-dir", dir, "--base-url", srv.URL, "--rate", "0")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Fetched 2 of 2 structures")
		assert.FileExists(t, filepath.Join(dir, "1abc.mmtf"))
		assert.FileExists(t, filepath.Join(dir, "2xyz.mmtf"))
	})

	t.Run("archive with ids file", func(t *testing.T) {
		setupTestServices(t)
		tmp := t.TempDir()
		ids := filepath.Join(tmp, "ids.txt")
		require.NoError(t, os.WriteFile(ids, []byte("1ABC, 2XYZ\n3DEF\n"), 0644))
		archive := filepath.Join(tmp, "archive.db")

		_, _, err := execute(t, "fetch", "--ids-from", ids, "--archive", archive, "--base-url", srv.URL, "--rate", "0")
		require.NoError(t, err)

		store, err := sqlite.Open(archive)
		require.NoError(t, err)
		defer store.Close()
		n, err := store.Archive().Count(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("partial failure", func(t *testing.T) {
		setupTestServices(t)
		dir := t.TempDir()

		stdout, stderr, err := execute(t, "fetch", "1ABC", "0000", "--out-dir", dir, "--base-url", srv.URL, "--rate", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 downloads failed")
		assert.Contains(t, stdout, "Fetched 1 of 2 structures")
		assert.Contains(t, stderr, "0000")
	})

	t.Run("needs a destination", func(t *testing.T) {
		setupTestServices(t)
		_, _, err := execute(t, "fetch", "1ABC")
		assert.Error(t, err)
	})
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"4", int64(4)},
		{"1", int64(1)},
		{"2.5", 2.5},
		{"true", true},
		{"a, b,,c", []string{"a", "b", "c"}},
		{"secstruct", "secstruct"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, `"out.jsonl"`, formatValue("out.jsonl"))
	assert.Equal(t, "[a, b]", formatValue([]string{"a", "b"}))
	assert.Equal(t, "3", formatValue(int64(3)))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "1abc.mmtf", fileName(domain.RawRecord{ID: "1ABC", Content: []byte{0x81}}))
	assert.Equal(t, "1abc.mmtf.gz", fileName(domain.RawRecord{ID: "1ABC", Content: []byte{0x1f, 0x8b, 0x08}}))
}

func TestSplitIDs(t *testing.T) {
	assert.Equal(t, []string{"1ABC", "2XYZ", "3DEF"}, splitIDs("1ABC,2XYZ\n 3DEF\r\n"))
}

func TestRenderSummary(t *testing.T) {
	run := domain.RunSummary{
		RunID: "run-1",
		Stats: domain.RunStats{Inputs: 1200, Decoded: 1190, Failed: 10, Records: 2400, Partitions: 4, Duration: 1500 * time.Millisecond},
	}

	out := renderSummary(run)

	assert.Contains(t, out, "Run run-1")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "10 failed")
	assert.NotContains(t, out, "Abandoned")

	run.Cancelled = true
	run.Stats.Abandoned = 5
	out = renderSummary(run)
	assert.Contains(t, out, "cancelled")
	assert.Contains(t, out, "Abandoned")
}

func TestRenderWatchStatus(t *testing.T) {
	out := renderWatchStatus(domain.RunStatus{Running: true, Processed: 1500, Failed: 3, Excluded: 2, Records: 2990})

	assert.Equal(t, "1,500 processed, 3 failed, 2 excluded, 2,990 records", out)
}

func TestRenderManifest(t *testing.T) {
	assert.Contains(t, renderManifest(nil, 10), "No failures.")

	entries := make([]domain.ManifestEntry, 12)
	for i := range entries {
		entries[i] = domain.ManifestEntry{ID: "1ABC", Kind: domain.KindFieldDecode, Stage: domain.StageDecode, Message: "bad"}
	}
	out := renderManifest(entries, 10)
	assert.Equal(t, 11, strings.Count(out, "\n")+1)
	assert.Contains(t, out, "... and 2 more")
	assert.NotContains(t, renderManifest(entries, 0), "more")
}
