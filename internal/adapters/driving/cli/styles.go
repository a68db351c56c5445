package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

// Colour palette for summaries.
var (
	colourPrimary = lipgloss.Color("#7C3AED")
	colourMuted   = lipgloss.Color("#6C7086")
	colourSuccess = lipgloss.Color("#A6E3A1")
	colourWarning = lipgloss.Color("#F9E2AF")
	colourError   = lipgloss.Color("#F38BA8")
	colourBorder  = lipgloss.Color("#45475A")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	labelStyle   = lipgloss.NewStyle().Foreground(colourMuted).Width(12)
	valueStyle   = lipgloss.NewStyle().Align(lipgloss.Right).Width(12)
	successStyle = lipgloss.NewStyle().Foreground(colourSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colourWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colourError)
	mutedStyle   = lipgloss.NewStyle().Foreground(colourMuted)
	boxStyle     = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colourBorder).
			Padding(0, 1)
)

// maxManifestLines limits the failures listed under a run summary.
const maxManifestLines = 10

func row(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

// renderWatchStatus renders the live counters of a watch.
func renderWatchStatus(st domain.RunStatus) string {
	return fmt.Sprintf("%s processed, %s failed, %s excluded, %s records",
		count(int(st.Processed)), count(int(st.Failed)), count(int(st.Excluded)), count(int(st.Records)))
}

// renderSummary renders the statistics of a finished run.
func renderSummary(run domain.RunSummary) string {
	s := run.Stats
	status := successStyle.Render("complete")
	switch {
	case run.Cancelled:
		status = warningStyle.Render("cancelled")
	case s.Failed > 0:
		status = warningStyle.Render(fmt.Sprintf("%s failed", count(s.Failed)))
	}

	lines := []string{
		titleStyle.Render("Run "+run.RunID) + "  " + status,
		row("Inputs", count(s.Inputs)),
		row("Decoded", count(s.Decoded)),
		row("Failed", count(s.Failed)),
		row("Excluded", fmt.Sprintf("%s/%s", count(s.ExcludedStructures), count(s.ExcludedChains))),
		row("Records", count(s.Records)),
		row("Partitions", count(s.Partitions)),
	}
	if s.Abandoned > 0 {
		lines = append(lines, row("Abandoned", count(s.Abandoned)))
	}
	lines = append(lines, row("Duration", s.Duration.Round(time.Millisecond).String()))
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// renderManifest lists up to limit manifest entries. A non-positive limit
// lists every entry.
func renderManifest(entries []domain.ManifestEntry, limit int) string {
	if len(entries) == 0 {
		return mutedStyle.Render("No failures.")
	}
	var b strings.Builder
	for i, e := range entries {
		if limit > 0 && i == limit {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("... and %s more", count(len(entries)-limit))))
			b.WriteString("\n")
			break
		}
		fmt.Fprintf(&b, "%s %s %s\n",
			errorStyle.Render(fmt.Sprintf("%-8s", e.ID)),
			mutedStyle.Render(fmt.Sprintf("[%s/%s]", e.Stage, e.Kind)),
			e.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

func printSummary(w io.Writer, res *domain.Result) {
	fmt.Fprintln(w, renderSummary(res.Summary()))
	if len(res.Manifest) > 0 {
		fmt.Fprintln(w, renderManifest(res.Manifest, maxManifestLines))
	}
}
