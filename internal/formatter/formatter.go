// package formatter renders curation run history as plain text, JSON, CSV or Markdown
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/cull/internal/models"
	"github.com/desertthunder/cull/internal/shared"
)

// Format names an output format.
type Format string

const (
	Text     Format = "text"
	JSON     Format = "json"
	CSV      Format = "csv"
	Markdown Format = "markdown"
)

// Formats lists the supported formats.
var Formats = []Format{Text, JSON, CSV, Markdown}

// ParseFormat accepts a format name or a common alias (txt, md).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return Text, nil
	case "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string {
	switch f {
	case Markdown:
		return "md"
	case Text:
		return "txt"
	default:
		return string(f)
	}
}

// FormatRuns renders a run listing without per-track detail.
func FormatRuns(f Format, runs []*models.Run) ([]byte, error) {
	switch f {
	case JSON:
		return shared.MarshalJSON(runs, true)
	case CSV:
		return RunsToCSV(runs)
	case Markdown:
		return RunsToMarkdown(runs), nil
	default:
		return RunsToText(runs), nil
	}
}

// FormatRun renders one run with its removals.
func FormatRun(f Format, run *models.Run) ([]byte, error) {
	switch f {
	case JSON:
		return shared.MarshalJSON(run, true)
	case CSV:
		return RemovalsToCSV(run.Removals)
	case Markdown:
		return RunToMarkdown(run), nil
	default:
		return RunToText(run), nil
	}
}

// RunsToCSV writes one row per run.
func RunsToCSV(runs []*models.Run) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{
		"Sequence", "ID", "Account", "Playlist", "Rule", "DryRun",
		"Surfaced", "Accepted", "Rejected", "AutoRejected", "Committed", "Failed",
		"Exhausted", "StartedAt", "Duration",
	}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, run := range runs {
		record := []string{
			strconv.Itoa(run.Sequence),
			run.ID,
			run.Account,
			run.PlaylistID,
			run.Rule,
			strconv.FormatBool(run.DryRun),
			strconv.Itoa(run.Surfaced),
			strconv.Itoa(run.Accepted),
			strconv.Itoa(run.Rejected),
			strconv.Itoa(run.AutoRejected),
			strconv.Itoa(run.Committed),
			strconv.Itoa(run.Failed),
			strconv.FormatBool(run.Exhausted),
			run.StartedAt.Format(time.RFC3339),
			formatDuration(run.Duration()),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// RemovalsToCSV writes one row per removal with its reason and outcome.
func RemovalsToCSV(removals []models.Removal) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"TrackID", "Position", "Name", "Artist", "Reason", "Committed", "Error"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range removals {
		record := []string{r.TrackID, strconv.Itoa(r.Position), r.Name, r.Artist, string(r.Reason), strconv.FormatBool(r.Committed), r.Error}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// RunsToText lists runs newest first, one line each.
func RunsToText(runs []*models.Run) []byte {
	var buf bytes.Buffer

	if len(runs) == 0 {
		buf.WriteString("No runs recorded.\n")
		return buf.Bytes()
	}

	fmt.Fprintf(&buf, "Runs: %d\n\n", len(runs))
	for _, run := range runs {
		fmt.Fprintf(&buf, "#%d  %s  %s  %s\n", run.Sequence, run.StartedAt.Format("2006-01-02 15:04"), run.PlaylistID, outcome(run))
	}

	return buf.Bytes()
}

// RunToText renders a single run and its removals.
func RunToText(run *models.Run) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Run #%d (%s)\n", run.Sequence, run.ID)
	fmt.Fprintf(&buf, "Playlist: %s\n", run.PlaylistID)
	if run.Rule != "" {
		fmt.Fprintf(&buf, "Rule: %s\n", run.Rule)
	}
	fmt.Fprintf(&buf, "Started: %s (%s)\n", run.StartedAt.Format(time.RFC1123), formatDuration(run.Duration()))
	fmt.Fprintf(&buf, "Reviewed: %d of %d surfaced, %d kept\n", run.Accepted+run.Rejected, run.Surfaced, run.Accepted)
	fmt.Fprintf(&buf, "Outcome: %s\n", outcome(run))

	if len(run.Removals) > 0 {
		buf.WriteString("\nRemovals:\n")
		for i, r := range run.Removals {
			fmt.Fprintf(&buf, "%d. %s - %s [%s] %s\n", i+1, r.Artist, r.Name, r.Reason, status(r))
		}
	}

	return buf.Bytes()
}

// RunsToMarkdown renders a run listing as a Markdown table.
func RunsToMarkdown(runs []*models.Run) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Curation history\n\n")
	if len(runs) == 0 {
		buf.WriteString("No runs recorded.\n")
		return buf.Bytes()
	}

	buf.WriteString("| # | Started | Playlist | Kept | Dropped | Auto | Removed | Failed |\n")
	buf.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, run := range runs {
		fmt.Fprintf(&buf, "| %d | %s | %s | %d | %d | %d | %d | %d |\n",
			run.Sequence, run.StartedAt.Format("2006-01-02 15:04"), escape(run.PlaylistID),
			run.Accepted, run.Rejected, run.AutoRejected, run.Committed, run.Failed)
	}

	return buf.Bytes()
}

// RunToMarkdown renders a single run report with a removal table.
func RunToMarkdown(run *models.Run) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Run %d\n\n", run.Sequence)
	fmt.Fprintf(&buf, "**Playlist**: %s\n", run.PlaylistID)
	if run.Rule != "" {
		fmt.Fprintf(&buf, "**Rule**: `%s`\n", run.Rule)
	}
	fmt.Fprintf(&buf, "**Started**: %s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&buf, "**Duration**: %s\n", formatDuration(run.Duration()))
	fmt.Fprintf(&buf, "**Outcome**: %s\n\n", outcome(run))

	buf.WriteString("## Removals\n\n")
	if len(run.Removals) == 0 {
		buf.WriteString("Nothing was removed.\n")
		return buf.Bytes()
	}

	buf.WriteString("| Track | Artist | Reason | Status |\n")
	buf.WriteString("|---|---|---|---|\n")
	for _, r := range run.Removals {
		fmt.Fprintf(&buf, "| %s | %s | %s | %s |\n", escape(r.Name), escape(r.Artist), r.Reason, escape(status(r)))
	}

	return buf.Bytes()
}

// WriteExport writes run in format f to path, defaulting to run-{sequence}.{ext}. It returns the path written.
func WriteExport(f Format, run *models.Run, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("run-%d.%s", run.Sequence, f.Extension())
	}

	data, err := FormatRun(f, run)
	if err != nil {
		return "", fmt.Errorf("failed to render run: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}

	return path, nil
}

func outcome(run *models.Run) string {
	verb := "removed"
	if run.DryRun {
		verb = "would remove"
	}

	s := fmt.Sprintf("%s %d of %d", verb, run.Committed, run.Rejected+run.AutoRejected)
	if run.Failed > 0 {
		s += fmt.Sprintf(", %d failed", run.Failed)
	}
	if !run.Exhausted {
		s += ", stopped early"
	}
	return s
}

func status(r models.Removal) string {
	switch {
	case r.Committed:
		return "removed"
	case r.Error != "":
		return "failed: " + r.Error
	default:
		return "pending"
	}
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "0s"
	}
	return d.Round(time.Second).String()
}
