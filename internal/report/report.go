// Package report renders the human readable outcome of a run: a one-line
// status sentence for the log and a markdown job summary.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/daimoniac/sbomscan/internal/orchestrator"
	"github.com/daimoniac/sbomscan/internal/scanapi"
)

// NoRecommendation is shown for findings without a suggested fix
const NoRecommendation = "No specific fix available"

// severityLabels are the display labels of finding severities
var severityLabels = map[scanapi.Severity]string{
	scanapi.SeverityCritical: "🔴 Critical",
	scanapi.SeverityHigh:     "🟠 High",
	scanapi.SeverityMedium:   "🟡 Medium",
	scanapi.SeverityLow:      "🔵 Low",
}

// statusMeta is how each run status reads in the status sentence
type statusMeta struct {
	emoji string
	verb  string
}

var statusMetadata = map[orchestrator.RunStatus]statusMeta{
	orchestrator.RunSuccess: {emoji: "✅", verb: "succeeded"},
	orchestrator.RunFailure: {emoji: "❌", verb: "failed due to policy violations"},
	orchestrator.RunError:   {emoji: "❌", verb: "encountered an error"},
	orchestrator.RunSkipped: {emoji: "⏭️", verb: "skipped"},
}

// SeverityLabel returns the display label of severity
func SeverityLabel(severity scanapi.Severity) string {
	if label, ok := severityLabels[severity]; ok {
		return label
	}
	return TitleCase(string(severity))
}

// StatusSentence describes the run for the log
func StatusSentence(result orchestrator.RunResult, branch, scanPath string) string {
	meta, ok := statusMetadata[result.Status()]
	if !ok {
		meta = statusMetadata[orchestrator.RunError]
	}

	scanID := result.ScanID()
	if scanID == "" {
		scanID = "None"
	}

	return fmt.Sprintf("%s Scan %s for branch `%s` at path `%s` (Scan ID: `%s`).",
		meta.emoji, meta.verb, branch, scanPath, scanID)
}

// Message is the summary line of the job summary
func Message(result orchestrator.RunResult) string {
	switch r := result.(type) {
	case orchestrator.Success:
		return "✅ Scan completed successfully with no findings."
	case orchestrator.Failure:
		return "❌ One or more policy violations found."
	case orchestrator.Skipped:
		return "⏭️ " + r.Message()
	case orchestrator.Error:
		return "❌ Scan encountered an error: " + r.Message
	default:
		return fmt.Sprintf("❌ Scan encountered an error: unexpected result %T", result)
	}
}

// Render writes the markdown job summary of result to w
func Render(w io.Writer, result orchestrator.RunResult) error {
	var b strings.Builder

	b.WriteString("## Summary\n\n")
	b.WriteString(Message(result))
	b.WriteString("\n\n")

	summary, ok := orchestrator.SummaryOf(result)
	if ok && summary.Total > 0 {
		if err := renderFindings(&b, summary); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// renderFindings writes the severity totals and one table per severity
func renderFindings(b *strings.Builder, summary scanapi.FindingsSummary) error {
	b.WriteString("## Findings\n\n")

	totals := newTable(b)
	totals.Header("Severity", "Total")
	for _, severity := range scanapi.Severities {
		if err := totals.Append(SeverityLabel(severity), strconv.Itoa(summary.Count(severity))); err != nil {
			return fmt.Errorf("failed to render severity totals: %w", err)
		}
	}
	if err := totals.Render(); err != nil {
		return fmt.Errorf("failed to render severity totals: %w", err)
	}
	b.WriteString("\n")

	for _, severity := range scanapi.Severities {
		count := summary.Count(severity)
		if count == 0 {
			continue
		}

		fmt.Fprintf(b, "### %s Findings (%d)\n\n", SeverityLabel(severity), count)

		table := newTable(b)
		table.Header("Title", "Finding Type", "Status", "Recommendation")
		for _, f := range summary.WithSeverity(severity) {
			recommendation := NoRecommendation
			if f.Recommendation != nil && f.Recommendation.Description != "" {
				recommendation = f.Recommendation.Description
			}
			if err := table.Append(f.Title, string(f.Type), TitleCase(f.Status), recommendation); err != nil {
				return fmt.Errorf("failed to render %s findings: %w", severity, err)
			}
		}
		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render %s findings: %w", severity, err)
		}
		b.WriteString("\n")
	}

	return nil
}

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithHeaderAutoFormat(tw.Off),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

// TitleCase turns a snake_case token into words, e.g. "requires_review"
// becomes "Requires Review". Only the first letter of each word changes.
func TitleCase(token string) string {
	words := strings.Split(token, "_")
	for i, word := range words {
		r, size := utf8.DecodeRuneInString(word)
		if size == 0 {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + word[size:]
	}
	return strings.Join(words, " ")
}
