package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/onionharvest/internal/model"
)

// MarkdownWriter outputs summaries in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeOutcomes(md, summary)
	w.writeFailures(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the summary header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.RunSummary) {
	md.H1("Onionharvest Run Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", summary.Elapsed.Round(summaryDurationUnit).String()},
			{"Targets", strconv.Itoa(summary.TargetsTotal)},
		},
	})
	md.PlainText("")
}

// writeOutcomes writes the outcome counter section.
func (w *MarkdownWriter) writeOutcomes(md *markdown.Markdown, summary *model.RunSummary) {
	md.H2("Outcomes")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"🟢 Ingested", strconv.Itoa(summary.Ingested)},
			{"🔁 Skipped (duplicate)", strconv.Itoa(summary.SkippedDuplicate)},
			{"🚫 Skipped (invalid)", strconv.Itoa(summary.SkippedInvalid)},
			{"🔴 Failed", strconv.Itoa(summary.Failed)},
			{"**Chunks stored**", "**" + strconv.Itoa(summary.ChunksStored) + "**"},
		},
	})
	md.PlainText("")

	if summary.TargetsTotal > 0 {
		w.writePieChart(md, summary)
	}

	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart for outcome distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.RunSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Target Outcome Distribution"),
		piechart.WithShowData(true),
	)

	if summary.Ingested > 0 {
		chart.LabelAndIntValue("Ingested", uint64(summary.Ingested))
	}
	if summary.SkippedDuplicate > 0 {
		chart.LabelAndIntValue("Skipped (duplicate)", uint64(summary.SkippedDuplicate))
	}
	if summary.SkippedInvalid > 0 {
		chart.LabelAndIntValue("Skipped (invalid)", uint64(summary.SkippedInvalid))
	}
	if summary.Failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(summary.Failed))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on the failure rate.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.RunSummary) {
	switch {
	case summary.TargetsTotal == 0:
		md.Note("No targets were supplied to this run.")
	case summary.Failed == summary.TargetsTotal:
		md.Cautionf("All %d target(s) failed. Check transport connectivity.", summary.Failed)
	case summary.Failed > 0:
		md.Warningf("%d target(s) failed. See the failure list below.", summary.Failed)
	default:
		md.Tip("All targets resolved without failures.")
	}
	md.PlainText("")
}

// writeFailures writes the per-target failure table.
// Targets are identified by content-address only.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, summary *model.RunSummary) {
	md.H2("Failures")
	md.PlainText("")

	if len(summary.Failures) == 0 {
		md.PlainText("No failures recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Failures))
	for i, f := range summary.Failures {
		rows[i] = []string{"`" + shortAddress(f.ContentAddress) + "`", f.Reason}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Content Address", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")

	if summary.Failed > len(summary.Failures) {
		md.PlainTextf("... and %d more failure(s) not listed.", summary.Failed-len(summary.Failures))
		md.PlainText("")
	}
}

// writeFooter writes the summary footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by onionharvest*")
}
