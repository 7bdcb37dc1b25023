package report

import (
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/alvmarrod/follow-weaver/internal/crawler"
	"github.com/alvmarrod/follow-weaver/internal/storage"
	"github.com/nao1215/markdown"
)

// MarkdownWriter renders crawl state as Markdown
type MarkdownWriter struct {
	output io.Writer
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output}
}

// Write renders snap. summary is nil when no run just finished (status).
func (w *MarkdownWriter) Write(snap *storage.Snapshot, summary *crawler.Summary) error {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, snap, summary)
	w.writeAlert(md, snap, summary)
	w.writeLayers(md, snap)
	w.writeQuarantine(md, snap)

	return md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, snap *storage.Snapshot, summary *crawler.Summary) {
	md.H1("Follow Weaver Crawl Report")
	md.PlainText("")

	rows := [][]string{}
	if summary != nil {
		rows = append(rows,
			[]string{"Run", "`" + summary.RunID + "`"},
			[]string{"Result", summary.Reason},
		)
	}
	rows = append(rows,
		[]string{"Depth", strconv.Itoa(snap.Depth.Current) + " / " + strconv.Itoa(snap.Depth.Target)},
		[]string{"Nodes", strconv.Itoa(len(snap.Nodes))},
		[]string{"Edges", strconv.Itoa(countEdges(snap))},
		[]string{"Quarantined", strconv.Itoa(len(snap.Quarantine))},
		[]string{"Queued (current / next)", strconv.Itoa(len(snap.Current)) + " / " + strconv.Itoa(len(snap.Next))},
	)
	if summary != nil {
		rows = append(rows,
			[]string{"Processed", strconv.Itoa(summary.Processed)},
			[]string{"API requests", strconv.Itoa(summary.Requests)},
			[]string{"Rate limits", strconv.Itoa(summary.RateLimits)},
			[]string{"Duration", summary.Duration.Round(time.Second).String()},
		)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, snap *storage.Snapshot, summary *crawler.Summary) {
	if summary == nil {
		return
	}

	switch summary.Reason {
	case crawler.ReasonInterrupted:
		md.Note("The run was interrupted. The next crawl resumes from this checkpoint.")
	case crawler.ReasonAuthFailed, crawler.ReasonStorageError, crawler.ReasonFetchFailed:
		md.Cautionf("The run stopped early (%s). The next crawl resumes from the last checkpoint.", summary.Reason)
	case crawler.ReasonDepthReached:
		if len(snap.Current) > 0 {
			md.Tip("Ids beyond the target depth are kept. Raise --depth to continue from them.")
		}
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeLayers(md *markdown.Markdown, snap *storage.Snapshot) {
	md.H2("Frontier by Depth")
	md.PlainText("")

	if len(snap.Layers) == 0 {
		md.PlainText("No frontier recorded yet.")
		md.PlainText("")
		return
	}

	depths := make([]int, 0, len(snap.Layers))
	for d := range snap.Layers {
		depths = append(depths, d)
	}
	sort.Ints(depths)

	rows := make([][]string, 0, len(depths))
	for _, d := range depths {
		rows = append(rows, []string{strconv.Itoa(d), strconv.Itoa(len(snap.Layers[d]))})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Depth", "Ids"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeQuarantine(md *markdown.Markdown, snap *storage.Snapshot) {
	md.H2("Quarantined")
	md.PlainText("")

	if len(snap.Quarantine) == 0 {
		md.PlainText("No ids quarantined.")
		md.PlainText("")
		return
	}

	entries := make([]storage.Quarantine, 0, len(snap.Quarantine))
	for _, q := range snap.Quarantine {
		entries = append(entries, q)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	rows := make([][]string, 0, len(entries))
	for _, q := range entries {
		rows = append(rows, []string{"`" + string(q.ID) + "`", q.Reason, q.At.Format("2006-01-02 15:04:05 MST")})
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Reason", "Since"},
		Rows:   rows,
	})
	md.PlainText("")
}

func countEdges(snap *storage.Snapshot) int {
	n := 0
	for _, e := range snap.Edges {
		n += len(e.Targets)
	}
	return n
}
