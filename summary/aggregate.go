package summary

import (
	"context"
	"errors"
	"sort"

	"github.com/jupark12/meeting-minutes/logger"
	"github.com/jupark12/meeting-minutes/models"
)

// ErrAggregationFailure indicates that not a single window produced a
// usable summary.
var ErrAggregationFailure = errors.New("no summary could be generated")

// previewLen bounds how much of a malformed output is logged.
const previewLen = 100

// WindowResult is the outcome of summarizing one window. A non-nil Err marks
// the window as failed; Raw is then ignored.
type WindowResult struct {
	Index int
	Raw   string
	Err   error
}

// MergeStats reports how many windows contributed to a merge.
type MergeStats struct {
	Parsed  int
	Skipped int
}

// Aggregator merges per-window summaries in window order.
type Aggregator struct {
	log logger.Logger
}

// NewAggregator creates an Aggregator logging skipped windows to log.
func NewAggregator(log logger.Logger) *Aggregator {
	return &Aggregator{log: log}
}

// Merge combines results into one document. Results are processed by Index,
// never by the order they are passed in. Each section's blocks are the
// concatenation of that section's blocks across parsed windows, and the last
// non-empty MeetingName wins. Failed or malformed windows are logged and
// skipped. If nothing parses, Merge returns ErrAggregationFailure.
func (a *Aggregator) Merge(ctx context.Context, processID string, results []WindowResult) (*models.SummaryDocument, MergeStats, error) {
	ordered := make([]WindowResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Index < ordered[j].Index
	})

	merged := models.NewSummaryDocument()
	var stats MergeStats

	for _, result := range ordered {
		if result.Err != nil {
			a.log.Warn(ctx, "Skipping window %d of %s: summarization failed: %v", result.Index, processID, result.Err)
			stats.Skipped++
			continue
		}

		doc, err := ParseWindow(result.Raw)
		if err != nil {
			a.log.Warn(ctx, "Skipping window %d of %s: %v. Output: %s", result.Index, processID, err, preview(result.Raw))
			stats.Skipped++
			continue
		}

		if doc.MeetingName != "" {
			merged.MeetingName = doc.MeetingName
		}
		for i := range merged.Sections {
			merged.Sections[i].Blocks = append(merged.Sections[i].Blocks, doc.Sections[i].Blocks...)
		}
		stats.Parsed++
	}

	if stats.Parsed == 0 {
		return nil, stats, ErrAggregationFailure
	}

	return merged, stats, nil
}

func preview(raw string) string {
	r := []rune(raw)
	if len(r) <= previewLen {
		return raw
	}
	return string(r[:previewLen]) + "..."
}
