package report

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goccy/go-json"
)

// Sink publishes a finished report somewhere outside the process.
type Sink interface {
	Publish(ctx context.Context, s Summary, body []byte) error
}

// Marshal encodes the summary as indented JSON.
func Marshal(s Summary) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// WriteJSON writes the summary as indented JSON followed by a newline.
func WriteJSON(w io.Writer, s Summary) error {
	body, err := Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	body = append(body, '\n')
	_, err = w.Write(body)
	return err
}

// WriteText writes a human readable table of the summary.
func WriteText(w io.Writer, s Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tSTATUS\tDECISION\tSTEPS\tDETAIL")
	for _, r := range s.PerNode {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.TargetNode, r.Status, r.DecisionResult, len(r.Steps), r.Detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\ntotal=%d success=%d failure=%d skipped=%d\n", s.Total, s.SuccessCount, s.FailureCount, s.SkippedCount)
	return err
}
