// Package s3 uploads the run report to a pre-signed URL.
package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/specialistvlad/runbookgo/internal/ctxlog"
	"github.com/specialistvlad/runbookgo/internal/registry"
	"github.com/specialistvlad/runbookgo/internal/report"
)

// Sink PUTs the rendered report to a pre-signed upload URL.
type Sink struct {
	http      *resty.Client
	uploadURL string
}

// NewSink creates a Sink.
func NewSink(uploadURL string, timeout time.Duration) *Sink {
	return &Sink{http: resty.New().SetTimeout(timeout), uploadURL: uploadURL}
}

// Publish implements report.Sink.
func (s *Sink) Publish(ctx context.Context, summary report.Summary, body []byte) error {
	logger := ctxlog.FromContext(ctx).With("action", "upload")
	logger.Info("Uploading report to S3", "run_id", summary.RunID, "size", len(body))

	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Put(s.uploadURL)
	if err != nil {
		return fmt.Errorf("failed to execute S3 upload request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("S3 upload failed with status: %s", resp.Status())
	}

	logger.Info("Successfully uploaded report", "status", resp.Status())
	return nil
}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the s3 sink.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterSink("s3", func(_ context.Context, s registry.Settings) (report.Sink, error) {
		url, err := s.Required("upload_url")
		if err != nil {
			return nil, err
		}
		timeout, err := s.Duration("timeout", time.Minute)
		if err != nil {
			return nil, err
		}
		return NewSink(url, timeout), nil
	})
}
