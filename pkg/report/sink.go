package report

import (
	"context"
	"fmt"
	"log/slog"

	"k8s-coldstart-benchmark/pkg/logging"
)

type Sink interface {
	Save(ctx context.Context, doc *Document) error
}

var (
	_ Sink = (*FileSink)(nil)
	_ Sink = (*MultiSink)(nil)
	_ Sink = (*ElasticSink)(nil)
)

type FileSink struct {
	Path   string
	Format string
}

func (s *FileSink) Save(_ context.Context, doc *Document) error {
	switch s.Format {
	case "", FormatJSON:
		return WriteJSON(s.Path, doc)
	case FormatYAML:
		return WriteYAML(s.Path, doc)
	default:
		return fmt.Errorf("unsupported report format %q", s.Format)
	}
}

// MultiSink requires the primary to succeed; a failing secondary is only logged.
type MultiSink struct {
	primary   Sink
	secondary Sink
	logger    *slog.Logger
}

func NewMultiSink(primary, secondary Sink, logger *slog.Logger) *MultiSink {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &MultiSink{primary: primary, secondary: secondary, logger: logger}
}

func (m *MultiSink) Save(ctx context.Context, doc *Document) error {
	if err := m.primary.Save(ctx, doc); err != nil {
		return fmt.Errorf("primary sink failed: %w", err)
	}
	if m.secondary == nil {
		return nil
	}
	if err := m.secondary.Save(ctx, doc); err != nil {
		m.logger.Warn("secondary sink failed", logging.ErrorField(err))
	}
	return nil
}
