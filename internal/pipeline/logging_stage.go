package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/tjfontaine/movegate/internal/core/domain"
	"github.com/tjfontaine/movegate/internal/core/ports"
)

// LoggingStage records every invocation at entry and exit. It observes only:
// the context and result pass through untouched. Placed first, it sees the
// raw error of any failure before the client classifies it.
type LoggingStage struct {
	logger *slog.Logger
	audit  ports.AuditStore
	now    func() time.Time
}

// LoggingOption configures a LoggingStage.
type LoggingOption func(*LoggingStage)

// WithAuditStore records each completed invocation to store.
func WithAuditStore(store ports.AuditStore) LoggingOption {
	return func(s *LoggingStage) {
		s.audit = store
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) LoggingOption {
	return func(s *LoggingStage) {
		s.now = now
	}
}

// NewLoggingStage creates a logging stage. A nil logger uses slog.Default.
func NewLoggingStage(logger *slog.Logger, opts ...LoggingOption) *LoggingStage {
	if logger == nil {
		logger = slog.Default()
	}
	s := &LoggingStage{logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LoggingStage) Name() string { return "logging" }

func (s *LoggingStage) Process(ctx context.Context, ec domain.ExecutionContext, inv ports.Invocation, next ports.Next) (*domain.Result, error) {
	start := s.now()

	s.logger.Info("action started",
		slog.String("invocation_id", inv.ID),
		slog.String("action", inv.Metadata.ActionName),
		slog.Time("time", start),
		slog.Any("input", inv.Input),
	)

	result, err := next(ctx, ec)
	duration := s.now().Sub(start)

	attrs := []slog.Attr{
		slog.String("invocation_id", inv.ID),
		slog.String("action", inv.Metadata.ActionName),
		slog.Any("input", inv.Input),
		slog.Duration("duration", duration),
	}

	rec := &domain.InvocationRecord{
		ID:         inv.ID,
		ActionName: inv.Metadata.ActionName,
		Duration:   duration,
		CreatedAt:  start,
	}

	level := slog.LevelInfo
	switch {
	case err != nil:
		classified := domain.Classify(err)
		level = slog.LevelWarn
		if classified.Kind == domain.ErrorKindUnknown {
			level = slog.LevelError
		}
		attrs = append(attrs,
			slog.String("outcome", string(domain.OutcomeFailure)),
			slog.String("error_kind", string(classified.Kind)),
			slog.String("error", err.Error()),
		)
		rec.Outcome = domain.OutcomeFailure
		rec.ErrorKind = classified.Kind
	case result != nil:
		attrs = append(attrs, slog.String("outcome", string(result.Outcome)))
		switch result.Outcome {
		case domain.OutcomeSuccess:
			attrs = append(attrs, slog.Any("data", result.Data))
		case domain.OutcomeRedirect:
			attrs = append(attrs, slog.String("redirect", result.RedirectTo))
		case domain.OutcomeFailure:
			if result.Error != nil {
				attrs = append(attrs,
					slog.String("error_kind", string(result.Error.Kind)),
					slog.String("error", result.Error.Message),
				)
				rec.ErrorKind = result.Error.Kind
			}
		}
		rec.Outcome = result.Outcome
		rec.RedirectTo = result.RedirectTo
	}

	s.logger.LogAttrs(ctx, level, "action completed", attrs...)

	if s.audit != nil && rec.Outcome != "" {
		if auditErr := s.audit.RecordInvocation(ctx, rec); auditErr != nil {
			s.logger.Error("failed to record invocation",
				slog.String("invocation_id", inv.ID),
				slog.String("error", auditErr.Error()),
			)
		}
	}

	return result, err
}
