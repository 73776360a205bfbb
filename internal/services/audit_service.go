package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/jojo6550/jefitness-sub002/internal/metrics"
	"github.com/jojo6550/jefitness-sub002/internal/models"
)

// AuditLogStore is the persistent half of the sink. nil disables persistence
// and events stay on the console channel only.
type AuditLogStore interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
}

// Alerter delivers critical events to an out-of-band channel.
type Alerter interface {
	Name() string
	Notify(ctx context.Context, event *models.AuditEvent) error
}

// AuditSink is the append-only stream of security and user-action events.
// Every event goes to the console channel (slog); persistence and alert
// fan-out are fire-and-forget and never block or fail the caller.
type AuditSink struct {
	logger   *slog.Logger
	store    AuditLogStore
	alerters []Alerter
	metrics  *metrics.Metrics
	timeout  time.Duration
}

func NewAuditSink(logger *slog.Logger, store AuditLogStore, m *metrics.Metrics, alerters ...Alerter) *AuditSink {
	return &AuditSink{
		logger:   logger,
		store:    store,
		alerters: alerters,
		metrics:  m,
		timeout:  5 * time.Second,
	}
}

// Emit appends the event. The level is derived from the event type unless the
// emitter set one explicitly. Store and alert failures are logged and
// swallowed; they never propagate into the caller's response.
func (s *AuditSink) Emit(_ context.Context, event models.AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Level == "" {
		event.Level = models.AuditLevelFor(event.EventType)
	}
	if event.Category == "" {
		event.Category = models.AuditCategoryGeneral
	}

	s.logToConsole(event)

	if s.metrics != nil {
		s.metrics.AuditEventsTotal.WithLabelValues(event.Category, event.Level).Inc()
	}

	// Detached contexts: request cancellation must not lose the event.
	if s.store != nil {
		go s.persist(event)
	}
	if models.CriticalAuditEvent(event.EventType) && len(s.alerters) > 0 {
		go s.alert(event)
	}
}

func (s *AuditSink) logToConsole(event models.AuditEvent) {
	attrs := []slog.Attr{
		slog.String("category", event.Category),
		slog.String("event_type", event.EventType),
		slog.String("timestamp", event.Timestamp.Format(time.RFC3339)),
	}
	if event.Message != "" {
		attrs = append(attrs, slog.String("message", event.Message))
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.IP != "" {
		attrs = append(attrs, slog.String("ip_address", event.IP))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", event.RequestID))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.Any(key, val))
	}

	s.logger.LogAttrs(context.Background(), slogLevel(event.Level), "audit", attrs...)
}

func (s *AuditSink) persist(event models.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.store.Insert(ctx, &event); err != nil {
		// Degrade to console-only
		s.logger.Error("audit persistence failed",
			slog.String("event_type", event.EventType),
			slog.Any("error", err))
	}
}

func (s *AuditSink) alert(event models.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	for _, alerter := range s.alerters {
		status := "ok"
		if err := alerter.Notify(ctx, &event); err != nil {
			status = "error"
			s.logger.Error("alert delivery failed",
				slog.String("channel", alerter.Name()),
				slog.String("event_type", event.EventType),
				slog.Any("error", err))
		}
		if s.metrics != nil {
			s.metrics.AlertDeliveriesTotal.WithLabelValues(alerter.Name(), status).Inc()
		}
	}
}

func slogLevel(level string) slog.Level {
	switch level {
	case models.AuditLevelError:
		return slog.LevelError
	case models.AuditLevelWarn:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}
