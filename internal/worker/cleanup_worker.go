package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ParadojaDevs/ClimaGuru/internal/domain"
	"github.com/ParadojaDevs/ClimaGuru/internal/observability/metrics"
)

// CleanupWorker periodically deactivates expired sessions and resets the
// per-credential daily usage counters.
type CleanupWorker struct {
	sessions    domain.SessionRepository
	credentials domain.CredentialRepository
	logger      *slog.Logger
	interval    time.Duration
}

// NewCleanupWorker creates a new cleanup worker
func NewCleanupWorker(
	sessions domain.SessionRepository,
	credentials domain.CredentialRepository,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &CleanupWorker{
		sessions:    sessions,
		credentials: credentials,
		logger:      logger,
		interval:    interval,
	}
}

// Start begins the cleanup loop. It runs until the context is cancelled.
func (w *CleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("cleanup worker started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

// sweep runs one cleanup pass. Both steps are independent; a failure in one
// does not skip the other.
func (w *CleanupWorker) sweep() {
	now := time.Now().UTC()

	swept, err := w.sessions.DeactivateExpired(now)
	if err != nil {
		w.logger.Error("failed to deactivate expired sessions", slog.String("error", err.Error()))
	} else if swept > 0 {
		metrics.AddExpiredSessionsSwept(swept)
		w.logger.Info("expired sessions deactivated", slog.Int64("count", swept))
	}

	// Counters reset once their last update falls behind the start of the
	// current UTC day.
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	reset, err := w.credentials.ResetDailyCounters(midnight)
	if err != nil {
		w.logger.Error("failed to reset daily counters", slog.String("error", err.Error()))
	} else if reset > 0 {
		w.logger.Info("daily credential counters reset", slog.Int64("count", reset))
	}
}
