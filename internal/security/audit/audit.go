package audit

import (
	"log/slog"
	"time"

	"github.com/ParadojaDevs/ClimaGuru/internal/domain"
)

// Recorder writes user actions to the append-only activity log and mirrors
// them to the structured log. Persistence failures are logged and swallowed:
// audit must never fail the request that triggered it.
type Recorder struct {
	activities domain.ActivityRepository
	logger     *slog.Logger
}

func NewRecorder(activities domain.ActivityRepository, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{activities: activities, logger: logger}
}

// Record appends one activity entry.
func (r *Recorder) Record(userID, action string, detail map[string]any, ip string) {
	r.logger.Info("audit",
		slog.String("action", action),
		slog.String("user_id", userID),
		slog.String("ip", ip),
		slog.Any("detail", detail),
	)

	if r.activities == nil {
		return
	}
	entry := &domain.ActivityEntry{
		UserID:    userID,
		Action:    action,
		Detail:    detail,
		IPAddress: ip,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.activities.Insert(entry); err != nil {
		r.logger.Error("failed to persist activity entry",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}
}
