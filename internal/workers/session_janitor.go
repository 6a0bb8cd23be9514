package workers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mohammadjaf013/findlanqbot/internal/services"
)

// SessionJanitor periodically removes sessions past their inactivity window.
type SessionJanitor struct {
	History  services.HistoryService
	Interval time.Duration
	Logger   *logrus.Logger
}

// Run purges once immediately, then every Interval until ctx is done.
func (j *SessionJanitor) Run(ctx context.Context) {
	if j.Interval <= 0 {
		j.Interval = 15 * time.Minute
	}
	if j.Logger == nil {
		j.Logger = logrus.New()
	}

	t := time.NewTicker(j.Interval)
	defer t.Stop()
	for {
		j.PurgeOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (j *SessionJanitor) PurgeOnce(ctx context.Context) int64 {
	n, err := j.History.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			j.Logger.WithError(err).Error("session purge failed")
		}
		return 0
	}
	if n > 0 {
		j.Logger.WithField("purged", n).Info("expired sessions purged")
	}
	return n
}
