package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RunCleaner removes entry files older than maxAge every interval until ctx
// is cancelled. It blocks; run it in its own goroutine.
func RunCleaner(ctx context.Context, s Store, interval, maxAge time.Duration, log *logrus.Entry) {
	if interval <= 0 || maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if removed := s.ClearOlderThan(maxAge); removed > 0 && log != nil {
				log.WithFields(logrus.Fields{
					"removed": removed,
					"max_age": maxAge.String(),
				}).Info("cache cleanup")
			}
		case <-ctx.Done():
			return
		}
	}
}
