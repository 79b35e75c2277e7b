package trip

import (
	"context"
	"log/slog"
	"time"
)

// Track feeds HandleLocation from the location service until ctx is done.
// The watch feed is the primary source; the poll ticker only queries the
// service when the feed has been silent for a full interval.
func (e *Engine) Track(ctx context.Context) {
	if e.locations == nil {
		e.logger.Warn("no location service, tracking disabled")
		return
	}
	interval := e.settings.LocationUpdateInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	feed, err := e.locations.WatchLocation(ctx)
	if err != nil {
		e.logger.Warn("location feed unavailable, polling only", slog.String("error", err.Error()))
		feed = nil
	}

	tick := time.NewTicker(interval)
	defer tick.Stop()

	var lastFeed time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case loc, ok := <-feed:
			if !ok {
				e.logger.Debug("location feed closed, polling only")
				feed = nil
				continue
			}
			lastFeed = time.Now()
			e.HandleLocation(ctx, loc)
		case <-tick.C:
			if feed != nil && time.Since(lastFeed) < interval {
				continue
			}
			loc, err := e.locations.CurrentLocation(ctx)
			if err != nil {
				// keep the last known position
				e.logger.Debug("location poll failed", slog.String("error", err.Error()))
				continue
			}
			e.HandleLocation(ctx, loc)
		}
	}
}
