package engine

import (
	"time"

	"github.com/banktrail/ingestor/internal/platform/mretry"
)

// backoffConfig governs the delay nextSyncAt applies after a failed run
// (§4.4.3): the exponential shape of mretry.DefaultDLQConfig, but capped at
// the connection's own schedule interval times 8 rather than that config's
// fixed ceiling, so a weekly connection backs off far longer than an hourly
// one.
func backoffConfig(scheduleInterval time.Duration) mretry.Config {
	return mretry.DefaultDLQConfig().WithMaxBackoff(scheduleInterval * 8)
}
