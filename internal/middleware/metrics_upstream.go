package middleware

import (
	"math"
	"time"

	"github.com/yeshanjun/pollux/internal/monitoring"
)

// RecordUpstream records upstream call duration and outcome, keyed by
// provider, for the Upstream Caller's classification table.
func RecordUpstream(provider, outcome string, dur time.Duration) {
	durSec := dur.Seconds()
	if math.IsNaN(durSec) || math.IsInf(durSec, 0) {
		durSec = 0
	}
	monitoring.UpstreamRequestsTotal.WithLabelValues(provider, outcome).Inc()
	monitoring.UpstreamRequestDuration.WithLabelValues(provider).Observe(durSec)
}
