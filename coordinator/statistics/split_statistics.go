package statistics

import (
	"sync"
	"time"

	"github.com/caio/go-tdigest"

	"github.com/searchgrid/grid/pkg/gridlog"
	"github.com/searchgrid/grid/pkg/models/griderror"
)

type statisticsInt struct {
	mu sync.Mutex

	QDBTime        time.Duration
	ShardTime      time.Duration
	QDBTimeTotal   time.Duration
	ShardTimeTotal time.Duration
	SplitTimeTotal time.Duration
	TotalSplits    int
	FailedSplits   int
	InProgress     map[string]time.Time

	Phases map[string]*tdigest.TDigest
}

var splitStatistics = newStatistics()

func newStatistics() *statisticsInt {
	return &statisticsInt{
		InProgress: map[string]time.Time{},
		Phases:     map[string]*tdigest.TDigest{},
	}
}

type SplitStatistics struct {
	TotalTime    time.Duration
	ShardTime    time.Duration
	QDBTime      time.Duration
	TotalSplits  int
	FailedSplits int
	InProgress   int
}

// RecordSplitStart marks the split identified by key (collection/shard) as
// running.
func RecordSplitStart(key string, t time.Time) {
	gridlog.Zero.Debug().Str("split", key).Msg("split stats: record split start")
	splitStatistics.mu.Lock()
	defer splitStatistics.mu.Unlock()

	if len(splitStatistics.InProgress) == 0 {
		splitStatistics.QDBTime = 0
		splitStatistics.ShardTime = 0
	}
	splitStatistics.InProgress[key] = t
	metrics.splitsActive.Inc()
}

func RecordSplitFinish(key string, t time.Time, success bool) error {
	gridlog.Zero.Debug().Str("split", key).Bool("success", success).Msg("split stats: record split finish")
	splitStatistics.mu.Lock()
	defer splitStatistics.mu.Unlock()

	start, ok := splitStatistics.InProgress[key]
	if !ok {
		return griderror.Newf(griderror.GRID_UNEXPECTED, "unable to record split finish: split %s is not in progress", key)
	}
	delete(splitStatistics.InProgress, key)
	metrics.splitsActive.Dec()

	status := "success"
	if !success {
		status = "failure"
		splitStatistics.FailedSplits++
	}
	metrics.splitsTotal.WithLabelValues(status).Inc()
	metrics.splitDuration.WithLabelValues(status).Observe(t.Sub(start).Seconds())

	splitStatistics.QDBTimeTotal += splitStatistics.QDBTime
	splitStatistics.ShardTimeTotal += splitStatistics.ShardTime
	splitStatistics.SplitTimeTotal += t.Sub(start)
	splitStatistics.TotalSplits++
	if len(splitStatistics.InProgress) == 0 {
		splitStatistics.QDBTime = 0
		splitStatistics.ShardTime = 0
	}
	return nil
}

func RecordQDBOperation(operation string, duration time.Duration) {
	metrics.qdbDuration.WithLabelValues(operation).Observe(duration.Seconds())

	splitStatistics.mu.Lock()
	defer splitStatistics.mu.Unlock()
	if len(splitStatistics.InProgress) > 0 {
		splitStatistics.QDBTime += duration
	}
}

func RecordShardOperation(action string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.coreAdminRequests.WithLabelValues(action, status).Inc()

	splitStatistics.mu.Lock()
	defer splitStatistics.mu.Unlock()
	if len(splitStatistics.InProgress) > 0 {
		splitStatistics.ShardTime += duration
	}
}

// RecordPhase records how long one split phase took.
func RecordPhase(phase string, duration time.Duration) {
	metrics.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())

	splitStatistics.mu.Lock()
	defer splitStatistics.mu.Unlock()
	td, ok := splitStatistics.Phases[phase]
	if !ok {
		td, _ = tdigest.New()
		splitStatistics.Phases[phase] = td
	}
	_ = td.Add(float64(duration.Microseconds()) / 1000)
}

// GetPhaseQuantile returns the q-quantile of a phase duration in
// milliseconds, or 0 when the phase was never recorded.
func GetPhaseQuantile(phase string, q float64) float64 {
	splitStatistics.mu.Lock()
	defer splitStatistics.mu.Unlock()

	td, ok := splitStatistics.Phases[phase]
	if !ok {
		return 0
	}
	return td.Quantile(q)
}

func GetSplitStats() *SplitStatistics {
	splitStatistics.mu.Lock()
	defer splitStatistics.mu.Unlock()

	ret := &SplitStatistics{
		TotalSplits:  splitStatistics.TotalSplits,
		FailedSplits: splitStatistics.FailedSplits,
		InProgress:   len(splitStatistics.InProgress),
	}
	if splitStatistics.TotalSplits == 0 {
		return ret
	}
	n := time.Duration(splitStatistics.TotalSplits)
	ret.ShardTime = splitStatistics.ShardTimeTotal / n
	ret.QDBTime = splitStatistics.QDBTimeTotal / n
	ret.TotalTime = splitStatistics.SplitTimeTotal / n
	return ret
}

// Reset drops all in-process statistics. Prometheus series are kept.
func Reset() {
	fresh := newStatistics()
	splitStatistics.mu.Lock()
	defer splitStatistics.mu.Unlock()

	splitStatistics.QDBTime = 0
	splitStatistics.ShardTime = 0
	splitStatistics.QDBTimeTotal = 0
	splitStatistics.ShardTimeTotal = 0
	splitStatistics.SplitTimeTotal = 0
	splitStatistics.TotalSplits = 0
	splitStatistics.FailedSplits = 0
	splitStatistics.InProgress = fresh.InProgress
	splitStatistics.Phases = fresh.Phases
}
