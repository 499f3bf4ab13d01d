package split

import (
	"time"

	"github.com/searchgrid/grid/pkg/config"
	"github.com/searchgrid/grid/pkg/coreadmin"
)

type Config struct {
	// RequestTimeout bounds every fan-out of admin requests and the wait
	// for new shards and replicas to show up in cluster state.
	RequestTimeout       time.Duration
	LeaderLookupTimeout  time.Duration
	RecoveryStateTimeout time.Duration
	FinalStateTimeout    time.Duration

	CheckDiskSpace     bool
	MaxReplicasPerNode int
	Retry              coreadmin.RetryPolicy
	PlacementSeed      int64

	// AsyncPollInterval is how often node side async requests are polled.
	AsyncPollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestTimeout:       config.DefaultRequestTimeout,
		LeaderLookupTimeout:  config.DefaultLeaderLookupTimeout,
		RecoveryStateTimeout: config.DefaultRecoveryStateTimeout,
		FinalStateTimeout:    config.DefaultFinalStateTimeout,
		Retry:                coreadmin.DefaultRetryPolicy(),
		AsyncPollInterval:    100 * time.Millisecond,
	}
}

func ConfigFromCoordinator(cfg *config.Coordinator) Config {
	ret := DefaultConfig()
	ret.RequestTimeout = config.ValueOrDefaultDuration(cfg.RequestTimeout, ret.RequestTimeout)
	ret.LeaderLookupTimeout = config.ValueOrDefaultDuration(cfg.LeaderLookupTimeout, ret.LeaderLookupTimeout)
	ret.RecoveryStateTimeout = config.ValueOrDefaultDuration(cfg.RecoveryStateTimeout, ret.RecoveryStateTimeout)
	ret.FinalStateTimeout = config.ValueOrDefaultDuration(cfg.FinalStateTimeout, ret.FinalStateTimeout)
	ret.CheckDiskSpace = cfg.CheckDiskSpace
	ret.MaxReplicasPerNode = cfg.MaxReplicasPerNode
	if cfg.RetryMaxAttempts > 0 {
		ret.Retry.MaxAttempts = uint64(cfg.RetryMaxAttempts)
	}
	ret.Retry.BaseDelay = config.ValueOrDefaultDuration(cfg.RetryBaseDelay, ret.Retry.BaseDelay)
	return ret
}
