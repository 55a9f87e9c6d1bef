package sweeper

import (
	"context"
	"time"

	config "github.com/NordCoder/pixelpages/internal/config/auth-worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	mPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_tokens_purged_total", Help: "Expired refresh tokens deleted",
	})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_errors_total", Help: "Errors in sweeper loop",
	})
	mLoopDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "sweeper_loop_duration_seconds", Help: "Sweeper tick duration",
		Buckets: prometheus.DefBuckets,
	})
)

type Runner struct {
	Log *zap.Logger
	UC  *Usecase
	Cfg *config.SweeperCfg
}

func New(log *zap.Logger, uc *Usecase, cfg *config.SweeperCfg) *Runner {
	return &Runner{Log: log, UC: uc, Cfg: cfg}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	n, err := r.UC.Tick(ctx)
	if err != nil {
		mErr.Inc()
		r.Log.Warn("sweep error", zap.Error(err))
	}
	if n > 0 {
		mPurged.Add(float64(n))
		r.Log.Info("purged expired refresh tokens", zap.Int64("count", n))
	}
	mLoopDur.Observe(time.Since(start).Seconds())
}

// Run sweeps once immediately and then every Cfg.Tick until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Cfg.Tick)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}
