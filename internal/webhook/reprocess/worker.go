package reprocess

import (
	"context"
	"time"

	"github.com/smallbiznis/communa/internal/config"
	"github.com/smallbiznis/communa/internal/ratelimit"
	webhookservice "github.com/smallbiznis/communa/internal/webhook/service"
	eventdomain "github.com/smallbiznis/communa/internal/webhookevent/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lockKey = "communa:webhook:reprocess"

// Worker sweeps unprocessed ledger entries that have sat past the
// minimum age and runs them through the pipeline again. It is the
// recovery path for transient handler failures.
type Worker struct {
	cfg     config.Config
	db      *gorm.DB
	log     *zap.Logger
	events  eventdomain.Repository
	webhook *webhookservice.Service
	locker  *ratelimit.Locker
}

type Params struct {
	fx.In

	Cfg     config.Config
	DB      *gorm.DB
	Log     *zap.Logger
	Events  eventdomain.Repository
	Webhook *webhookservice.Service
	Locker  *ratelimit.Locker `optional:"true"`
}

func New(p Params) *Worker {
	return &Worker{
		cfg:     p.Cfg,
		db:      p.DB,
		log:     p.Log.Named("webhook.reprocess"),
		events:  p.Events,
		webhook: p.Webhook,
		locker:  p.Locker,
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.ReprocessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.log.Error("reprocess sweep failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single sweep. With redis configured, replicas
// coordinate through a lock so only one sweeps at a time.
func (w *Worker) RunOnce(ctx context.Context) error {
	if w.locker != nil {
		token, ok, err := w.locker.TryLock(ctx, lockKey, w.cfg.ReprocessInterval)
		if err != nil {
			w.log.Warn("sweep lock unavailable, proceeding without it", zap.Error(err))
		} else if !ok {
			w.log.Debug("sweep already running elsewhere")
			return nil
		} else {
			defer func() {
				if err := w.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
					w.log.Warn("sweep lock release failed", zap.Error(err))
				}
			}()
		}
	}

	olderThan := time.Now().UTC().Add(-w.cfg.ReprocessMinAge)
	events, err := w.events.ListUnprocessed(ctx, w.db, olderThan, w.cfg.ReprocessMaxAttempts, w.cfg.ReprocessBatchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	w.log.Info("reprocessing unprocessed events", zap.Int("count", len(events)))
	for i := range events {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.webhook.Process(ctx, &events[i]); err != nil {
			w.log.Error("reprocess failed",
				zap.String("event_id", events[i].EventID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func registerHooks(lc fx.Lifecycle, w *Worker) {
	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())
			go w.RunForever(runCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}

var Module = fx.Module("webhook.reprocess",
	fx.Provide(New),
	fx.Invoke(registerHooks),
)
