package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/logger"
	"github.com/arcstream/arcstream/internal/queue"
)

// PoolConfig sizes the worker pool.
type PoolConfig struct {
	// WorkersPerKind defaults to 1 for any kind not listed.
	WorkersPerKind map[queue.Kind]int
	// PollInterval is how long an idle worker sleeps before asking the
	// queue again.
	PollInterval time.Duration
	// LeaseTTL is the claim duration per job; workers do not renew it.
	LeaseTTL time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		WorkersPerKind: map[queue.Kind]int{
			queue.KindFolderScan:     2,
			queue.KindMediaAnalyze:   2,
			queue.KindMetadataEnrich: 2,
			queue.KindIndexUpsert:    1,
			queue.KindImageFetch:     4,
		},
		PollInterval: 250 * time.Millisecond,
		LeaseTTL:     2 * time.Minute,
	}
}

// Pool runs the dequeue loops that feed the dispatcher.
type Pool struct {
	queue      *queue.Service
	dispatcher *Dispatcher
	cfg        PoolConfig
}

func NewPool(q *queue.Service, d *Dispatcher, cfg PoolConfig) *Pool {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 2 * time.Minute
	}
	return &Pool{queue: q, dispatcher: d, cfg: cfg}
}

// Start launches all workers; they stop when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for _, kind := range queue.Kinds {
		n := p.cfg.WorkersPerKind[kind]
		if n <= 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			workerID := fmt.Sprintf("%s-worker-%d", kind, i)
			go p.run(ctx, kind, workerID)
		}
	}
}

func (p *Pool) run(ctx context.Context, kind queue.Kind, workerID string) {
	log := logger.FromCtx(ctx).With(zap.String("worker", workerID))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		lease, err := p.queue.Dequeue(ctx, kind, workerID, p.cfg.LeaseTTL, nil)
		if err != nil {
			log.Warn("dequeue failed", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if lease == nil {
			p.sleep(ctx)
			continue
		}

		if err := p.dispatcher.Handle(ctx, lease); err != nil {
			log.Warn("failed to settle job", zap.Int64("job_id", lease.Job.ID), zap.Error(err))
		}
	}
}

func (p *Pool) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.cfg.PollInterval):
	}
}

// decodePayload recovers a typed payload from an event that traveled
// through JSON (subscriber side sees map[string]any).
func decodePayload[T any](payload any) (T, error) {
	var out T
	raw, err := json.Marshal(payload)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}
