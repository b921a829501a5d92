package worker

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gitlab.com/judgeflow.net/internal/config"
	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/core/services/processor"
	"gitlab.com/judgeflow.net/internal/domain"
	"gitlab.com/judgeflow.net/internal/schedulerengine"
)

const deregisterTimeout = 5 * time.Second

var _ IPool = (*Pool)(nil)

// Pool claims jobs from the store and runs them through the processor with a
// fixed number of goroutines.
type Pool struct {
	ID        string
	cfg       *config.WorkerPoolCfg
	jobs      secondary.JobStore
	processor processor.IProcessorService
	registry  IWorkerRegistrationService
	logger    primary.Logger
	load      atomic.Int32

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

// NewPool creates a pool. registry may be nil when workers are not tracked.
func NewPool(
	cfg *config.WorkerPoolCfg,
	jobs secondary.JobStore,
	proc processor.IProcessorService,
	registry IWorkerRegistrationService,
	logger primary.Logger,
) *Pool {
	return &Pool{
		ID:        uuid.New().String(),
		cfg:       cfg,
		jobs:      jobs,
		processor: proc,
		registry:  registry,
		logger:    logger,
		inFlight:  make(map[uuid.UUID]struct{}),
	}
}

func (p *Pool) Load() int {
	return int(p.load.Load())
}

func (p *Pool) Run(ctx context.Context) error {
	engine := schedulerengine.NewSchedulerEngine(p.cfg, p.jobs, p.registry, p.logger)
	engine.RecoverStaleJobs(ctx)
	p.register(ctx)

	p.logger.Info("Worker pool started", "workerId", p.ID, "concurrency", p.cfg.Concurrency)

	// claims are renewed until the last in-flight job has drained
	leaseCtx, stopLeases := context.WithCancel(context.WithoutCancel(ctx))
	leasesDone := make(chan struct{})
	go func() {
		defer close(leasesDone)
		p.renewClaims(leaseCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Concurrency; i++ {
		slot := i
		g.Go(func() error {
			p.loop(gctx, slot)
			return nil
		})
	}
	g.Go(func() error {
		engine.Run(gctx)
		return nil
	})
	if p.registry != nil && p.cfg.HeartbeatInterval > 0 {
		g.Go(func() error {
			p.sendHeartbeats(gctx)
			return nil
		})
	}

	err := g.Wait()
	stopLeases()
	<-leasesDone
	p.deregister(ctx)
	p.logger.Info("Worker pool stopped", "workerId", p.ID)
	return err
}

// loop claims and processes jobs until ctx is cancelled
func (p *Pool) loop(ctx context.Context, slot int) {
	for {
		if ctx.Err() != nil {
			return
		}

		job := p.jobs.ClaimNext(ctx)
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.PollInterval):
			}
			continue
		}

		p.track(job.ID)
		p.logger.Debug("Claimed job", "slot", slot, "jobId", job.ID, "submissionId", job.SubmissionID)
		// shutdown must not abort a job halfway through its test cases
		p.processor.Process(context.WithoutCancel(ctx), job)
		p.untrack(job.ID)
	}
}

func (p *Pool) track(id uuid.UUID) {
	p.mu.Lock()
	p.inFlight[id] = struct{}{}
	p.mu.Unlock()
	p.load.Add(1)
}

func (p *Pool) untrack(id uuid.UUID) {
	p.mu.Lock()
	delete(p.inFlight, id)
	p.mu.Unlock()
	p.load.Add(-1)
}

// leaseInterval is how often in-flight claims are renewed. It follows the
// heartbeat and stays well inside the visibility timeout.
func (p *Pool) leaseInterval() time.Duration {
	interval := p.cfg.HeartbeatInterval
	if third := p.cfg.VisibilityTimeout / 3; third > 0 && (interval <= 0 || third < interval) {
		interval = third
	}
	return interval
}

func (p *Pool) renewClaims(ctx context.Context) {
	interval := p.leaseInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.touchInFlight(ctx)
		}
	}
}

func (p *Pool) touchInFlight(ctx context.Context) {
	p.mu.Lock()
	ids := make([]uuid.UUID, 0, len(p.inFlight))
	for id := range p.inFlight {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		if !p.jobs.Touch(ctx, id) {
			p.logger.Debug("Claim no longer held", "workerId", p.ID, "jobId", id)
		}
	}
}

func (p *Pool) sendHeartbeats(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.registry.Heartbeat(ctx, p.ID, p.Load()); err != nil {
				p.logger.Warn("Heartbeat failed, registering again", "error", err)
				p.register(ctx)
			}
		}
	}
}

func (p *Pool) register(ctx context.Context) {
	if p.registry == nil {
		return
	}
	hostname, _ := os.Hostname()
	info := &domain.WorkerInfo{
		ID:          p.ID,
		Capacity:    p.cfg.Concurrency,
		CurrentLoad: p.Load(),
		Hostname:    hostname,
		Version:     p.cfg.Version,
	}
	if err := p.registry.RegisterWorker(ctx, info); err != nil {
		p.logger.Warn("Failed to register worker", "workerId", p.ID, "error", err)
	}
}

func (p *Pool) deregister(ctx context.Context) {
	if p.registry == nil {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deregisterTimeout)
	defer cancel()
	if err := p.registry.DeregisterWorker(dctx, p.ID); err != nil {
		p.logger.Warn("Failed to deregister worker", "workerId", p.ID, "error", err)
	}
}
