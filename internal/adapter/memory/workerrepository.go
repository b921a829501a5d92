package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
)

var _ secondary.WorkerRepository = (*WorkerRepository)(nil)

type WorkerRepository struct {
	mu      sync.RWMutex
	workers map[string]domain.WorkerInfo
}

func NewWorkerRepository() *WorkerRepository {
	return &WorkerRepository{workers: make(map[string]domain.WorkerInfo)}
}

func (r *WorkerRepository) SaveWorker(_ context.Context, worker *domain.WorkerInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[worker.ID] = *worker
	return nil
}

func (r *WorkerRepository) GetWorker(_ context.Context, workerID string) (*domain.WorkerInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[workerID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WorkerRepository) UpdateWorkerHeartbeat(_ context.Context, workerID string, load int, heartbeatTime time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[workerID]
	if !ok {
		return fmt.Errorf("worker not found: %s", workerID)
	}
	w.CurrentLoad = load
	w.LastHeartbeat = heartbeatTime
	r.workers[workerID] = w
	return nil
}

func (r *WorkerRepository) RemoveWorker(_ context.Context, workerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, workerID)
	return nil
}

func (r *WorkerRepository) RemoveInactiveWorkers(_ context.Context, cutoffTime time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, w := range r.workers {
		if w.LastHeartbeat.Before(cutoffTime) {
			delete(r.workers, id)
		}
	}
	return nil
}

func (r *WorkerRepository) GetAllWorkers(_ context.Context) ([]*domain.WorkerInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.WorkerInfo, 0, len(r.workers))
	for _, w := range r.workers {
		w := w
		out = append(out, &w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
