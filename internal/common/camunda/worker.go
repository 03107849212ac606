// internal/common/camunda/worker.go
package camunda

import (
	"sort"
	"sync"
	"time"

	"delivery-estimator/internal/common/config"
	"delivery-estimator/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// JobHandler completes or fails the job itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// WorkerOpener is the part of zbc.Client used to open job workers.
type WorkerOpener interface {
	NewJobWorker() worker.JobWorkerBuilderStep1
}

// Manager opens one job worker per enabled task type and closes them together.
type Manager struct {
	client   WorkerOpener
	defaults config.CamundaConfig
	logger   logger.Logger

	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewManager(client WorkerOpener, defaults config.CamundaConfig, log logger.Logger) *Manager {
	return &Manager{
		client:   client,
		defaults: defaults,
		logger:   log,
		workers:  make(map[string]worker.JobWorker),
	}
}

// Start opens a worker for taskType unless wcfg disables it. Zero values in
// wcfg fall back to the camunda section.
func (m *Manager) Start(taskType string, wcfg config.WorkerConfig, handler JobHandler) bool {
	if !wcfg.Enabled {
		m.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	maxJobs := wcfg.MaxJobsActive
	if maxJobs == 0 {
		maxJobs = m.defaults.MaxJobsActive
	}
	timeout := wcfg.Timeout
	if timeout == 0 {
		timeout = m.defaults.Timeout
	}

	w := m.client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(maxJobs).
		Timeout(time.Duration(timeout) * time.Millisecond).
		RequestTimeout(time.Duration(m.defaults.RequestTimeout) * time.Millisecond).
		Open()

	m.mu.Lock()
	m.workers[taskType] = w
	m.mu.Unlock()

	m.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": maxJobs,
		"timeout_ms":    timeout,
	})
	return true
}

// TaskTypes lists the running workers in sorted order.
func (m *Manager) TaskTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.workers))
	for t := range m.workers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Stop closes every worker and waits for in-flight jobs.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for taskType, w := range m.workers {
		m.logger.Info("stopping worker", map[string]interface{}{"taskType": taskType})
		w.Close()
		w.AwaitClose()
		delete(m.workers, taskType)
	}
}
