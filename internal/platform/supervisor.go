package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// RestartPolicy decides whether a task that returned is run again.
type RestartPolicy string

const (
	// RestartPermanent always restarts.
	RestartPermanent RestartPolicy = "permanent"
	// RestartTransient restarts only after an error.
	RestartTransient RestartPolicy = "transient"
	// RestartTemporary never restarts.
	RestartTemporary RestartPolicy = "temporary"
)

type SupervisorPolicy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	// MaxRestarts gives up on a task after that many restarts. Zero is
	// unlimited.
	MaxRestarts int
}

type SupervisorHooks struct {
	OnRestart func(name string, err error, restarts int)
	OnGiveUp  func(name string, err error, restarts int)
}

type TaskSpec struct {
	Name    string
	Restart RestartPolicy
}

type TaskStatus struct {
	Name      string        `json:"name"`
	Restart   RestartPolicy `json:"restart"`
	Restarts  int           `json:"restarts"`
	LastError string        `json:"last_error,omitempty"`
	GaveUp    bool          `json:"gave_up"`
	Running   bool          `json:"running"`
}

func normalizeSupervisorPolicy(policy SupervisorPolicy) SupervisorPolicy {
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = 10 * time.Millisecond
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = max(policy.InitialBackoff, 200*time.Millisecond)
	}
	if policy.BackoffFactor < 1 {
		policy.BackoffFactor = 2
	}
	return policy
}

// Supervisor runs long-lived tasks of the serve process, such as the HTTP
// listener and the stats broadcaster, and restarts them per their policy.
type Supervisor struct {
	policy SupervisorPolicy
	hooks  SupervisorHooks

	mu    sync.Mutex
	tasks map[string]*supervisedTask
}

type supervisedTask struct {
	spec   TaskSpec
	cancel context.CancelFunc
	done   chan struct{}

	restarts int
	lastErr  error
	gaveUp   bool
	running  bool
}

func NewSupervisor(policy SupervisorPolicy, hooks SupervisorHooks) *Supervisor {
	return &Supervisor{
		policy: normalizeSupervisorPolicy(policy),
		hooks:  hooks,
		tasks:  make(map[string]*supervisedTask),
	}
}

// Start runs fn under ctx until it returns without needing a restart, ctx is
// cancelled, or the task is stopped.
func (s *Supervisor) Start(ctx context.Context, spec TaskSpec, fn func(ctx context.Context) error) error {
	if spec.Name == "" {
		return errors.New("task name is required")
	}
	if fn == nil {
		return errors.New("task runner is required")
	}
	switch spec.Restart {
	case "":
		spec.Restart = RestartPermanent
	case RestartPermanent, RestartTransient, RestartTemporary:
	default:
		return fmt.Errorf("unsupported restart policy: %s", spec.Restart)
	}

	s.mu.Lock()
	if task, exists := s.tasks[spec.Name]; exists && task.running {
		s.mu.Unlock()
		return fmt.Errorf("task already running: %s", spec.Name)
	}
	taskCtx, cancel := context.WithCancel(ctx)
	task := &supervisedTask{spec: spec, cancel: cancel, done: make(chan struct{}), running: true}
	s.tasks[spec.Name] = task
	s.mu.Unlock()

	go s.run(taskCtx, task, fn)
	return nil
}

func (s *Supervisor) run(ctx context.Context, task *supervisedTask, fn func(ctx context.Context) error) {
	defer func() {
		s.mu.Lock()
		task.running = false
		s.mu.Unlock()
		task.cancel()
		close(task.done)
	}()

	backoff := s.policy.InitialBackoff
	for {
		err := fn(ctx)
		if ctx.Err() != nil || !shouldRestart(task.spec.Restart, err) {
			s.mu.Lock()
			task.lastErr = err
			s.mu.Unlock()
			return
		}

		s.mu.Lock()
		task.lastErr = err
		if s.policy.MaxRestarts > 0 && task.restarts >= s.policy.MaxRestarts {
			task.gaveUp = true
			restarts := task.restarts
			s.mu.Unlock()
			if s.hooks.OnGiveUp != nil {
				s.hooks.OnGiveUp(task.spec.Name, err, restarts)
			}
			return
		}
		task.restarts++
		restarts := task.restarts
		s.mu.Unlock()
		if s.hooks.OnRestart != nil {
			s.hooks.OnRestart(task.spec.Name, err, restarts)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff = min(time.Duration(float64(backoff)*s.policy.BackoffFactor), s.policy.MaxBackoff)
	}
}

func shouldRestart(policy RestartPolicy, err error) bool {
	switch policy {
	case RestartTransient:
		return err != nil
	case RestartTemporary:
		return false
	default:
		return true
	}
}

// Stop cancels the named task and waits for it to return.
func (s *Supervisor) Stop(name string) {
	s.mu.Lock()
	task, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return
	}
	task.cancel()
	<-task.done
}

// StopAll cancels every task and waits for all of them.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	tasks := make([]*supervisedTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	s.mu.Unlock()

	for _, task := range tasks {
		task.cancel()
	}
	for _, task := range tasks {
		<-task.done
	}
}

// Wait blocks until the named task has returned for good.
func (s *Supervisor) Wait(name string) {
	s.mu.Lock()
	task, ok := s.tasks[name]
	s.mu.Unlock()
	if ok {
		<-task.done
	}
}

// Tasks lists the names of running tasks.
func (s *Supervisor) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name, task := range s.tasks {
		if task.running {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Status reports every task started so far, sorted by name.
func (s *Supervisor) Status() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskStatus, 0, len(s.tasks))
	for _, task := range s.tasks {
		status := TaskStatus{
			Name:     task.spec.Name,
			Restart:  task.spec.Restart,
			Restarts: task.restarts,
			GaveUp:   task.gaveUp,
			Running:  task.running,
		}
		if task.lastErr != nil {
			status.LastError = task.lastErr.Error()
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
