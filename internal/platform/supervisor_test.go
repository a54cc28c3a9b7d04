package platform

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func fastPolicy() SupervisorPolicy {
	return SupervisorPolicy{InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, BackoffFactor: 1}
}

func TestSupervisorRestartsFailingTask(t *testing.T) {
	var restarted atomic.Int32
	supervisor := NewSupervisor(fastPolicy(), SupervisorHooks{
		OnRestart: func(string, error, int) { restarted.Add(1) },
	})
	var calls atomic.Int32
	run := func(ctx context.Context) error {
		if calls.Add(1) <= 2 {
			return errors.New("listen failed")
		}
		<-ctx.Done()
		return ctx.Err()
	}
	if err := supervisor.Start(context.Background(), TaskSpec{Name: "http"}, run); err != nil {
		t.Fatalf("start task: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if calls.Load() < 3 {
		t.Fatalf("expected at least 3 calls, got=%d", calls.Load())
	}
	if got := supervisor.Tasks(); len(got) != 1 || got[0] != "http" {
		t.Fatalf("unexpected running tasks: %v", got)
	}

	supervisor.StopAll()
	if len(supervisor.Tasks()) != 0 {
		t.Fatalf("expected no running tasks after stop all, got=%v", supervisor.Tasks())
	}
	if restarted.Load() != 2 {
		t.Fatalf("expected 2 restart hooks, got=%d", restarted.Load())
	}
	status := supervisor.Status()
	if len(status) != 1 || status[0].Restarts != 2 || status[0].Running {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestSupervisorTransientTaskEndsOnSuccess(t *testing.T) {
	supervisor := NewSupervisor(fastPolicy(), SupervisorHooks{})
	var calls atomic.Int32
	err := supervisor.Start(context.Background(), TaskSpec{Name: "broadcast", Restart: RestartTransient}, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("start task: %v", err)
	}
	supervisor.Wait("broadcast")
	if calls.Load() != 1 {
		t.Fatalf("expected one call, got=%d", calls.Load())
	}
}

func TestSupervisorGivesUpAfterMaxRestarts(t *testing.T) {
	policy := fastPolicy()
	policy.MaxRestarts = 2
	gaveUp := make(chan int, 1)
	supervisor := NewSupervisor(policy, SupervisorHooks{
		OnGiveUp: func(_ string, _ error, restarts int) { gaveUp <- restarts },
	})
	if err := supervisor.Start(context.Background(), TaskSpec{Name: "http", Restart: RestartTransient}, func(context.Context) error {
		return errors.New("address in use")
	}); err != nil {
		t.Fatalf("start task: %v", err)
	}

	select {
	case restarts := <-gaveUp:
		if restarts != 2 {
			t.Fatalf("expected give up after 2 restarts, got=%d", restarts)
		}
	case <-time.After(time.Second):
		t.Fatal("supervisor never gave up")
	}
	supervisor.Wait("http")
	status := supervisor.Status()
	if !status[0].GaveUp || status[0].LastError != "address in use" {
		t.Fatalf("unexpected status: %+v", status[0])
	}
}

func TestSupervisorStopsWithParentContext(t *testing.T) {
	supervisor := NewSupervisor(fastPolicy(), SupervisorHooks{})
	ctx, cancel := context.WithCancel(context.Background())
	if err := supervisor.Start(ctx, TaskSpec{Name: "http"}, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}); err != nil {
		t.Fatalf("start task: %v", err)
	}
	cancel()
	supervisor.Wait("http")
	if len(supervisor.Tasks()) != 0 {
		t.Fatalf("expected no running tasks, got=%v", supervisor.Tasks())
	}
}

func TestSupervisorRejectsDuplicateAndInvalidTasks(t *testing.T) {
	supervisor := NewSupervisor(fastPolicy(), SupervisorHooks{})
	block := func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}
	if err := supervisor.Start(context.Background(), TaskSpec{Name: "http"}, block); err != nil {
		t.Fatalf("start task: %v", err)
	}
	defer supervisor.StopAll()

	if err := supervisor.Start(context.Background(), TaskSpec{Name: "http"}, block); err == nil {
		t.Fatal("expected duplicate task error")
	}
	if err := supervisor.Start(context.Background(), TaskSpec{}, block); err == nil {
		t.Fatal("expected missing name error")
	}
	if err := supervisor.Start(context.Background(), TaskSpec{Name: "x"}, nil); err == nil {
		t.Fatal("expected missing runner error")
	}
	if err := supervisor.Start(context.Background(), TaskSpec{Name: "x", Restart: "sometimes"}, block); err == nil {
		t.Fatal("expected policy error")
	}
}

func TestSupervisorStopByName(t *testing.T) {
	supervisor := NewSupervisor(fastPolicy(), SupervisorHooks{})
	stopped := make(chan struct{})
	if err := supervisor.Start(context.Background(), TaskSpec{Name: "broadcast"}, func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return nil
	}); err != nil {
		t.Fatalf("start task: %v", err)
	}
	supervisor.Stop("broadcast")
	select {
	case <-stopped:
	default:
		t.Fatal("task was not stopped")
	}
	supervisor.Stop("missing")
}
