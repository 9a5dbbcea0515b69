package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRegistryRunUpdatesCounters(t *testing.T) {
	registry := NewRegistry()
	calls := 0
	registry.Register("ok", "* * * * *", func(ctx context.Context) error {
		calls++
		return nil
	})

	skipped, err := registry.Run(context.Background(), "ok")
	if err != nil || skipped {
		t.Fatalf("run failed: skipped=%v err=%v", skipped, err)
	}
	if calls != 1 {
		t.Fatalf("expected one invocation, got %d", calls)
	}

	record, ok := registry.Get("ok")
	if !ok {
		t.Fatalf("job not found")
	}
	if record.SuccessCount != 1 || record.ErrorCount != 0 {
		t.Fatalf("unexpected counters: %+v", record)
	}
	if record.LastRunAt == nil {
		t.Fatalf("expected last run to be recorded")
	}
	if record.IsRunning {
		t.Fatalf("job must return to idle after run")
	}
}

func TestRegistryRunRecordsError(t *testing.T) {
	registry := NewRegistry()
	wantErr := errors.New("boom")
	registry.Register("failing", "* * * * *", func(ctx context.Context) error {
		return wantErr
	})

	if _, err := registry.Run(context.Background(), "failing"); !errors.Is(err, wantErr) {
		t.Fatalf("expected run error, got %v", err)
	}

	record, _ := registry.Get("failing")
	if record.ErrorCount != 1 || record.SuccessCount != 0 {
		t.Fatalf("unexpected counters: %+v", record)
	}
	if record.LastError == nil || record.LastError.Message != "boom" {
		t.Fatalf("expected last error recorded, got %+v", record.LastError)
	}
	if record.IsRunning {
		t.Fatalf("job must return to idle after failure")
	}
}

func TestRegistryRunRecoversPanic(t *testing.T) {
	registry := NewRegistry()
	registry.Register("panicking", "* * * * *", func(ctx context.Context) error {
		panic("kaboom")
	})

	_, err := registry.Run(context.Background(), "panicking")
	if err == nil {
		t.Fatalf("expected panic to surface as error")
	}

	record, _ := registry.Get("panicking")
	if record.ErrorCount != 1 {
		t.Fatalf("expected error counted, got %+v", record)
	}
	if record.IsRunning {
		t.Fatalf("job must not stay in running state after panic")
	}
}

func TestRegistryRunSkipsWhileRunning(t *testing.T) {
	registry := NewRegistry()
	started := make(chan struct{})
	release := make(chan struct{})
	registry.Register("dataCleanup", "* * * * *", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := registry.Run(context.Background(), "dataCleanup"); err != nil {
			t.Errorf("first run failed: %v", err)
		}
	}()

	<-started
	skipped, err := registry.Run(context.Background(), "dataCleanup")
	if err != nil {
		t.Fatalf("second run errored: %v", err)
	}
	if !skipped {
		t.Fatalf("expected overlapping run to be skipped")
	}

	record, _ := registry.Get("dataCleanup")
	if record.SuccessCount != 0 || record.ErrorCount != 0 {
		t.Fatalf("skipped run must not touch counters, got %+v", record)
	}

	close(release)
	wg.Wait()

	record, _ = registry.Get("dataCleanup")
	if record.SuccessCount != 1 {
		t.Fatalf("expected exactly one success after first run completed, got %+v", record)
	}
}

func TestRegistryRunUnknownJob(t *testing.T) {
	registry := NewRegistry()
	if _, err := registry.Run(context.Background(), "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestRegistrySnapshotPreservesOrder(t *testing.T) {
	registry := NewRegistry()
	names := []string{"healthCheck", "overdueScan", "dataCleanup"}
	for _, name := range names {
		registry.Register(name, "* * * * *", func(ctx context.Context) error { return nil })
	}

	snapshot := registry.Snapshot()
	if len(snapshot) != len(names) {
		t.Fatalf("expected %d records, got %d", len(names), len(snapshot))
	}
	for i, name := range names {
		if snapshot[i].Name != name {
			t.Fatalf("expected %s at position %d, got %s", name, i, snapshot[i].Name)
		}
	}
}

func TestSchedulerManualRunWorksWhileStopped(t *testing.T) {
	registry := NewRegistry()
	calls := 0
	registry.Register("healthCheck", "* * * * *", func(ctx context.Context) error {
		calls++
		return nil
	})
	scheduler := NewScheduler(registry)

	if scheduler.IsRunning() {
		t.Fatalf("scheduler must start stopped")
	}
	if _, err := scheduler.RunJob(context.Background(), "healthCheck"); err != nil {
		t.Fatalf("manual run failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected manual run to execute while stopped, got %d calls", calls)
	}

	if err := scheduler.StartAll(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !scheduler.IsRunning() {
		t.Fatalf("expected scheduler running after StartAll")
	}
	scheduler.StopAll()
	if scheduler.IsRunning() {
		t.Fatalf("expected scheduler stopped after StopAll")
	}

	if _, err := scheduler.RunJob(context.Background(), "healthCheck"); err != nil {
		t.Fatalf("manual run after stop failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected manual run after stop to execute, got %d calls", calls)
	}
}

func TestSchedulerStartAllIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	registry.Register("healthCheck", "* * * * *", func(ctx context.Context) error { return nil })
	scheduler := NewScheduler(registry)

	if err := scheduler.StartAll(); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if err := scheduler.StartAll(); err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	scheduler.StopAll()

	// 等待一小段时间确认没有残留的定时触发 panic
	time.Sleep(10 * time.Millisecond)
}
