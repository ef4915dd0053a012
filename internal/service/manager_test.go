package service

import (
	"context"
	"errors"
	"testing"

	"github.com/YuujiKamura/tonsuu-checker/internal/logger"
)

// recordingService appends its lifecycle transitions to a shared log.
type recordingService struct {
	*ServiceBase
	log      *[]string
	startErr error
}

func newRecordingService(name string, log *[]string) *recordingService {
	return &recordingService{
		ServiceBase: NewServiceBase(name, logger.NewNop()),
		log:         log,
	}
}

func (s *recordingService) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	*s.log = append(*s.log, "start:"+s.Name())
	return nil
}

func (s *recordingService) Stop(ctx context.Context) error {
	*s.log = append(*s.log, "stop:"+s.Name())
	return nil
}

func TestManager_StartAndShutdownOrder(t *testing.T) {
	var log []string
	m := NewManager(logger.NewNop())
	m.Register(newRecordingService("first", &log))
	m.Register(newRecordingService("second", &log))
	m.Register(newRecordingService("third", &log))

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	want := []string{
		"start:first", "start:second", "start:third",
		"stop:third", "stop:second", "stop:first",
	}
	if len(log) != len(want) {
		t.Fatalf("Lifecycle log %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("Lifecycle step %d = %s, want %s", i, log[i], want[i])
		}
	}
}

func TestManager_StartFailureStopsSequence(t *testing.T) {
	var log []string
	m := NewManager(logger.NewNop())
	m.Register(newRecordingService("ok", &log))
	failing := newRecordingService("broken", &log)
	failing.startErr = errors.New("no device")
	m.Register(failing)
	m.Register(newRecordingService("never", &log))

	err := m.Start(context.Background())
	if err == nil {
		t.Fatal("Expected start error")
	}
	for _, entry := range log {
		if entry == "start:never" {
			t.Error("Services after the failing one must not start")
		}
	}

	status := m.GetServiceStatus("broken")
	if status == nil || status.GetError() == nil {
		t.Error("Expected failure recorded in service status")
	}
}

func TestManager_StatusTracking(t *testing.T) {
	var log []string
	m := NewManager(logger.NewNop())
	m.Register(newRecordingService("svc", &log))

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := m.GetServiceStatus("svc")
	if status == nil || status.GetStatus() != StatusRunning {
		t.Errorf("Expected running status, got %v", status.GetStatus())
	}

	all := m.GetAllStatuses()
	if _, ok := all["svc"]; !ok {
		t.Error("Expected svc in all statuses")
	}

	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if status.GetStatus() != StatusStopped {
		t.Errorf("Expected stopped status, got %v", status.GetStatus())
	}
}
