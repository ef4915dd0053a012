// Package service provides the lifecycle plumbing shared by the
// long-running parts of the system: a Service interface, status
// tracking, an event bus for loose coupling between services, and a
// manager that starts and stops everything in order.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/YuujiKamura/tonsuu-checker/internal/logger"
)

// Service represents a component that can be started and stopped.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Name() string
}

// ServiceWithEvents is a service that publishes to or consumes from the
// event bus.
type ServiceWithEvents interface {
	Service
	SetEventBus(bus *EventBus)
}

// Status represents the state of a service.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// ServiceStatus tracks the status of a service.
type ServiceStatus struct {
	Name      string
	Status    Status
	StartedAt time.Time
	Error     error
	mu        sync.RWMutex
}

// NewServiceStatus creates a new service status tracker.
func NewServiceStatus(name string) *ServiceStatus {
	return &ServiceStatus{Name: name, Status: StatusStopped}
}

// SetStatus sets the service status.
func (ss *ServiceStatus) SetStatus(status Status) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.Status = status
	if status == StatusRunning {
		ss.StartedAt = time.Now()
		ss.Error = nil
	}
}

// SetError sets the service error status.
func (ss *ServiceStatus) SetError(err error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.Status = StatusError
	ss.Error = err
}

// GetStatus returns the current status.
func (ss *ServiceStatus) GetStatus() Status {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.Status
}

// GetError returns the current error.
func (ss *ServiceStatus) GetError() error {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.Error
}

// IsRunning returns true if the service is running.
func (ss *ServiceStatus) IsRunning() bool {
	return ss.GetStatus() == StatusRunning
}

// GetUptime returns the uptime of the service.
func (ss *ServiceStatus) GetUptime() time.Duration {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	if ss.Status == StatusRunning && !ss.StartedAt.IsZero() {
		return time.Since(ss.StartedAt)
	}
	return 0
}

// ServiceBase provides a base implementation for services.
type ServiceBase struct {
	name     string
	logger   *logger.Logger
	eventBus *EventBus
	status   *ServiceStatus
}

// NewServiceBase creates a new service base.
func NewServiceBase(name string, log *logger.Logger) *ServiceBase {
	return &ServiceBase{
		name:   name,
		logger: log,
		status: NewServiceStatus(name),
	}
}

// Name returns the service name.
func (sb *ServiceBase) Name() string {
	return sb.name
}

// SetEventBus sets the event bus.
func (sb *ServiceBase) SetEventBus(bus *EventBus) {
	sb.eventBus = bus
}

// GetEventBus returns the event bus.
func (sb *ServiceBase) GetEventBus() *EventBus {
	return sb.eventBus
}

// GetStatus returns the service status.
func (sb *ServiceBase) GetStatus() *ServiceStatus {
	return sb.status
}

// PublishEvent publishes an event to the event bus.
func (sb *ServiceBase) PublishEvent(eventType EventType, data map[string]interface{}) {
	if sb.eventBus != nil {
		sb.eventBus.Publish(Event{
			Type:   eventType,
			Source: sb.name,
			Data:   data,
		})
	}
}

// LogInfo logs an info message tagged with the service name.
func (sb *ServiceBase) LogInfo(msg string, fields ...interface{}) {
	sb.logger.Info(msg, append([]interface{}{"service", sb.name}, fields...)...)
}

// LogError logs an error message tagged with the service name.
func (sb *ServiceBase) LogError(msg string, err error, fields ...interface{}) {
	allFields := append([]interface{}{"service", sb.name, "error", err}, fields...)
	sb.logger.Error(msg, allFields...)
}

// LogDebug logs a debug message tagged with the service name.
func (sb *ServiceBase) LogDebug(msg string, fields ...interface{}) {
	sb.logger.Debug(msg, append([]interface{}{"service", sb.name}, fields...)...)
}
