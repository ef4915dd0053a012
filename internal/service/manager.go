package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/YuujiKamura/tonsuu-checker/internal/logger"
)

// Manager manages the lifecycle of all registered services.
type Manager struct {
	logger     *logger.Logger
	services   []Service
	statuses   map[string]*ServiceStatus
	eventBus   *EventBus
	startOrder []string
	mu         sync.RWMutex
	wg         sync.WaitGroup
}

// NewManager creates a new service manager.
func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		logger:   log,
		statuses: make(map[string]*ServiceStatus),
		eventBus: NewEventBus(100),
	}
}

// GetEventBus returns the event bus for inter-service communication.
func (m *Manager) GetEventBus() *EventBus {
	return m.eventBus
}

// Register registers a service with the manager.
func (m *Manager) Register(svc Service) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.services = append(m.services, svc)
	m.statuses[svc.Name()] = NewServiceStatus(svc.Name())

	if svcWithEvents, ok := svc.(ServiceWithEvents); ok {
		svcWithEvents.SetEventBus(m.eventBus)
	}
}

// Start starts all registered services in registration order.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Starting services", "count", len(m.services))

	for _, svc := range m.services {
		status := m.statuses[svc.Name()]
		status.SetStatus(StatusStarting)
		m.startOrder = append(m.startOrder, svc.Name())

		if err := svc.Start(ctx); err != nil {
			status.SetError(err)
			m.eventBus.Publish(Event{
				Type:   EventTypeServiceError,
				Source: "manager",
				Data:   map[string]interface{}{"service": svc.Name(), "error": err.Error()},
			})
			return fmt.Errorf("failed to start %s: %w", svc.Name(), err)
		}

		status.SetStatus(StatusRunning)
		m.eventBus.Publish(Event{
			Type:   EventTypeServiceStarted,
			Source: "manager",
			Data:   map[string]interface{}{"service": svc.Name()},
		})
		m.logger.Info("Service started", "service", svc.Name())
	}

	return nil
}

// Shutdown stops all services in reverse start order.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Shutting down services", "count", len(m.startOrder))
	defer m.eventBus.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := len(m.startOrder) - 1; i >= 0; i-- {
			name := m.startOrder[i]
			var svc Service
			for _, s := range m.services {
				if s.Name() == name {
					svc = s
					break
				}
			}
			if svc == nil {
				continue
			}

			status := m.statuses[name]
			status.SetStatus(StatusStopping)

			stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := svc.Stop(stopCtx); err != nil {
				status.SetError(err)
				m.logger.Error("Error stopping service", "service", name, "error", err)
			} else {
				status.SetStatus(StatusStopped)
				m.logger.Info("Service stopped", "service", name)
			}
			cancel()
		}
		m.wg.Wait()
	}()

	select {
	case <-done:
		m.logger.Info("All services stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// GetServiceStatus returns the status of a service.
func (m *Manager) GetServiceStatus(serviceName string) *ServiceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statuses[serviceName]
}

// GetAllStatuses returns all service statuses.
func (m *Manager) GetAllStatuses() map[string]*ServiceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make(map[string]*ServiceStatus, len(m.statuses))
	for name, status := range m.statuses {
		statuses[name] = status
	}
	return statuses
}
