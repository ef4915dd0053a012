package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DatabaseChecker checks database connectivity
type DatabaseChecker struct {
	dbPath string
}

func NewDatabaseChecker(dbPath string) *DatabaseChecker {
	return &DatabaseChecker{dbPath: dbPath}
}

func (c *DatabaseChecker) Name() string {
	return "database"
}

func (c *DatabaseChecker) Check(ctx context.Context) Check {
	check := Check{
		Name:      c.Name(),
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}

	if c.dbPath == "" {
		check.Status = StatusDegraded
		check.Message = "Database path not configured"
		return check
	}

	if _, err := os.Stat(c.dbPath); os.IsNotExist(err) {
		// Database file doesn't exist yet - this is OK for first run
		check.Status = StatusHealthy
		check.Message = "Database file will be created on first use"
		check.Details["file_exists"] = false
		return check
	}

	db, err := sql.Open("sqlite3", c.dbPath)
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("Failed to open database: %v", err)
		return check
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("Database ping failed: %v", err)
		return check
	}

	check.Status = StatusHealthy
	check.Message = "Database connection OK"
	check.Details["file_exists"] = true

	return check
}

// ProviderChecker checks inference provider connectivity
type ProviderChecker struct {
	serviceURL string
	client     *http.Client
}

func NewProviderChecker(serviceURL string) *ProviderChecker {
	return &ProviderChecker{
		serviceURL: serviceURL,
		client: &http.Client{
			Timeout: 3 * time.Second,
		},
	}
}

func (c *ProviderChecker) Name() string {
	return "provider"
}

func (c *ProviderChecker) Check(ctx context.Context) Check {
	check := Check{
		Name:      c.Name(),
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}

	if c.serviceURL == "" {
		check.Status = StatusDegraded
		check.Message = "Inference provider URL not configured"
		return check
	}

	healthURL := fmt.Sprintf("%s/health", c.serviceURL)
	req, err := http.NewRequestWithContext(ctx, "GET", healthURL, nil)
	if err != nil {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("Failed to create request: %v", err)
		return check
	}

	resp, err := c.client.Do(req)
	if err != nil {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("Inference provider unreachable: %v", err)
		check.Details["url"] = c.serviceURL
		return check
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("Inference provider returned status %d", resp.StatusCode)
		check.Details["status_code"] = resp.StatusCode
		return check
	}

	check.Status = StatusHealthy
	check.Message = "Inference provider is reachable"
	check.Details["url"] = c.serviceURL
	check.Details["status_code"] = resp.StatusCode

	return check
}

// StorageChecker checks storage availability
type StorageChecker struct {
	snapshotsDir string
}

func NewStorageChecker(snapshotsDir string) *StorageChecker {
	return &StorageChecker{snapshotsDir: snapshotsDir}
}

func (c *StorageChecker) Name() string {
	return "storage"
}

func (c *StorageChecker) Check(ctx context.Context) Check {
	check := Check{
		Name:      c.Name(),
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}

	if c.snapshotsDir != "" {
		if err := os.MkdirAll(c.snapshotsDir, 0755); err != nil {
			check.Status = StatusUnhealthy
			check.Message = fmt.Sprintf("Failed to create snapshots directory: %v", err)
			return check
		}
		check.Details["snapshots_dir"] = c.snapshotsDir
		check.Details["snapshots_dir_writable"] = true
	}

	check.Status = StatusHealthy
	check.Message = "Storage directories accessible"

	return check
}

// FeedChecker reports the camera feed state. A down feed degrades the
// appliance but does not make it unhealthy, the API keeps working.
type FeedChecker struct {
	feed interface {
		Live() bool
		LastPacketTime() time.Time
	}
}

func NewFeedChecker(feed interface {
	Live() bool
	LastPacketTime() time.Time
}) *FeedChecker {
	return &FeedChecker{feed: feed}
}

func (c *FeedChecker) Name() string {
	return "camera_feed"
}

func (c *FeedChecker) Check(ctx context.Context) Check {
	check := Check{
		Name:      c.Name(),
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}

	if c.feed == nil {
		check.Status = StatusHealthy
		check.Message = "No camera configured"
		return check
	}

	if c.feed.Live() {
		check.Status = StatusHealthy
		check.Message = "Camera feed is live"
	} else {
		check.Status = StatusDegraded
		check.Message = "Camera feed is down"
	}
	check.Details["last_packet"] = c.feed.LastPacketTime()

	return check
}
