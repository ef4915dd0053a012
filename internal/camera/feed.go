// Package camera maintains the connection to the yard camera's RTSP
// feed and tracks its liveness. The motion loop only runs while the feed
// is live; frame pixels themselves are pulled separately as JPEG stills.
package camera

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/pion/rtp"

	"github.com/YuujiKamura/tonsuu-checker/internal/logger"
	"github.com/YuujiKamura/tonsuu-checker/internal/service"
)

// FeedMonitor keeps an RTSP session to the camera open and records when
// media packets last arrived. A feed with recent packets is "live".
type FeedMonitor struct {
	*service.ServiceBase

	url               string
	username          string
	password          string
	reconnectInterval time.Duration
	staleAfter        time.Duration

	client     *gortsplib.Client
	connected  bool
	lastPacket time.Time
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
}

// FeedConfig contains feed monitor configuration.
type FeedConfig struct {
	URL               string
	Username          string
	Password          string
	ReconnectInterval time.Duration
	StaleAfter        time.Duration // feed counts as dead after this silence
}

// NewFeedMonitor creates a feed monitor for one camera.
func NewFeedMonitor(config FeedConfig, log *logger.Logger) *FeedMonitor {
	if config.ReconnectInterval == 0 {
		config.ReconnectInterval = 5 * time.Second
	}
	if config.StaleAfter == 0 {
		config.StaleAfter = 15 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &FeedMonitor{
		ServiceBase:       service.NewServiceBase("camera-feed", log),
		url:               config.URL,
		username:          config.Username,
		password:          config.Password,
		reconnectInterval: config.ReconnectInterval,
		staleAfter:        config.StaleAfter,
		ctx:               ctx,
		cancel:            cancel,
	}
}

// Start begins the connection loop.
func (f *FeedMonitor) Start(ctx context.Context) error {
	f.GetStatus().SetStatus(service.StatusStarting)
	f.LogInfo("Starting camera feed monitor", "url", f.url)
	go f.run()
	f.GetStatus().SetStatus(service.StatusRunning)
	return nil
}

// Stop closes the RTSP session.
func (f *FeedMonitor) Stop(ctx context.Context) error {
	f.GetStatus().SetStatus(service.StatusStopping)
	f.cancel()

	f.mu.Lock()
	if f.client != nil {
		f.client.Close()
		f.client = nil
	}
	f.connected = false
	f.mu.Unlock()

	f.GetStatus().SetStatus(service.StatusStopped)
	return nil
}

// Live reports whether the feed is connected and has delivered a packet
// recently. An unavailable feed yields false, never an error: recovering
// the source is this monitor's own background job.
func (f *FeedMonitor) Live() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected && time.Since(f.lastPacket) <= f.staleAfter
}

// LastPacketTime returns the arrival time of the most recent packet.
func (f *FeedMonitor) LastPacketTime() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastPacket
}

// run manages the connection lifecycle.
func (f *FeedMonitor) run() {
	for {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		if err := f.connect(); err != nil {
			f.LogError("Camera feed connection failed", err, "url", f.url)
			f.setConnected(false)
			f.PublishEvent(service.EventTypeFeedDisconnected, map[string]interface{}{
				"url":    f.url,
				"reason": err.Error(),
			})

			select {
			case <-f.ctx.Done():
				return
			case <-time.After(f.reconnectInterval):
			}
			continue
		}

		// Block until the session drops, then reconnect.
		f.waitForDisconnect()
	}
}

// connect establishes the RTSP session and subscribes to the first video
// media found. Packet payloads are not decoded; only their arrival time
// matters for liveness.
func (f *FeedMonitor) connect() error {
	u, err := base.ParseURL(f.url)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	if f.username != "" && f.password != "" && u.User == nil {
		u.User = url.UserPassword(f.username, f.password)
	}

	client := &gortsplib.Client{}
	desc, _, err := client.Describe(u)
	if err != nil {
		return fmt.Errorf("failed to describe stream: %w", err)
	}

	var videoMedia *description.Media
	var videoFormat format.Format
	for _, media := range desc.Medias {
		if media.Type == description.MediaTypeVideo && len(media.Formats) > 0 {
			videoMedia = media
			videoFormat = media.Formats[0]
			break
		}
	}
	if videoMedia == nil {
		return fmt.Errorf("no video media in stream")
	}

	if err := client.SetupAll(desc.BaseURL, desc.Medias); err != nil {
		return fmt.Errorf("failed to setup stream: %w", err)
	}

	client.OnPacketRTP(videoMedia, videoFormat, func(pkt *rtp.Packet) {
		f.mu.Lock()
		f.lastPacket = time.Now()
		f.mu.Unlock()
	})

	if _, err := client.Play(nil); err != nil {
		return fmt.Errorf("failed to play stream: %w", err)
	}

	f.mu.Lock()
	f.client = client
	f.connected = true
	f.lastPacket = time.Now()
	f.mu.Unlock()

	f.LogInfo("Camera feed connected", "url", f.url)
	f.PublishEvent(service.EventTypeFeedConnected, map[string]interface{}{"url": f.url})

	return nil
}

// waitForDisconnect blocks until the session ends or the monitor stops.
func (f *FeedMonitor) waitForDisconnect() {
	f.mu.RLock()
	client := f.client
	f.mu.RUnlock()
	if client == nil {
		return
	}

	waitDone := make(chan error, 1)
	go func() { waitDone <- client.Wait() }()

	select {
	case err := <-waitDone:
		if err != nil && f.ctx.Err() == nil {
			f.LogError("Camera feed dropped", err, "url", f.url)
		}
	case <-f.ctx.Done():
	}

	f.setConnected(false)
}

func (f *FeedMonitor) setConnected(connected bool) {
	f.mu.Lock()
	f.connected = connected
	f.mu.Unlock()
}
