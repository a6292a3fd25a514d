package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// ErrDisabled is returned when telemetry is not configured.
var ErrDisabled = errors.New("telemetry: disabled")

// Config holds the InfluxDB connection settings.
type Config struct {
	Enabled       bool
	URL           string
	Token         string
	Org           string
	Bucket        string
	BatchSize     int
	FlushInterval time.Duration
}

// Logger defines the logging interface used by the telemetry client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client writes deck activity metrics to InfluxDB through the
// non-blocking batched write API. Write errors are logged, never
// surfaced to dispatch: telemetry is strictly best-effort.
type Client struct {
	cfg      Config
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   Logger
	onError  func(error)
}

// New creates a telemetry client. Call Connect before writing.
func New(cfg Config) *Client {
	return &Client{cfg: cfg, logger: noopLogger{}}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// SetOnError registers a callback for asynchronous write failures.
func (c *Client) SetOnError(fn func(error)) {
	c.onError = fn
}

// Connect verifies the InfluxDB endpoint and starts the batched writer.
func (c *Client) Connect(ctx context.Context) error {
	if !c.cfg.Enabled {
		return ErrDisabled
	}

	batchSize := c.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flush := c.cfg.FlushInterval
	if flush <= 0 {
		flush = 10 * time.Second
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(flush.Milliseconds()))
	c.client = influxdb2.NewClientWithOptions(c.cfg.URL, c.cfg.Token, opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ok, err := c.client.Ping(pingCtx)
	if err != nil || !ok {
		c.client.Close()
		c.client = nil
		return fmt.Errorf("pinging influxdb at %s: %w", c.cfg.URL, err)
	}

	c.writeAPI = c.client.WriteAPI(c.cfg.Org, c.cfg.Bucket)
	go c.drainErrors(c.writeAPI.Errors())

	c.logger.Debug("telemetry connected", "url", c.cfg.URL, "bucket", c.cfg.Bucket)
	return nil
}

func (c *Client) drainErrors(errCh <-chan error) {
	for err := range errCh {
		c.logger.Warn("telemetry write failed", "error", err)
		if c.onError != nil {
			c.onError(err)
		}
	}
}

// WriteDialAdjust records a locally applied dial value.
func (c *Client) WriteDialAdjust(entityID string, value float64) {
	if c.writeAPI == nil {
		return
	}
	p := influxdb2.NewPoint(
		"dial_adjust",
		map[string]string{"entity_id": entityID},
		map[string]any{"value": value},
		time.Now(),
	)
	c.writeAPI.WritePoint(p)
}

// WriteEntityState records an authoritative state transition.
func (c *Client) WriteEntityState(entityID, state string) {
	if c.writeAPI == nil {
		return
	}
	p := influxdb2.NewPoint(
		"entity_state",
		map[string]string{"entity_id": entityID},
		map[string]any{"state": state},
		time.Now(),
	)
	c.writeAPI.WritePoint(p)
}

// WritePageView records a navigation to a page.
func (c *Client) WritePageView(page string) {
	if c.writeAPI == nil {
		return
	}
	p := influxdb2.NewPoint(
		"page_view",
		map[string]string{"page": page},
		map[string]any{"count": 1},
		time.Now(),
	)
	c.writeAPI.WritePoint(p)
}

// Flush forces pending points out.
func (c *Client) Flush() {
	if c.writeAPI != nil {
		c.writeAPI.Flush()
	}
}

// Close flushes and shuts the client down.
func (c *Client) Close() {
	if c.writeAPI != nil {
		c.writeAPI.Flush()
	}
	if c.client != nil {
		c.client.Close()
		c.client = nil
		c.writeAPI = nil
	}
}
