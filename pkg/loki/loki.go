// Package loki batches log entries and pushes them to a Grafana Loki instance.
package loki

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
)

// Logger reports pusher failures; it must not route back into the pusher.
type Logger interface {
	Error(msg string, args ...any)
}

type Config struct {
	// TenantKey and TenantValue set a tenant header for multi-tenant setups. Optional.
	TenantKey   string
	TenantValue string

	// Url of the push endpoint, e.g. https://example-prod.grafana.net/loki/api/v1/push
	Url string `validate:"required,url"`

	// BatchMaxSize is the maximum number of log lines sent in one request.
	BatchMaxSize int `validate:"gte=1"`

	// BatchMaxWait is the maximum time an entry waits before being sent.
	BatchMaxWait time.Duration `validate:"gte=1"`

	// BufferSize bounds entries queued between Push and the sender; overflow is dropped.
	BufferSize int `validate:"gte=1"`

	// Labels are attached to the stream.
	Labels map[string]string

	// Username and Password enable basic auth when both are set.
	Username string
	Password string
}

func (cfg *Config) setDefaults() {
	if cfg.BatchMaxSize == 0 {
		cfg.BatchMaxSize = 1000
	}
	if cfg.BatchMaxWait == 0 {
		cfg.BatchMaxWait = 5 * time.Second
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 4096
	}
	if cfg.Labels == nil {
		cfg.Labels = map[string]string{}
	}
}

type Pusher struct {
	config    *Config
	ctx       context.Context
	cancel    context.CancelFunc
	client    *http.Client
	quit      chan struct{}
	stopOnce  sync.Once
	entries   chan queuedEntry
	waitGroup sync.WaitGroup
	batch     []streamValue
	logger    Logger
	dropped   atomic.Int64
}

type queuedEntry struct {
	entry LogEntry
	at    time.Time
}

type LogEntry struct {
	Level   string            `json:"level"`
	Message string            `json:"msg"`
	Caller  string            `json:"caller,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type pushRequest struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Stream map[string]string `json:"stream"`
	Values []streamValue     `json:"values"`
}

type streamValue []string

func New(ctx context.Context, cfg Config, logger Logger) (*Pusher, error) {

	cfg.setDefaults()
	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pusher{
		config:  &cfg,
		ctx:     ctx,
		cancel:  cancel,
		client:  &http.Client{Timeout: 10 * time.Second},
		quit:    make(chan struct{}),
		entries: make(chan queuedEntry, cfg.BufferSize),
		batch:   make([]streamValue, 0, cfg.BatchMaxSize),
		logger:  logger,
	}

	p.waitGroup.Add(1)
	go p.run()
	return p, nil
}

// Push queues an entry; it never blocks the caller and drops the entry when the buffer is full.
func (p *Pusher) Push(e LogEntry) {
	select {
	case p.entries <- queuedEntry{entry: e, at: time.Now()}:
	default:
		p.dropped.Add(1)
	}
}

// Dropped is the number of entries discarded because the buffer was full.
func (p *Pusher) Dropped() int64 {
	return p.dropped.Load()
}

// Stop flushes queued entries and stops the pusher.
func (p *Pusher) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
		p.waitGroup.Wait()
		p.cancel()
	})
}

func (p *Pusher) run() {
	ticker := time.NewTicker(p.config.BatchMaxWait)
	defer ticker.Stop()

	flush := func() {
		if len(p.batch) == 0 {
			return
		}
		if err := p.send(); err != nil {
			p.logger.Error("failed to send logs", "error", err, "lines", len(p.batch))
		}
		p.batch = p.batch[:0]
	}

	defer func() {
		for {
			select {
			case entry := <-p.entries:
				p.append(entry)
			default:
				flush()
				p.waitGroup.Done()
				return
			}
		}
	}()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.quit:
			return
		case entry := <-p.entries:
			p.append(entry)
			if len(p.batch) >= p.config.BatchMaxSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (p *Pusher) append(queued queuedEntry) {
	line, err := json.Marshal(queued.entry)
	if err != nil {
		return
	}
	timestamp := strconv.FormatInt(queued.at.UnixNano(), 10)
	p.batch = append(p.batch, streamValue{timestamp, string(line)})
}

func (p *Pusher) send() error {
	buf := &bytes.Buffer{}
	gz := gzip.NewWriter(buf)

	if err := json.NewEncoder(gz).Encode(pushRequest{Streams: []stream{{
		Stream: p.config.Labels,
		Values: p.batch,
	}}}); err != nil {
		return err
	}

	if err := gz.Close(); err != nil {
		return err
	}

	// the pusher context may already be canceled while flushing on shutdown
	ctx, cancel := context.WithTimeout(context.WithoutCancel(p.ctx), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Url, buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	if p.config.TenantKey != "" {
		req.Header.Set(p.config.TenantKey, p.config.TenantValue)
	}

	if p.config.Username != "" && p.config.Password != "" {
		req.SetBasicAuth(p.config.Username, p.config.Password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected response code from Loki: %s, body: %s", resp.Status, string(body))
	}

	return nil
}
