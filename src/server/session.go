package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"market-pulse/src/analysis"
	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/metrics"
	"market-pulse/src/models"
	"market-pulse/src/utils"
)

// -----------------------------------------------------------------------------
// Session is one subscriber's push schedule. It owns its ticker and outbound
// queue; nothing in a session is shared with another session.
// -----------------------------------------------------------------------------

type SessionOptions struct {
	Interval    time.Duration
	MinInterval time.Duration
	MaxInterval time.Duration
	BufferSize  int
}

type Session struct {
	ID          string
	ConnectedAt time.Time

	provider interfaces.ISnapshotProvider
	facade   *analysis.AnalysisFacade
	metrics  *metrics.Collector
	logger   *logger.Logger
	opts     SessionOptions

	send    chan interface{}
	refresh chan struct{}
	ticker  *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	interval time.Duration
	started  bool
	stopped  bool

	// onOverflow runs when the outbound queue is full. It must not block.
	onOverflow func()
}

// -----------------------------------------------------------------------------

func NewSession(
	id string,
	provider interfaces.ISnapshotProvider,
	facade *analysis.AnalysisFacade,
	collector *metrics.Collector,
	log *logger.Logger,
	opts SessionOptions,
) *Session {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		ID:          id,
		ConnectedAt: time.Now(),
		provider:    provider,
		facade:      facade,
		metrics:     collector,
		logger:      log,
		opts:        opts,
		send:        make(chan interface{}, opts.BufferSize),
		refresh:     make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
		interval:    opts.Interval,
	}
}

// -----------------------------------------------------------------------------

func (o SessionOptions) withDefaults() SessionOptions {
	if o.Interval <= 0 {
		o.Interval = utils.DefaultFetchInterval
	}
	if o.MinInterval <= 0 {
		o.MinInterval = utils.DefaultMinClientInterval
	}
	if o.MaxInterval < o.MinInterval {
		o.MaxInterval = utils.DefaultMaxClientInterval
		if o.MaxInterval < o.MinInterval {
			o.MaxInterval = o.MinInterval
		}
	}
	if o.BufferSize <= 0 {
		o.BufferSize = utils.DefaultSendBufferSize
	}
	return o
}

// -----------------------------------------------------------------------------

// Send is the outbound queue. It is closed once the session stops.
func (s *Session) Send() <-chan interface{} {
	return s.send
}

// -----------------------------------------------------------------------------

// Interval returns the current push period.
func (s *Session) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// -----------------------------------------------------------------------------

// Start pushes the initial views immediately, then on every tick.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true
	s.ticker = time.NewTicker(s.interval)

	s.wg.Add(1)
	go s.run()
}

// -----------------------------------------------------------------------------

func (s *Session) run() {
	defer s.wg.Done()

	s.pushViews()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.ticker.C:
			s.pushViews()
		case <-s.refresh:
			s.pushViews()
		}
	}
}

// -----------------------------------------------------------------------------

// pushViews reads the cache once and enqueues the three projections of that
// read. If the queue cannot take all three the session is treated as a slow
// consumer.
func (s *Session) pushViews() {
	state := s.provider.Read(s.ctx)
	if s.ctx.Err() != nil {
		return
	}
	views := s.facade.DeriveViews(state)

	ts := time.Now().UnixMilli()
	messages := [...]models.MPushMessage{
		{Type: models.MessageStatsUpdate, Data: views.Stats, Timestamp: ts},
		{Type: models.MessageChartUpdate, Data: views.Chart, Timestamp: ts},
		{Type: models.MessageTableUpdate, Data: views.Table, Timestamp: ts},
	}

	overflow := false
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	for _, msg := range messages {
		select {
		case s.send <- msg:
			s.metrics.PushSent(msg.Type)
		default:
			overflow = true
		}
		if overflow {
			break
		}
	}
	s.mu.Unlock()

	if overflow {
		s.logger.Warning("Session %s send buffer full, dropping slow consumer", s.ID)
		if s.onOverflow != nil {
			s.onOverflow()
		}
	}
}

// -----------------------------------------------------------------------------

// HandleCommand applies one client message. A malformed message is an error
// and the caller should drop the connection.
func (s *Session) HandleCommand(raw []byte) error {
	var cmd models.MClientCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return errors.Wrap(err, "parse client command")
	}

	switch cmd.Command {
	case models.CommandRefresh:
		select {
		case s.refresh <- struct{}{}:
		default:
		}

	case models.CommandSetInterval:
		if cmd.IntervalMs <= 0 {
			s.logger.Warning("Session %s sent set-interval without intervalMs", s.ID)
			return nil
		}
		s.SetInterval(time.Duration(cmd.IntervalMs) * time.Millisecond)

	default:
		s.logger.Debug("Session %s sent unknown command %q", s.ID, cmd.Command)
	}
	return nil
}

// -----------------------------------------------------------------------------

// SetInterval changes the push period, clamped to the configured bounds.
func (s *Session) SetInterval(d time.Duration) time.Duration {
	d = utils.ClampDuration(d, s.opts.MinInterval, s.opts.MaxInterval)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return s.interval
	}
	s.interval = d
	if s.ticker != nil {
		s.ticker.Reset(d)
	}
	s.logger.Debug("Session %s interval set to %s", s.ID, d)
	return d
}

// -----------------------------------------------------------------------------

// Stop cancels the timer and closes the outbound queue. Safe to call more
// than once and from any goroutine except the session's own loop.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.cancel()
	if s.ticker != nil {
		s.ticker.Stop()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	close(s.send)
	s.mu.Unlock()
}
