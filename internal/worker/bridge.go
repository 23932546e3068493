package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/joeblew999/pdffs/internal/worker/protocol"
	"github.com/joeblew999/pdffs/pkg/pipeline"
)

// State is the lifecycle position of a Bridge
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateConverting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateConverting:
		return "converting"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

const (
	// InitPercent is reported for every status message while initializing
	InitPercent = 5

	// conversion progress from the worker is mapped into this band
	convertLow  = 10
	convertHigh = 95
)

// Bridge owns one lazily created execution context. Initialization is
// single-flight, and at most one conversion is outstanding at a time.
// A transport failure tears the context down; the next call starts over.
type Bridge struct {
	factory  Factory
	initData json.RawMessage
	log      *logrus.Entry

	// lifetime of execution contexts, independent of any one request
	ctx    context.Context
	cancel context.CancelFunc

	group singleflight.Group
	sem   chan struct{}
	inits atomic.Int64

	mu       sync.Mutex
	state    State
	conn     *conn
	closed   bool
	watchers map[int]pipeline.ProgressFunc
	nextID   int
}

// Option configures a Bridge
type Option func(*Bridge)

// WithInitData sets the data sent with the init message
func WithInitData(data any) Option {
	return func(b *Bridge) {
		raw, err := json.Marshal(data)
		if err == nil {
			b.initData = raw
		}
	}
}

// WithLogger sets the logger
func WithLogger(log *logrus.Entry) Option {
	return func(b *Bridge) {
		b.log = log
	}
}

// NewBridge creates a bridge that calls factory on first use
func NewBridge(factory Factory, opts ...Option) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		factory:  factory,
		log:      logrus.WithField("component", "worker"),
		ctx:      ctx,
		cancel:   cancel,
		sem:      make(chan struct{}, 1),
		watchers: make(map[int]pipeline.ProgressFunc),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current lifecycle state
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Handshakes returns how many initialization handshakes were started
func (b *Bridge) Handshakes() int64 {
	return b.inits.Load()
}

// Ready initializes the execution context if needed. Concurrent callers
// share one handshake. progress receives status messages at InitPercent.
func (b *Bridge) Ready(ctx context.Context, progress pipeline.ProgressFunc) error {
	_, err := b.ready(ctx, progress)
	return err
}

func (b *Bridge) ready(ctx context.Context, progress pipeline.ProgressFunc) (*conn, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, pipeline.NewError(pipeline.KindWorkerFailed, "worker is shut down").WithDetail(ErrClosed.Error())
	}
	if c := b.conn; c != nil {
		if !c.dead() {
			b.mu.Unlock()
			return c, nil
		}
		b.conn = nil
		b.state = StateTerminated
	}
	id := b.nextID
	b.nextID++
	if progress != nil {
		b.watchers[id] = progress
	}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.watchers, id)
		b.mu.Unlock()
	}()

	ch := b.group.DoChan("init", func() (any, error) {
		return b.initialize()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*conn), nil
	case <-ctx.Done():
		return nil, pipeline.ErrCancelled
	}
}

func (b *Bridge) initialize() (*conn, error) {
	b.setState(StateInitializing)
	b.inits.Add(1)
	b.log.Debug("starting worker")

	fail := func(err error) (*conn, error) {
		b.setState(StateUninitialized)
		b.log.WithError(err).Warn("worker initialization failed")
		return nil, pipeline.NewError(pipeline.KindWorkerFailed, "worker failed to initialize").WithDetail(err.Error())
	}

	t, err := b.factory(b.ctx)
	if err != nil {
		return fail(err)
	}

	c := newConn(t, b.log)
	go c.readLoop()

	unsubscribe := c.subscribe(func(m protocol.Message) {
		if m.Type == protocol.TypeStatus {
			b.notifyInit(m.Message)
		}
	})
	defer unsubscribe()

	resp, err := c.call(b.ctx, protocol.Message{Type: protocol.TypeInit, ID: uuid.NewString(), Data: b.initData})
	if err != nil {
		c.close()
		return fail(err)
	}
	if resp.Type != protocol.TypeInitComplete {
		c.close()
		if resp.Error != "" {
			return fail(errors.New(resp.Error))
		}
		return fail(fmt.Errorf("unexpected %s reply to init", resp.Type))
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		c.close()
		return nil, pipeline.NewError(pipeline.KindWorkerFailed, "worker is shut down")
	}
	b.conn = c
	b.state = StateReady
	b.mu.Unlock()

	go func() {
		<-c.done
		b.teardown(c, c.failure())
	}()

	b.log.Info("worker ready")
	return c, nil
}

func (b *Bridge) notifyInit(message string) {
	b.mu.Lock()
	fns := make([]pipeline.ProgressFunc, 0, len(b.watchers))
	for _, fn := range b.watchers {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(InitPercent, message)
	}
}

// Convert sends one conversion request and waits for its terminal reply.
// Calls queue behind any conversion already in flight.
func (b *Bridge) Convert(ctx context.Context, req protocol.ConvertRequest, progress pipeline.ProgressFunc) ([]byte, error) {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, pipeline.ErrCancelled
	}
	defer func() { <-b.sem }()

	c, err := b.ready(ctx, progress)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode convert request: %w", err)
	}

	id := uuid.NewString()
	b.setState(StateConverting)
	log := b.log.WithFields(logrus.Fields{"request": id, "file": req.Filename})

	unsubscribe := c.subscribe(func(m protocol.Message) {
		if progress == nil || (m.Type != protocol.TypeProgress && m.Type != protocol.TypeStatus) {
			return
		}
		if m.ID != "" && m.ID != id {
			return
		}
		p := 0
		if m.Percent != nil {
			p = min(max(*m.Percent, 0), 100)
		}
		progress(convertLow+(convertHigh-convertLow)*p/100, m.Message)
	})
	defer unsubscribe()

	resp, err := c.call(ctx, protocol.Message{Type: protocol.TypeConvert, ID: id, Data: data})
	switch {
	case err != nil && ctx.Err() != nil:
		log.Info("conversion cancelled, stopping worker")
		b.teardown(c, ctx.Err())
		return nil, pipeline.ErrCancelled

	case err != nil:
		b.teardown(c, err)
		return nil, pipeline.NewError(pipeline.KindProcessingFailed, "worker crashed during conversion").WithDetail(err.Error())

	case resp.Type == protocol.TypeConvertComplete:
		b.setReady(c)
		return resp.Result, nil

	case resp.Type == protocol.TypeError:
		b.setReady(c)
		log.WithField("error", resp.Error).Warn("conversion failed")
		return nil, pipeline.NewError(pipeline.KindProcessingFailed, "conversion failed").WithDetail(resp.Error)

	default:
		b.setReady(c)
		return nil, pipeline.NewError(pipeline.KindProcessingFailed, "unexpected %s reply to convert", resp.Type)
	}
}

// Close tears down the execution context. Later calls fail with WORKER_FAILED.
func (b *Bridge) Close() error {
	b.mu.Lock()
	b.closed = true
	c := b.conn
	b.mu.Unlock()

	if c != nil {
		b.teardown(c, ErrClosed)
	}
	b.cancel()
	return nil
}

func (b *Bridge) teardown(c *conn, reason error) {
	b.mu.Lock()
	current := b.conn == c
	if current {
		b.conn = nil
		b.state = StateTerminated
	}
	b.mu.Unlock()

	c.close()
	if current {
		b.log.WithField("reason", reason).Warn("worker terminated")
	}
}

func (b *Bridge) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

func (b *Bridge) setReady(c *conn) {
	b.mu.Lock()
	if b.conn == c {
		b.state = StateReady
	}
	b.mu.Unlock()
}

// conn is one live execution context: a transport, the pending request
// table and the broadcast list for untagged messages
type conn struct {
	t   Transport
	log *logrus.Entry

	mu      sync.Mutex
	pending map[string]chan protocol.Message
	subs    map[int]func(protocol.Message)
	nextSub int

	done     chan struct{}
	doneOnce sync.Once
	err      error
}

func newConn(t Transport, log *logrus.Entry) *conn {
	return &conn{
		t:       t,
		log:     log,
		pending: make(map[string]chan protocol.Message),
		subs:    make(map[int]func(protocol.Message)),
		done:    make(chan struct{}),
	}
}

func (c *conn) readLoop() {
	for {
		m, err := c.t.Recv()
		if err != nil {
			c.fail(err)
			return
		}
		c.dispatch(m)
	}
}

func (c *conn) dispatch(m protocol.Message) {
	if !m.Terminal() {
		c.mu.Lock()
		subs := make([]func(protocol.Message), 0, len(c.subs))
		for _, fn := range c.subs {
			subs = append(subs, fn)
		}
		c.mu.Unlock()

		for _, fn := range subs {
			fn(m)
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, ok := c.pending[m.ID]; ok {
		delete(c.pending, m.ID)
		ch <- m
		return
	}

	// an untagged error can only belong to the single outstanding request
	if m.ID == "" && m.Type == protocol.TypeError {
		for id, ch := range c.pending {
			delete(c.pending, id)
			ch <- m
		}
		return
	}

	c.log.WithFields(logrus.Fields{"type": m.Type, "id": m.ID}).Debug("dropping uncorrelated reply")
}

func (c *conn) call(ctx context.Context, m protocol.Message) (protocol.Message, error) {
	ch := make(chan protocol.Message, 1)

	c.mu.Lock()
	c.pending[m.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, m.ID)
		c.mu.Unlock()
	}()

	select {
	case <-c.done:
		return protocol.Message{}, c.failure()
	default:
	}

	if err := c.t.Send(ctx, m); err != nil {
		if ctx.Err() != nil {
			return protocol.Message{}, ctx.Err()
		}
		c.fail(err)
		return protocol.Message{}, c.failure()
	}

	select {
	case r := <-ch:
		return r, nil
	case <-c.done:
		select {
		case r := <-ch:
			return r, nil
		default:
		}
		return protocol.Message{}, c.failure()
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	}
}

func (c *conn) subscribe(fn func(protocol.Message)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *conn) fail(err error) {
	c.doneOnce.Do(func() {
		c.mu.Lock()
		if !errors.Is(err, ErrTransport) {
			err = fmt.Errorf("%w: %v", ErrTransport, err)
		}
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *conn) dead() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *conn) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return ErrTransport
	}
	return c.err
}

func (c *conn) close() {
	c.fail(errGuestExited)
	c.t.Close()
}
