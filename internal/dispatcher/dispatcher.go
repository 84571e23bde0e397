// Package dispatcher keeps one universe of channel values and periodically
// pushes it to the active output.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"dmxout/internal/logger"
	"dmxout/internal/output"
)

const (
	// MaxChannels is the size of the channel buffer.
	MaxChannels = output.MaxChannels
	// DefaultInterval is the default period between frames.
	DefaultInterval = 50 * time.Millisecond
)

// ErrInvalidChannel is returned for channels outside 1..MaxChannels.
var ErrInvalidChannel = errors.New("channel out of range")

// ChannelObserver is notified after a channel value is written.
type ChannelObserver func(channel uint32, value uint8)

// Factory builds an output from its configuration.
type Factory func(cfg output.Config) (output.Output, error)

// Option настраивает диспетчер.
type Option func(*Dispatcher)

// WithInterval sets the configured frame interval.
func WithInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

// WithFactory replaces the output factory.
func WithFactory(f Factory) Option {
	return func(d *Dispatcher) {
		d.factory = f
	}
}

// Dispatcher владеет буфером каналов и активным выходом.
type Dispatcher struct {
	log      logger.Logger
	interval time.Duration
	factory  Factory

	bufMu  sync.RWMutex
	buffer [MaxChannels]byte

	obsMu     sync.RWMutex
	observers []ChannelObserver

	// outMu is held for the whole OutputFrame call so a backend is never
	// replaced or closed mid-dispatch.
	outMu   sync.Mutex
	out     output.Output
	failing bool

	runMu  sync.Mutex
	cancel context.CancelFunc
	reset  chan time.Duration
	// done is closed when the worker returns, including when the ctx
	// passed to Start is canceled.
	done chan struct{}
	wg   sync.WaitGroup

	ticks uint64
}

// New конструктор.
func New(log logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log:      log,
		interval: DefaultInterval,
	}
	d.factory = func(cfg output.Config) (output.Output, error) {
		return output.New(cfg, log)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) logEntry() *logger.Log {
	return d.log.With(logger.Fields{"module": "dispatcher"})
}

// SetChannel writes value to channel (1-based) and notifies observers.
func (d *Dispatcher) SetChannel(channel uint32, value uint8) error {
	if channel < 1 || channel > MaxChannels {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}

	d.bufMu.Lock()
	d.buffer[channel-1] = value
	d.bufMu.Unlock()

	d.obsMu.RLock()
	observers := d.observers
	d.obsMu.RUnlock()
	for _, o := range observers {
		o(channel, value)
	}
	return nil
}

// Channel returns the value of channel (1-based).
func (d *Dispatcher) Channel(channel uint32) (uint8, error) {
	if channel < 1 || channel > MaxChannels {
		return 0, fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	d.bufMu.RLock()
	defer d.bufMu.RUnlock()
	return d.buffer[channel-1], nil
}

// Frame returns a copy of the channel buffer.
func (d *Dispatcher) Frame() [MaxChannels]byte {
	d.bufMu.RLock()
	defer d.bufMu.RUnlock()
	return d.buffer
}

// Subscribe registers an observer of channel changes.
func (d *Dispatcher) Subscribe(o ChannelObserver) {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	observers := make([]ChannelObserver, len(d.observers), len(d.observers)+1)
	copy(observers, d.observers)
	d.observers = append(observers, o)
}

// Start begins periodic dispatch. Calling Start on a running dispatcher
// restarts it at the configured interval.
func (d *Dispatcher) Start(ctx context.Context) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.stopWorker()

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.reset = make(chan time.Duration, 1)
	d.done = make(chan struct{})
	d.wg.Add(1)
	go d.run(ctx, d.interval, d.reset, d.done)

	d.logEntry().Debugf("dispatch started, interval %v", d.interval)
}

// Stop halts dispatch and closes the active output. No frame is sent after
// Stop returns.
func (d *Dispatcher) Stop() error {
	d.runMu.Lock()
	d.stopWorker()
	d.runMu.Unlock()

	return d.CloseBackend()
}

// Running reports whether the dispatch worker is active.
func (d *Dispatcher) Running() bool {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	return d.running()
}

// running must be called with runMu held.
func (d *Dispatcher) running() bool {
	if d.cancel == nil {
		return false
	}
	select {
	case <-d.done:
		return false
	default:
		return true
	}
}

// SetInterval changes the period of a running dispatcher until the next Start.
func (d *Dispatcher) SetInterval(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("bad interval %v", interval)
	}
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if !d.running() {
		return errors.New("dispatcher is not running")
	}
	select {
	case <-d.reset:
	default:
	}
	d.reset <- interval
	return nil
}

// Ticks returns the number of frames handed to an output so far.
func (d *Dispatcher) Ticks() uint64 {
	return atomic.LoadUint64(&d.ticks)
}

// stopWorker must be called with runMu held.
func (d *Dispatcher) stopWorker() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	d.wg.Wait()
	d.cancel = nil
	d.reset = nil
	d.done = nil
	d.logEntry().Debug("dispatch stopped")
}

func (d *Dispatcher) run(ctx context.Context, interval time.Duration, reset <-chan time.Duration, done chan<- struct{}) {
	defer d.wg.Done()
	defer close(done)

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case interval = <-reset:
			t.Reset(interval)
		case <-t.C:
			if ctx.Err() != nil {
				return
			}
			d.tick(ctx, interval)
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context, interval time.Duration) {
	frame := d.Frame()

	d.outMu.Lock()
	defer d.outMu.Unlock()
	if d.out == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, interval)
	defer cancel()

	atomic.AddUint64(&d.ticks, 1)
	err := d.out.OutputFrame(ctx, frame[:])
	switch {
	case err != nil && !d.failing:
		d.failing = true
		d.logEntry().Warnf("failed to output frame to %s: %v", d.out.Name(), err)
	case err != nil:
		d.logEntry().Debugf("failed to output frame to %s: %v", d.out.Name(), err)
	case d.failing:
		d.failing = false
		d.logEntry().Infof("output %s recovered", d.out.Name())
	}
}
