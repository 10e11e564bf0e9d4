package onlineplayers

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BoardBuilder renders a board for an ordered player list.
type BoardBuilder interface {
	Build(ctx context.Context, players []Player) (image.Image, error)
}

// Overlay polls a PresenceSource, renders a board and hands it to every
// target, then waits the configured interval and repeats.
type Overlay struct {
	mu        sync.RWMutex
	source    PresenceSource
	builder   BoardBuilder
	targets   []Target
	closers   []io.Closer
	interval  time.Duration
	imageName string
	log       *zap.Logger
	now       func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// Option configures the Overlay.
type Option func(*Overlay)

// WithInterval sets the delay between the end of one cycle and the start of
// the next.
func WithInterval(d time.Duration) Option {
	return func(o *Overlay) {
		o.interval = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Overlay) {
		o.log = l
	}
}

// WithImageName sets the filename reported after each saved board.
func WithImageName(name string) Option {
	return func(o *Overlay) {
		o.imageName = name
	}
}

// WithCleanup registers a resource released once when the overlay closes.
func WithCleanup(c io.Closer) Option {
	return func(o *Overlay) {
		o.closers = append(o.closers, c)
	}
}

// New creates an Overlay reading presence from source and rendering with builder.
func New(source PresenceSource, builder BoardBuilder, opts ...Option) *Overlay {
	o := &Overlay{
		source:    source,
		builder:   builder,
		interval:  10 * time.Second,
		imageName: DefaultImageName,
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AddTarget adds an output target.
func (o *Overlay) AddTarget(t Target) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.targets = append(o.targets, t)
}

// RemoveTarget removes a target by reference.
func (o *Overlay) RemoveTarget(t Target) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, target := range o.targets {
		if target == t {
			o.targets = append(o.targets[:i], o.targets[i+1:]...)
			return
		}
	}
}

// Cycle runs one poll: presence, board, targets. It returns a nil frame when
// no board could be rendered. A frame with a non-nil error means at least one
// target failed. Errors wrapping ErrNoPlayerSample are fatal to Run.
func (o *Overlay) Cycle(ctx context.Context) (*Frame, error) {
	players, err := o.source.OnlinePlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("presence: %w", err)
	}

	board, err := o.builder.Build(ctx, players)
	if err != nil {
		return nil, fmt.Errorf("build board: %w", err)
	}

	frame := &Frame{
		Players:    players,
		Board:      board,
		RenderedAt: o.now(),
	}

	o.mu.RLock()
	targets := make([]Target, len(o.targets))
	copy(targets, o.targets)
	o.mu.RUnlock()

	var errs []error
	for _, target := range targets {
		if err := target.Update(ctx, frame); err != nil {
			errs = append(errs, fmt.Errorf("target %s: %w", target.Name(), err))
		}
	}
	return frame, errors.Join(errs...)
}

// Run polls until ctx is cancelled or the server reports no player sample.
// Resources are released once before Run returns. Cancellation returns nil.
func (o *Overlay) Run(ctx context.Context) error {
	defer o.Close()

	for {
		frame, err := o.Cycle(ctx)
		switch {
		case errors.Is(err, ErrNoPlayerSample):
			o.log.Error("fatal: server reports no player sample", zap.Error(err))
			return err
		case frame == nil:
			if ctx.Err() != nil {
				break
			}
			o.log.Warn("error creating image, will wait and try again",
				zap.Duration("wait", o.interval),
				zap.Error(err),
			)
		case err != nil:
			o.log.Warn("board not delivered to every target",
				zap.Int("online", frame.Online()),
				zap.Error(err),
			)
		default:
			o.log.Info("saving image",
				zap.Int("online", frame.Online()),
				zap.String("image", o.imageName),
			)
		}

		select {
		case <-ctx.Done():
			o.log.Info("exiting")
			return nil
		case <-time.After(o.interval):
		}
	}
}

// Close closes all targets and registered resources. Only the first call has
// any effect.
func (o *Overlay) Close() error {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		targets := o.targets
		o.targets = nil
		o.mu.Unlock()

		var errs []error
		for _, target := range targets {
			if err := target.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", target.Name(), err))
			}
		}
		for _, c := range o.closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		o.closeErr = errors.Join(errs...)
		o.log.Debug("overlay closed")
	})
	return o.closeErr
}
