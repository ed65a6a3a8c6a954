package asset

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/gogpu/rendercore"
)

// ErrStreamerClosed is passed to failed loads that were still queued when the
// streamer was closed.
var ErrStreamerClosed = errors.New("asset: streamer closed")

// LoadFunc performs the background part of a load. It runs on its own
// goroutine and must not touch render-thread state. On success it returns an
// apply function that the Dispatcher later runs on the render thread to
// publish the result.
type LoadFunc func(ctx context.Context) (apply func() error, err error)

// StreamerOption configures a Streamer.
type StreamerOption func(*streamerOptions)

type streamerOptions struct {
	maxConcurrentLoads int64
}

func defaultStreamerOptions() streamerOptions {
	return streamerOptions{maxConcurrentLoads: 4}
}

// WithMaxConcurrentLoads bounds the number of LoadFuncs running at once.
// Values below 1 are ignored.
func WithMaxConcurrentLoads(n int) StreamerOption {
	return func(o *streamerOptions) {
		if n > 0 {
			o.maxConcurrentLoads = int64(n)
		}
	}
}

// Streamer runs load requests in the background and reports their
// completion through a Dispatcher.
type Streamer struct {
	dispatcher *Dispatcher
	sem        *semaphore.Weighted
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewStreamer creates a streamer posting completions to d.
func NewStreamer(d *Dispatcher, opts ...StreamerOption) *Streamer {
	o := defaultStreamerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Streamer{
		dispatcher: d,
		sem:        semaphore.NewWeighted(o.maxConcurrentLoads),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Load moves r to Loading and starts load on a background goroutine. Once the
// load finishes, the Dispatcher runs the apply function and moves r to
// Loaded, or back to Unloaded on failure.
//
// Load must be called on the render thread.
func (s *Streamer) Load(r *Resource, load LoadFunc) {
	r.SetLoadingState(Loading)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		apply, err := s.run(load)
		s.dispatcher.Post(func() {
			if err == nil && apply != nil {
				err = apply()
			}
			if err != nil {
				rendercore.Logger().Warn("asset: load failed",
					"asset", uint32(r.ID()), "err", err)
				r.SetLoadingState(Unloaded)
				return
			}
			r.SetLoadingState(Loaded)
		})
	}()
}

func (s *Streamer) run(load LoadFunc) (func() error, error) {
	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStreamerClosed, err)
	}
	defer s.sem.Release(1)
	return load(s.ctx)
}

// Wait blocks until every started load has posted its completion.
func (s *Streamer) Wait() {
	s.wg.Wait()
}

// Close cancels outstanding loads and waits for their goroutines. Their
// completions stay queued in the Dispatcher.
func (s *Streamer) Close() {
	s.cancel()
	s.wg.Wait()
}
