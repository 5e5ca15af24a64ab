package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/isruplay/internal/bundle"
	"github.com/san-kum/isruplay/internal/render"
	"github.com/san-kum/isruplay/internal/view"
)

// Fetcher produces the result bundle for a start.
type Fetcher interface {
	Fetch(ctx context.Context, p Params) (*bundle.Bundle, error)
}

type FetcherFunc func(ctx context.Context, p Params) (*bundle.Bundle, error)

func (f FetcherFunc) Fetch(ctx context.Context, p Params) (*bundle.Bundle, error) { return f(ctx, p) }

type Option func(*Controller)

func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithTicker(fn TickerFunc) Option {
	return func(c *Controller) { c.newTicker = fn }
}

func WithLogSink(sink LogSink) Option {
	return func(c *Controller) { c.logs = sink }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithView(id view.ID) Option {
	return func(c *Controller) {
		if id.Valid() {
			c.view = id
		}
	}
}

// WithRequiredSeries replaces the series a fetched bundle must carry. The
// default is every series any view consumes.
func WithRequiredSeries(names ...string) Option {
	return func(c *Controller) { c.required = names }
}

// WithNotify registers fn to be called after every tick and transition. fn
// runs outside the controller lock and may call back into the controller.
func WithNotify(fn func(Status)) Option {
	return func(c *Controller) { c.notify = fn }
}

// Controller owns the single playback session. All methods are safe for
// concurrent use; ticks never overlap, across sessions too.
type Controller struct {
	fetcher   Fetcher
	renderer  render.Renderer
	logs      LogSink
	logger    *slog.Logger
	interval  time.Duration
	newTicker TickerFunc
	required  []string
	notify    func(Status)

	mu           sync.Mutex
	gen          uint64
	pending      bool
	pendingPause bool
	session      *session
	view         view.ID
}

func New(fetcher Fetcher, renderer render.Renderer, opts ...Option) *Controller {
	c := &Controller{
		fetcher:   fetcher,
		renderer:  renderer,
		logs:      discardLog,
		logger:    slog.Default(),
		interval:  DefaultInterval,
		newTicker: NewTimeTicker,
		required:  view.RequiredSeries(),
		view:      view.TankLevels,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start fetches a new bundle and, if this is still the latest start when the
// fetch returns, replaces the current session with a fresh one at step 0.
// A failed fetch leaves the current session untouched.
func (c *Controller) Start(ctx context.Context, p Params) error {
	if err := p.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.pending = true
	c.pendingPause = false
	c.mu.Unlock()
	c.emit()

	b, err := c.fetcher.Fetch(ctx, p)
	if err == nil {
		err = b.Require(c.required...)
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded fetch", "speed", p.Speed, "duration", p.Duration)
		return ErrSuperseded
	}
	c.pending = false
	if err != nil {
		c.mu.Unlock()
		c.emit()
		c.logger.Warn("simulation fetch failed", "speed", p.Speed, "duration", p.Duration, "error", err)
		return &FetchError{Params: p, Err: err}
	}
	s := c.install(p, b)
	c.mu.Unlock()

	c.logger.Info("playback started",
		"session", s.id,
		"steps", b.Len(),
		"speed", p.Speed,
		"duration", p.Duration,
		"paused", s.paused,
	)
	c.emit()
	return nil
}

// install must be called with mu held.
func (c *Controller) install(p Params, b *bundle.Bundle) *session {
	if old := c.session; old != nil && old.state == Running {
		old.halt(Paused)
	}

	s := &session{
		id:     uuid.NewString(),
		params: p,
		bundle: b,
		state:  Running,
	}
	if c.pendingPause {
		s.paused = true
		s.state = Paused
		c.pendingPause = false
	}
	c.session = s

	if s.state == Running {
		s.clock = startClock(c.newTicker(c.interval), func() bool { return c.onTick(s) })
	}
	return s
}

// Pause halts the running session without resetting its step. A pause issued
// while a start is fetching also applies to the session that start installs.
func (c *Controller) Pause() {
	c.mu.Lock()
	changed := false
	if c.pending && !c.pendingPause {
		c.pendingPause = true
		changed = true
	}
	if s := c.session; s != nil && !s.paused && s.state == Running {
		s.paused = true
		s.halt(Paused)
		changed = true
		c.logger.Info("playback paused", "session", s.id, "step", s.step)
	}
	c.mu.Unlock()

	if changed {
		c.emit()
	}
}

// SetActiveView selects the view used from the next tick on.
func (c *Controller) SetActiveView(name string) error {
	id, err := view.Parse(name)
	if err != nil {
		return err
	}
	return c.SetView(id)
}

func (c *Controller) SetView(id view.ID) error {
	if !id.Valid() {
		return &view.UnknownViewError{Name: id.String()}
	}
	c.mu.Lock()
	c.view = id
	c.mu.Unlock()
	c.emit()
	return nil
}

func (c *Controller) ActiveView() view.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) State() State { return c.Status().State }

func (c *Controller) Step() int { return c.Status().Step }

// Bundle returns the bundle of the current session, or nil when idle.
func (c *Controller) Bundle() *bundle.Bundle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.bundle
}

// Close stops the clock of the current session and waits for it to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	s := c.session
	var k *clock
	if s != nil && s.state == Running {
		s.halt(Paused)
		s.paused = true
		k = s.clock
	}
	c.mu.Unlock()

	if k != nil {
		k.wait()
	}
}

func (c *Controller) statusLocked() Status {
	st := Status{State: Idle, View: c.view, Pending: c.pending}
	if s := c.session; s != nil {
		st.SessionID = s.id
		st.State = s.state
		st.Step = s.step
		st.Len = s.bundle.Len()
		st.Params = s.params
	}
	return st
}

// onTick is the clock callback for session s.
func (c *Controller) onTick(s *session) bool {
	c.mu.Lock()
	more, ticked := c.tickLocked(s)
	c.mu.Unlock()

	if ticked {
		c.emit()
	}
	return more
}

// tickLocked runs one step of s. It reports whether the clock should keep
// running and whether anything changed.
func (c *Controller) tickLocked(s *session) (more, ticked bool) {
	if c.session != s || s.state != Running {
		return false, false
	}
	if s.paused || s.step >= s.bundle.Len() {
		if s.paused {
			s.halt(Paused)
		} else {
			s.halt(Finished)
		}
		return false, true
	}

	step := s.step
	if err := c.renderLocked(s, step); err != nil {
		c.logger.Warn("render failed, skipping frame",
			"session", s.id,
			"step", step,
			"view", c.view.String(),
			"error", err,
		)
		c.logs.Append(fmt.Sprintf("Step %d: render failed: %v", step, err))
	} else {
		c.logs.Append(fmt.Sprintf("Step %d: Simulation running...", step))
	}
	s.step++

	if s.step >= s.bundle.Len() {
		s.halt(Finished)
		c.logger.Info("playback finished", "session", s.id, "steps", s.step)
		return false, true
	}
	return true, true
}

// renderLocked draws the prefix revealed by step, the sample at step
// included. Renderer panics are turned into errors.
func (c *Controller) renderLocked(s *session, step int) (err error) {
	id := c.view
	defer func() {
		if r := recover(); r != nil {
			err = &RenderError{Step: step, View: id, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := view.Render(c.renderer, id, s.bundle, step+1); err != nil {
		return &RenderError{Step: step, View: id, Err: err}
	}
	return nil
}

func (c *Controller) emit() {
	if c.notify == nil {
		return
	}
	c.notify(c.Status())
}
