package playback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/isruplay/internal/bundle"
	"github.com/san-kum/isruplay/internal/render"
	"github.com/san-kum/isruplay/internal/view"
)

// manualTicker never fires on its own; specs drive ticks through tick().
type manualTicker struct {
	ch chan time.Time
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}

func manualTickers(time.Duration) Ticker {
	return &manualTicker{ch: make(chan time.Time)}
}

type recordedFrame struct {
	traces []render.Trace
	layout render.Layout
}

type recorder struct {
	mu     sync.Mutex
	frames []recordedFrame
	err    error
	panics bool
}

func (r *recorder) Render(traces []render.Trace, layout render.Layout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panics {
		panic("surface gone")
	}
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, recordedFrame{traces: traces, layout: layout})
	return nil
}

func (r *recorder) lengths() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.frames))
	for i, f := range r.frames {
		out[i] = len(f.traces[0].Y)
	}
	return out
}

func fullBundle(hours int) *bundle.Bundle {
	series := map[string][]float64{}
	for _, name := range view.RequiredSeries() {
		values := make([]float64, hours)
		for i := range values {
			values[i] = float64(i)
		}
		series[name] = values
	}
	b, err := bundle.New(series)
	Expect(err).NotTo(HaveOccurred())
	return b
}

func staticFetcher(b *bundle.Bundle) Fetcher {
	return FetcherFunc(func(context.Context, Params) (*bundle.Bundle, error) {
		return b, nil
	})
}

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var params = Params{Speed: 1, Duration: 0.1}

var _ = Describe("Controller", func() {
	var (
		rec  *recorder
		logs *MemoryLog
	)

	newController := func(f Fetcher, opts ...Option) *Controller {
		base := []Option{
			WithTicker(manualTickers),
			WithLogSink(logs),
			WithLogger(quietLogger),
			WithRequiredSeries(),
		}
		return New(f, rec, append(base, opts...)...)
	}

	tick := func(c *Controller) bool {
		c.mu.Lock()
		s := c.session
		c.mu.Unlock()
		return c.onTick(s)
	}

	BeforeEach(func() {
		rec = &recorder{}
		logs = NewMemoryLog(0)
	})

	Describe("Start", func() {
		It("begins at step zero in the running state", func() {
			c := newController(staticFetcher(fullBundle(4)))
			Expect(c.State()).To(Equal(Idle))

			Expect(c.Start(context.Background(), params)).To(Succeed())
			st := c.Status()
			Expect(st.State).To(Equal(Running))
			Expect(st.Step).To(Equal(0))
			Expect(st.Len).To(Equal(4))
			Expect(st.SessionID).NotTo(BeEmpty())
			Expect(st.Params).To(Equal(params))
		})

		It("rejects non-positive parameters without fetching", func() {
			called := false
			c := newController(FetcherFunc(func(context.Context, Params) (*bundle.Bundle, error) {
				called = true
				return nil, nil
			}))
			Expect(c.Start(context.Background(), Params{Speed: 0, Duration: 1})).To(MatchError(ErrInvalidParams))
			Expect(called).To(BeFalse())
		})

		It("surfaces a fetch failure and stays idle", func() {
			boom := errors.New("connection refused")
			c := newController(FetcherFunc(func(context.Context, Params) (*bundle.Bundle, error) {
				return nil, boom
			}))

			err := c.Start(context.Background(), params)
			var fe *FetchError
			Expect(errors.As(err, &fe)).To(BeTrue())
			Expect(fe.Params).To(Equal(params))
			Expect(err).To(MatchError(boom))
			Expect(c.State()).To(Equal(Idle))
			Expect(c.Status().Pending).To(BeFalse())
		})

		It("treats a bundle missing view series as a fetch failure", func() {
			b, err := bundle.New(map[string][]float64{"hour": {0, 1}})
			Expect(err).NotTo(HaveOccurred())
			c := New(staticFetcher(b), rec, WithTicker(manualTickers), WithLogger(quietLogger))

			err = c.Start(context.Background(), params)
			Expect(err).To(MatchError(bundle.ErrMissingSeries))
			Expect(c.State()).To(Equal(Idle))
		})

		It("keeps the previous session when a later fetch fails", func() {
			calls := 0
			c := newController(FetcherFunc(func(context.Context, Params) (*bundle.Bundle, error) {
				calls++
				if calls == 1 {
					return fullBundle(3), nil
				}
				return nil, errors.New("bad gateway")
			}))

			Expect(c.Start(context.Background(), params)).To(Succeed())
			tick(c)
			id := c.Status().SessionID

			Expect(c.Start(context.Background(), params)).NotTo(Succeed())
			Expect(c.Status().SessionID).To(Equal(id))
			Expect(c.Step()).To(Equal(1))
			Expect(c.State()).To(Equal(Running))
		})
	})

	Describe("ticking", func() {
		It("advances by one per tick and finishes at the bundle length", func() {
			c := newController(staticFetcher(fullBundle(3)))
			Expect(c.Start(context.Background(), params)).To(Succeed())

			Expect(tick(c)).To(BeTrue())
			Expect(c.Step()).To(Equal(1))
			Expect(tick(c)).To(BeTrue())
			Expect(c.Step()).To(Equal(2))
			Expect(tick(c)).To(BeFalse())
			Expect(c.Step()).To(Equal(3))
			Expect(c.State()).To(Equal(Finished))

			Expect(tick(c)).To(BeFalse())
			Expect(c.Step()).To(Equal(3))
			Expect(rec.lengths()).To(Equal([]int{1, 2, 3}))
		})

		It("reveals growing prefixes of the tank levels and logs each step", func() {
			b, err := bundle.New(map[string][]float64{
				"hour":      {0, 1, 2, 3},
				"CO2_level": {10, 12, 14, 16},
				"H2_level":  {400, 400, 401, 401},
			})
			Expect(err).NotTo(HaveOccurred())
			c := newController(staticFetcher(b))
			Expect(c.SetActiveView("tank_levels")).To(Succeed())
			Expect(c.Start(context.Background(), params)).To(Succeed())

			tick(c)
			tick(c)
			tick(c)

			Expect(rec.frames).To(HaveLen(3))
			for i, f := range rec.frames {
				Expect(f.traces).To(HaveLen(2))
				Expect(f.traces[0].X).To(Equal([]float64{0, 1, 2, 3}[:i+1]))
				Expect(f.traces[0].Y).To(Equal([]float64{10, 12, 14, 16}[:i+1]))
				Expect(f.traces[1].Y).To(HaveLen(i + 1))
				Expect(f.layout.Title).To(Equal("Storage Tank Levels Over Time"))
			}
			Expect(logs.Lines()).To(Equal([]string{
				"Step 0: Simulation running...",
				"Step 1: Simulation running...",
				"Step 2: Simulation running...",
			}))
		})

		It("finishes immediately for an empty bundle", func() {
			b, err := bundle.New(map[string][]float64{"hour": {}})
			Expect(err).NotTo(HaveOccurred())
			c := newController(staticFetcher(b))
			Expect(c.Start(context.Background(), params)).To(Succeed())

			Expect(tick(c)).To(BeFalse())
			Expect(c.State()).To(Equal(Finished))
			Expect(rec.frames).To(BeEmpty())
			Expect(logs.Lines()).To(BeEmpty())
		})

		It("logs and skips a failed render without stalling", func() {
			rec.err = errors.New("malformed series")
			c := newController(staticFetcher(fullBundle(3)))
			Expect(c.Start(context.Background(), params)).To(Succeed())

			Expect(tick(c)).To(BeTrue())
			Expect(c.Step()).To(Equal(1))
			Expect(c.State()).To(Equal(Running))
			Expect(logs.Lines()).To(HaveLen(1))
			Expect(logs.Lines()[0]).To(ContainSubstring("Step 0: render failed"))
			Expect(logs.Lines()[0]).To(ContainSubstring("malformed series"))

			rec.err = nil
			Expect(tick(c)).To(BeTrue())
			Expect(logs.Lines()[1]).To(Equal("Step 1: Simulation running..."))
		})

		It("recovers from a panicking renderer", func() {
			rec.panics = true
			c := newController(staticFetcher(fullBundle(2)))
			Expect(c.Start(context.Background(), params)).To(Succeed())

			Expect(func() { tick(c) }).NotTo(Panic())
			Expect(c.Step()).To(Equal(1))
			Expect(logs.Lines()[0]).To(ContainSubstring("panic: surface gone"))
		})
	})

	Describe("Pause", func() {
		It("freezes the step across any number of ticks", func() {
			c := newController(staticFetcher(fullBundle(5)))
			Expect(c.Start(context.Background(), params)).To(Succeed())
			tick(c)
			tick(c)

			c.Pause()
			Expect(c.State()).To(Equal(Paused))
			for i := 0; i < 5; i++ {
				Expect(tick(c)).To(BeFalse())
			}
			Expect(c.Step()).To(Equal(2))
			Expect(rec.frames).To(HaveLen(2))
		})

		It("is idempotent", func() {
			c := newController(staticFetcher(fullBundle(5)))
			Expect(c.Start(context.Background(), params)).To(Succeed())
			tick(c)

			c.Pause()
			st := c.Status()
			c.Pause()
			Expect(c.Status()).To(Equal(st))
		})

		It("is a no-op when idle", func() {
			c := newController(staticFetcher(fullBundle(5)))
			c.Pause()
			Expect(c.State()).To(Equal(Idle))
		})

		It("applies to the session a pending start installs", func() {
			release := make(chan struct{})
			c := newController(FetcherFunc(func(context.Context, Params) (*bundle.Bundle, error) {
				<-release
				return fullBundle(4), nil
			}))

			done := make(chan error, 1)
			go func() { done <- c.Start(context.Background(), params) }()
			Eventually(func() bool { return c.Status().Pending }).Should(BeTrue())

			c.Pause()
			close(release)
			Eventually(done).Should(Receive(BeNil()))

			Expect(c.State()).To(Equal(Paused))
			Expect(c.Step()).To(Equal(0))
			Expect(tick(c)).To(BeFalse())
			Expect(rec.frames).To(BeEmpty())
		})
	})

	Describe("restarting", func() {
		It("starts over from a paused session with the new bundle", func() {
			bundles := []*bundle.Bundle{fullBundle(5), fullBundle(2)}
			calls := 0
			c := newController(FetcherFunc(func(context.Context, Params) (*bundle.Bundle, error) {
				b := bundles[calls]
				calls++
				return b, nil
			}))

			Expect(c.Start(context.Background(), params)).To(Succeed())
			tick(c)
			tick(c)
			c.Pause()
			first := c.Status().SessionID

			Expect(c.Start(context.Background(), params)).To(Succeed())
			st := c.Status()
			Expect(st.SessionID).NotTo(Equal(first))
			Expect(st.State).To(Equal(Running))
			Expect(st.Step).To(Equal(0))
			Expect(st.Len).To(Equal(2))
		})

		It("starts over from a finished session", func() {
			c := newController(staticFetcher(fullBundle(1)))
			Expect(c.Start(context.Background(), params)).To(Succeed())
			tick(c)
			Expect(c.State()).To(Equal(Finished))

			Expect(c.Start(context.Background(), params)).To(Succeed())
			Expect(c.State()).To(Equal(Running))
			Expect(c.Step()).To(Equal(0))
		})

		It("ignores ticks from a replaced session", func() {
			c := newController(staticFetcher(fullBundle(4)))
			Expect(c.Start(context.Background(), params)).To(Succeed())
			c.mu.Lock()
			old := c.session
			c.mu.Unlock()

			Expect(c.Start(context.Background(), params)).To(Succeed())
			Expect(c.onTick(old)).To(BeFalse())
			Expect(c.Step()).To(Equal(0))
			Expect(rec.frames).To(BeEmpty())
		})

		It("keeps only the latest of overlapping starts", func() {
			slow := make(chan struct{})
			entered := make(chan struct{})
			c := newController(FetcherFunc(func(_ context.Context, p Params) (*bundle.Bundle, error) {
				if p.Speed == 1 {
					close(entered)
					<-slow
					return fullBundle(9), nil
				}
				return fullBundle(3), nil
			}))

			first := make(chan error, 1)
			go func() { first <- c.Start(context.Background(), Params{Speed: 1, Duration: 1}) }()
			Eventually(entered).Should(BeClosed())

			Expect(c.Start(context.Background(), Params{Speed: 2, Duration: 0.5})).To(Succeed())
			close(slow)

			Eventually(first).Should(Receive(MatchError(ErrSuperseded)))
			st := c.Status()
			Expect(st.Len).To(Equal(3))
			Expect(st.Params).To(Equal(Params{Speed: 2, Duration: 0.5}))
		})
	})

	Describe("SetActiveView", func() {
		It("switches the view used by the next tick", func() {
			c := newController(staticFetcher(fullBundle(4)))
			Expect(c.Start(context.Background(), params)).To(Succeed())
			tick(c)

			Expect(c.SetActiveView("power_generation")).To(Succeed())
			Expect(c.Step()).To(Equal(1))
			Expect(c.State()).To(Equal(Running))
			tick(c)

			Expect(rec.frames[0].layout.Title).To(Equal("Storage Tank Levels Over Time"))
			Expect(rec.frames[1].layout.Title).To(Equal("Power Generation Over Time"))
			Expect(rec.frames[1].traces[1].Name).To(Equal("Nuclear Power Generated"))
		})

		It("rejects unknown views without rendering", func() {
			c := newController(staticFetcher(fullBundle(4)))
			Expect(c.Start(context.Background(), params)).To(Succeed())

			err := c.SetActiveView("radiation")
			Expect(err).To(MatchError(view.ErrUnknownView))
			var uve *view.UnknownViewError
			Expect(errors.As(err, &uve)).To(BeTrue())
			Expect(uve.Name).To(Equal("radiation"))

			Expect(c.ActiveView()).To(Equal(view.TankLevels))
			Expect(c.Step()).To(Equal(0))
			Expect(rec.frames).To(BeEmpty())

			Expect(c.SetView(view.ID(77))).To(MatchError(view.ErrUnknownView))
		})
	})

	Describe("clock", func() {
		It("plays a session to the end on a real ticker", func() {
			var mu sync.Mutex
			var seen []Status
			c := New(staticFetcher(fullBundle(5)), rec,
				WithInterval(2*time.Millisecond),
				WithLogSink(logs),
				WithLogger(quietLogger),
				WithNotify(func(st Status) {
					mu.Lock()
					seen = append(seen, st)
					mu.Unlock()
				}),
			)
			DeferCleanup(c.Close)

			Expect(c.Start(context.Background(), params)).To(Succeed())
			Eventually(c.State).WithTimeout(2 * time.Second).Should(Equal(Finished))

			Expect(c.Step()).To(Equal(5))
			Expect(rec.lengths()).To(Equal([]int{1, 2, 3, 4, 5}))
			Expect(logs.Total()).To(Equal(5))

			Eventually(func() State {
				mu.Lock()
				defer mu.Unlock()
				return seen[len(seen)-1].State
			}).Should(Equal(Finished))
		})

		It("stops ticking after Close", func() {
			c := New(staticFetcher(fullBundle(1000)), rec,
				WithInterval(time.Millisecond),
				WithLogger(quietLogger),
			)
			Expect(c.Start(context.Background(), params)).To(Succeed())
			Eventually(c.Step).Should(BeNumerically(">", 0))

			c.Close()
			step := c.Step()
			Consistently(c.Step, 50*time.Millisecond).Should(Equal(step))
			Expect(c.State()).To(Equal(Paused))
		})
	})
})
