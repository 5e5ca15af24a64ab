package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/isruplay/internal/bundle"
	"github.com/san-kum/isruplay/internal/config"
	"github.com/san-kum/isruplay/internal/dashboard"
	"github.com/san-kum/isruplay/internal/metrics"
	"github.com/san-kum/isruplay/internal/playback"
	"github.com/san-kum/isruplay/internal/render"
	"github.com/san-kum/isruplay/internal/server"
	"github.com/san-kum/isruplay/internal/simclient"
	"github.com/san-kum/isruplay/internal/storage"
	"github.com/san-kum/isruplay/internal/view"
)

var (
	configFile string
	dataDir    string
	logLevel   string
	serverURL  string
	speed      float64
	duration   float64
	interval   time.Duration
	viewName   string
	preset     string
	runID      string
	offline    bool
	autoStart  bool
	clearTerm  bool
	listen     string
	allViews   bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:          "isruplay",
		Short:        "replay Mars ISRU simulation runs in the terminal",
		SilenceUsage: true,
		RunE:         runPlay,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "run storage directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	addPlaybackFlags(rootCmd)

	playCmd := &cobra.Command{
		Use:   "play",
		Short: "interactive playback dashboard",
		RunE:  runPlay,
	}
	addPlaybackFlags(playCmd)
	playCmd.Flags().BoolVar(&autoStart, "start", false, "start a simulation immediately")
	rootCmd.Flags().BoolVar(&autoStart, "start", false, "start a simulation immediately")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "headless playback printing each frame",
		RunE:  runWatch,
	}
	addPlaybackFlags(watchCmd)
	watchCmd.Flags().BoolVar(&clearTerm, "clear", true, "redraw in place instead of scrolling")

	viewsCmd := &cobra.Command{
		Use:   "views",
		Short: "list available views",
		RunE:  listViews,
	}

	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "fetch a simulation run and store it",
		RunE:  recordRun,
	}
	recordCmd.Flags().StringVar(&serverURL, "server", config.DefaultServerURL, "simulation service url")
	recordCmd.Flags().Float64Var(&speed, "speed", config.DefaultSpeed, "simulation speed")
	recordCmd.Flags().Float64Var(&duration, "duration", config.DefaultDuration, "simulation duration (Martian years)")
	recordCmd.Flags().StringVar(&preset, "preset", "", "use preset speed and duration")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&viewName, "view", view.TankLevels.String(), "view to plot")
	plotCmd.Flags().BoolVar(&allViews, "all", false, "plot every view")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run series to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data and summary to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve stored runs as a simulation service",
		RunE:  serve,
	}
	serveCmd.Flags().StringVar(&listen, "listen", config.DefaultListen, "listen address")
	serveCmd.Flags().StringVar(&runID, "run", "", "answer every request with this run")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSPEED\tDURATION\tABOUT")
			for _, name := range config.ListPresets() {
				p, _ := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%g\t%g\t%s\n", name, p.Speed, p.Duration, p.About)
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(playCmd, watchCmd, viewsCmd, recordCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd, serveCmd, presetsCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func addPlaybackFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&serverURL, "server", config.DefaultServerURL, "simulation service url")
	f.Float64Var(&speed, "speed", config.DefaultSpeed, "simulation speed")
	f.Float64Var(&duration, "duration", config.DefaultDuration, "simulation duration (Martian years)")
	f.DurationVar(&interval, "interval", config.DefaultInterval, "time between steps")
	f.StringVar(&viewName, "view", view.TankLevels.String(), "initial view")
	f.StringVar(&preset, "preset", "", "use preset speed and duration")
	f.StringVar(&runID, "run", "", "replay a stored run instead of calling the service")
	f.BoolVar(&offline, "offline", false, "replay the newest stored run matching speed and duration")
}

// loadConfig resolves defaults, the config file, the environment, and
// explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Resolve(configFile)
	if err != nil {
		return nil, err
	}

	if preset != "" && !cfg.ApplyPreset(preset) {
		return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
	}

	f := cmd.Flags()
	if f.Changed("data") {
		cfg.DataDir = dataDir
	}
	if f.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if f.Changed("server") {
		cfg.ServerURL = serverURL
	}
	if f.Changed("speed") {
		cfg.Speed = speed
	}
	if f.Changed("duration") {
		cfg.Duration = duration
	}
	if f.Changed("interval") {
		cfg.Interval = interval
	}
	if f.Changed("view") {
		cfg.View = viewName
	}
	if f.Changed("run") {
		cfg.Run = runID
	}
	if f.Changed("listen") {
		cfg.Listen = listen
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func params(cfg *config.Config) playback.Params {
	return playback.Params{Speed: cfg.Speed, Duration: cfg.Duration}
}

// fetcher picks the bundle source: a stored run, the newest matching stored
// run, or the simulation service.
func fetcher(cfg *config.Config) playback.Fetcher {
	if cfg.Run != "" || offline {
		return storage.New(cfg.DataDir).Fetcher(cfg.Run)
	}
	return simclient.New(cfg.ServerURL, cfg.HTTPTimeout)
}

func newController(cfg *config.Config, r render.Renderer, logger *slog.Logger, opts ...playback.Option) (*playback.Controller, error) {
	id, err := view.Parse(cfg.View)
	if err != nil {
		return nil, err
	}
	opts = append([]playback.Option{
		playback.WithInterval(cfg.Interval),
		playback.WithLogger(logger),
		playback.WithView(id),
	}, opts...)
	return playback.New(fetcher(cfg), r, opts...), nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// the dashboard owns the terminal, so logs go to a file
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return err
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.DataDir, "isruplay.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := cfg.Logger(logFile)

	frame := render.NewFrame(render.NewChart(cfg.Chart.Width, cfg.Chart.Height))
	logs := playback.NewMemoryLog(500)

	ctrl, err := newController(cfg, frame, logger, playback.WithLogSink(logs))
	if err != nil {
		return err
	}
	defer ctrl.Close()

	return dashboard.Run(cmd.Context(), ctrl, frame, logs, dashboard.Options{
		Params:    params(cfg),
		Theme:     cfg.Theme,
		AutoStart: autoStart,
	})
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cfg.Logger(os.Stderr)

	term := render.NewTerminal(os.Stdout, render.NewChart(cfg.Chart.Width, cfg.Chart.Height), clearTerm)
	var sink playback.LogSink = playback.NewWriterLog(os.Stderr)
	if clearTerm {
		sink = playback.LogFunc(func(string) {})
	}

	finished := make(chan struct{})
	var once sync.Once
	ctrl, err := newController(cfg, term, logger,
		playback.WithLogSink(sink),
		playback.WithNotify(func(s playback.Status) {
			if s.State == playback.Finished {
				once.Do(func() { close(finished) })
			}
		}),
	)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if err := ctrl.Start(cmd.Context(), params(cfg)); err != nil {
		return err
	}
	term.Start()
	defer term.Stop()

	select {
	case <-finished:
		s := ctrl.Status()
		logger.Info("playback finished", "session", s.SessionID, "steps", s.Len, "frames", term.Frames())
	case <-cmd.Context().Done():
		ctrl.Pause()
		logger.Info("playback interrupted", "step", ctrl.Step())
	}
	return nil
}

func listViews(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tTITLE\tY AXIS\tSERIES")
	for _, d := range view.All() {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%v\n", int(d.ID)+1, d.ID, d.Title, d.YAxisLabel, d.Keys())
	}
	return w.Flush()
}

func recordRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cfg.Logger(os.Stderr)

	p := params(cfg)
	logger.Info("requesting simulation", "server", cfg.ServerURL, "speed", p.Speed, "duration", p.Duration)

	b, err := simclient.New(cfg.ServerURL, cfg.HTTPTimeout).Fetch(cmd.Context(), p)
	if err != nil {
		return err
	}

	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return err
	}
	id, err := st.Save(cfg.ServerURL, p, b)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", id)
	fmt.Printf("steps: %d\n", b.Len())
	fmt.Printf("series: %d\n", len(b.Names()))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	runs, err := storage.New(cfg.DataDir).List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tSPEED\tDURATION\tSTEPS\tSOURCE")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%g\t%g\t%d\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Speed,
			run.Duration,
			run.Steps,
			run.Source,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st := storage.New(cfg.DataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	b, err := st.LoadBundle(meta.ID)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("speed: %g  duration: %g\n", meta.Speed, meta.Duration)
	fmt.Printf("samples: %d\n\n", b.Len())

	var ids []view.ID
	if allViews {
		ids = view.IDs()
	} else {
		id, err := view.Parse(cfg.View)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	term := render.NewTerminal(os.Stdout, render.NewChart(cfg.Chart.Width, cfg.Chart.Height), false)
	for _, id := range ids {
		if err := plotView(term, id, b); err != nil {
			return err
		}
	}
	return nil
}

func plotView(r render.Renderer, id view.ID, b *bundle.Bundle) error {
	err := view.Render(r, id, b, b.Len())
	var se *bundle.SeriesError
	if errors.As(err, &se) {
		fmt.Printf("%s: skipped, run has no %s series\n\n", id, se.Name)
		return nil
	}
	if err != nil {
		return err
	}

	d, _ := view.Lookup(id)
	sums, err := metrics.Summarize(b, d.Keys()...)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  SERIES\tMIN\tMAX\tMEAN\tFINAL")
	for _, s := range sums {
		fmt.Fprintf(w, "  %s\t%.4g\t%.4g\t%.4g\t%.4g\n", s.Series, s.Min, s.Max, s.Mean, s.Final)
	}
	fmt.Fprintln(w)
	return w.Flush()
}

func exportCSV(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return storage.New(cfg.DataDir).CopySeries(os.Stdout, args[0])
}

func exportJSON(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return storage.New(cfg.DataDir).ExportJSON(os.Stdout, args[0])
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cfg.Logger(os.Stderr)

	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      server.NewRouter(st, cfg.Run, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fixture server starting", "addr", cfg.Listen, "data", cfg.DataDir, "run", cfg.Run)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}
