package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"

	"calwrapped/internal/config"
	appLog "calwrapped/internal/log"
	"calwrapped/internal/pipeline"
	"calwrapped/internal/web"
	"calwrapped/internal/wrapped"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	appLog.Info("calwrapped starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if err := conf.ApplyEnv(); err != nil {
		appLog.Error("failed to apply environment overrides", err)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.debug {
		conf.LogLevel = string(appLog.LevelDebug)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	resolved, err := conf.Resolve()
	if err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	loc := resolved.Location

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"refresh", conf.RefreshCron,
		"google", conf.GoogleEnabled(),
		"calendar_ids", conf.Google.CalendarIDs,
		"ics_count", len(conf.ICS),
		"time_min", conf.Window.TimeMin,
		"time_max", conf.Window.TimeMax,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sources, err := buildSources(ctx, conf, loc)
	if err != nil {
		appLog.Error("failed to build calendar sources", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	runner := pipeline.NewRunner(sources, pipeline.Options{
		Location: loc,
		Window:   pipeline.FixedWindow(resolved.TimeMin, resolved.TimeMax),
		Metrics:  pipeline.NewMetrics(reg),
	})

	if flags.once {
		if err := runOnce(ctx, runner, loc); err != nil {
			appLog.Error("single run failed", err)
			os.Exit(1)
		}
		return
	}

	srv := web.NewServer(conf, runner, reg)

	refresh := func() {
		if _, err := srv.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed; keeping previous snapshot", err)
		}
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(conf.RefreshCron, refresh); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	// First snapshot right away rather than at the first cron tick.
	go refresh()

	if err := srv.ListenAndServe(ctx); err != nil {
		appLog.Error("HTTP server failed", err)
		cancel()
	}

	// Give in-flight requests time to finish logging.
	time.Sleep(100 * time.Millisecond)
	appLog.Info("calwrapped exiting")
}

// onceOutput is what -once prints to stdout.
type onceOutput struct {
	Snapshot pipeline.Snapshot `json:"snapshot"`
	Wrapped  wrapped.Deck      `json:"wrapped"`
}

func runOnce(ctx context.Context, runner *pipeline.Runner, loc *time.Location) error {
	snap, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(onceOutput{
		Snapshot: snap,
		Wrapped:  wrapped.Build(snap.Stats, snap.Window.TimeMin.In(loc).Year()),
	})
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/calwrapped/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one fetch+aggregate cycle, print JSON and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
