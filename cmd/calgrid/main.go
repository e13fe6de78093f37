package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	jsoniter "github.com/json-iterator/go"
	"github.com/robfig/cron/v3"

	"calgrid/internal/agenda"
	"calgrid/internal/calendar"
	"calgrid/internal/config"
	appLog "calgrid/internal/log"
	"calgrid/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	logLevel   string
	once       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	applyLogLevel(conf.LogLevel)

	appLog.Info("calgrid starting",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"initial_weeks", conf.InitialWeeks,
		"extend_days", conf.ExtendDays,
		"refresh", conf.RefreshCron,
		"ics_count", len(conf.ICS),
	)

	if flags.once {
		if err := printMonthBlock(conf); err != nil {
			appLog.Error("failed to build calendar", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	store := agenda.NewStore(agendaOptions(conf))
	if err := store.Refresh(ctx); err != nil {
		appLog.Error("initial agenda refresh incomplete", err)
	}

	sched := cron.New()
	entryID, err := scheduleRefresh(ctx, sched, conf.RefreshCron, store)
	if err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	srv := web.NewServer(conf, store)

	go func() {
		err := config.Watch(ctx, flags.configPath, func(next *config.Config) {
			// The listen address is bound once; keep the running one.
			next.Listen = conf.Listen
			if flags.logLevel != "" {
				next.LogLevel = flags.logLevel
			}
			applyLogLevel(next.LogLevel)
			srv.Apply(next)
			store.Reconfigure(agendaOptions(next))

			sched.Remove(entryID)
			if id, err := scheduleRefresh(ctx, sched, next.RefreshCron, store); err != nil {
				appLog.Error("invalid refresh schedule; agenda refresh paused", err, "refresh", next.RefreshCron)
			} else {
				entryID = id
			}

			if err := store.Refresh(ctx); err != nil {
				appLog.Error("agenda refresh after reload incomplete", err)
			}
		})
		if err != nil {
			appLog.Error("config watcher stopped", err, "config_path", flags.configPath)
		}
	}()

	if err := web.StartServer(ctx, srv, conf.Listen); err != nil {
		appLog.Error("http server failed", err)
		cancel()
		os.Exit(1)
	}

	time.Sleep(100 * time.Millisecond)
	appLog.Info("calgrid exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/calgrid/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Print the current month block as JSON and exit")

	flag.Parse()

	return cfg
}

func applyLogLevel(raw string) {
	level, err := appLog.ParseLevel(raw)
	if err != nil {
		appLog.Error("invalid log level; using INFO", err)
	}
	appLog.SetLevel(level)
}

func agendaOptions(c *config.Config) agenda.Options {
	sources := make([]agenda.Source, 0, len(c.ICS))
	for _, src := range c.ICS {
		sources = append(sources, agenda.Source{ID: src.ID, Path: src.Path})
	}
	return agenda.Options{
		Sources:      sources,
		Location:     c.Location(),
		BackfillDays: c.BackfillDays,
		HorizonDays:  c.HorizonDays,
	}
}

func scheduleRefresh(ctx context.Context, sched *cron.Cron, spec string, store *agenda.Store) (cron.EntryID, error) {
	return sched.AddFunc(spec, func() {
		if err := store.Refresh(ctx); err != nil {
			appLog.Error("scheduled agenda refresh incomplete", err)
		}
	})
}

func printMonthBlock(c *config.Config) error {
	grid := calendar.NewGrid(c.WeekStartDay())
	today := calendar.DateOf(time.Now().In(c.Location()))

	block, err := grid.BuildMonthBlock(today, today, c.InitialWeeks)
	if err != nil {
		return err
	}

	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(block)
}
