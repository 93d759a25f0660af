package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"task-monitor/internal/config"
	"task-monitor/internal/display"
	"task-monitor/internal/gate"
	"task-monitor/internal/logger"
	"task-monitor/internal/marketplace"
	"task-monitor/internal/monitor"
	"task-monitor/internal/notifier"
	"task-monitor/internal/scheduler"
	"task-monitor/internal/status"
)

func main() {
	// Load configuration
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	cfg := config.Load(path)

	// Initialize logger
	logger.Init(cfg)

	slog.Info("Task monitoring service started",
		"log_file", cfg.Log.File,
		"log_level", cfg.Log.Level)
	slog.Info("Loaded configuration",
		"base_url", cfg.Marketplace.BaseURL,
		"email", cfg.Marketplace.Email,
		"projects_file", cfg.Marketplace.ProjectsFile,
		"interval", cfg.Interval(),
		"timezone", cfg.Notification.Timezone,
		"work_hours", cfg.Notification.WorkHoursStart+"-"+cfg.Notification.WorkHoursEnd,
		"night_hours_end", cfg.Notification.NightHoursEnd,
		"cooldown", cfg.Cooldown(),
		"cooldown_scope", cfg.Notification.CooldownScope,
		"email_recipient", cfg.Notifiers.SendGrid.To,
		"web_app_url", cfg.Display.URL,
	)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		slog.Info("Shutting down gracefully...", "signal", sig.String())
		cancel()
	}()

	// Run the service
	if err := run(ctx, cfg); err != nil {
		slog.Error("Application error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutdown complete.")
}

// run wires the components and blocks until ctx is cancelled
func run(ctx context.Context, cfg *config.Config) error {
	mon, err := newMonitor(cfg)
	if err != nil {
		return err
	}

	if cfg.Status.Listen != "" {
		srv := status.New(status.Config{
			Addr:           cfg.Status.Listen,
			AllowedOrigins: cfg.Status.AllowedOrigins,
			Source:         mon,
		})
		go func() {
			if err := srv.Start(); err != nil {
				slog.Error("Status server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("Error shutting down status server", "error", err)
			}
		}()
	}

	sched := scheduler.New(cfg.Interval(), cfg.ShutdownTimeout())
	return shutdownResult(sched.Run(ctx, scheduler.NewJob("task-poll", mon.RunCycle)))
}

// shutdownResult treats an expired shutdown wait as a normal exit
func shutdownResult(err error) error {
	if errors.Is(err, scheduler.ErrShutdownTimeout) {
		slog.Warn("Running cycle did not finish before the shutdown timeout, exiting anyway", "error", err)
		return nil
	}
	return err
}

// newMonitor builds the poll cycle from configuration
func newMonitor(cfg *config.Config) (*monitor.Monitor, error) {
	policy, err := gate.NewPolicy(cfg)
	if err != nil {
		return nil, err
	}

	notifiers := notifier.FromConfig(cfg)
	if len(notifiers) == 0 {
		slog.Warn("No notifiers configured, alerts will only be logged")
	}

	opts := monitor.Options{
		ProjectsFile:      cfg.Marketplace.ProjectsFile,
		Policy:            policy,
		Notifiers:         notifiers,
		WatchListing:      cfg.Marketplace.WatchListing,
		MonitoredProjects: cfg.Marketplace.MonitoredProjects,
	}
	if cfg.Display.URL != "" {
		opts.Display = display.NewClient(cfg.Display.URL, cfg.HTTPTimeout())
	}

	return monitor.New(marketplace.NewClient(cfg), opts), nil
}
