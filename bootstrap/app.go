package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/reportflow/chain"
	"github.com/kbukum/reportflow/config"
	"github.com/kbukum/reportflow/executor"
	"github.com/kbukum/reportflow/filter"
	"github.com/kbukum/reportflow/filters"
	"github.com/kbukum/reportflow/logger"
	"github.com/kbukum/reportflow/observability"
	"github.com/kbukum/reportflow/redis"
	"github.com/kbukum/reportflow/report"
	"github.com/kbukum/reportflow/version"
)

// ErrNotStarted is returned by run operations before Start.
var ErrNotStarted = errors.New("app is not started")

// App assembles a reportflow engine from configuration: the filter registry,
// its connected sinks, the root chain and the executor that runs it.
//
//	cfg, _ := config.LoadConfig("crash-uploader")
//	app, _ := bootstrap.New(cfg)
//	app.Registry.Register(myFilter)
//	if err := app.Start(ctx); err != nil { ... }
//	defer app.Shutdown(context.Background())
//	res := app.Execute(ctx, reports)
type App struct {
	Name     string
	Version  string
	Cfg      *config.Config
	Logger   *logger.Logger
	Registry *filter.Registry
	Summary  *Summary

	// Set by Start.
	Executor *executor.Executor
	Root     filter.Filter

	loader          chain.Loader
	writer          filters.MessageWriter
	summaryOut      io.Writer
	gracefulTimeout time.Duration

	redis   *redis.Client
	closers []func() error
	tracer  *sdktrace.TracerProvider
	meter   *sdkmetric.MeterProvider
	metrics *observability.Metrics

	hooks map[phase][]Hook
}

// New applies defaults to cfg, validates it, initializes the logger and
// registers the built-in filters. Sinks are connected by Start.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	app := &App{
		Name:            cfg.Name,
		Version:         cfg.Version,
		Cfg:             cfg,
		Registry:        filter.NewRegistry(),
		gracefulTimeout: 15 * time.Second,
		hooks:           make(map[phase][]Hook),
	}
	if app.Version == "" {
		app.Version = version.Get().String()
	}

	o := resolveOptions(opts)
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(cfg.Logging)
		app.Logger = logger.GetGlobalLogger()
	}
	app.loader = o.loader
	if app.loader == nil {
		app.loader = chain.NewFileLoader(cfg.Chains.Dirs...)
	}
	app.writer = o.writer
	app.summaryOut = o.summaryOut
	if app.summaryOut == nil {
		app.summaryOut = os.Stdout
	}

	if err := registerBuiltins(app.Registry, cfg); err != nil {
		return nil, err
	}
	app.Summary = NewSummary(app.Name, app.Version)
	return app, nil
}

// Start initializes telemetry, connects the enabled sinks, creates the
// executor and builds the root chain. OnStart hooks run after the sinks are
// connected, OnReady hooks once the root chain is built.
func (a *App) Start(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("starting", logger.Fields("name", a.Name, "version", a.Version))

	if err := a.initTelemetry(ctx); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err := a.connectSinks(); err != nil {
		return fmt.Errorf("sinks: %w", err)
	}
	if err := a.runHooks(ctx, phaseStart); err != nil {
		return err
	}

	opts := []executor.Option{executor.WithLogger(a.Logger)}
	if a.metrics != nil {
		opts = append(opts, executor.WithMetrics(a.metrics))
	}
	exec, err := executor.New(a.Cfg.Executor, opts...)
	if err != nil {
		return err
	}
	a.Executor = exec

	root, err := a.Load(a.Cfg.Chains.Root)
	if err != nil {
		return fmt.Errorf("root chain %q: %w", a.Cfg.Chains.Root, err)
	}
	a.Root = root

	if err := a.runHooks(ctx, phaseReady); err != nil {
		return err
	}

	a.Summary.SetStartupDuration(time.Since(start))
	a.Summary.SetRoot(a.Cfg.Chains.Root)
	a.Summary.SetFilters(a.Registry.List(), a.Registry.Predicates())
	a.Summary.Display(a.summaryOut, a.Health(ctx))
	return nil
}

// Load builds the named chain against the registry. Every leaf filter logs
// its completion: failures at warn, successes at debug. The chain is
// wrapped with the enabled tracing and metrics.
func (a *App) Load(name string) (filter.Filter, error) {
	log := a.Logger.WithComponent("filter")
	leaves := a.Registry.Decorated(func(f filter.Filter) filter.Filter {
		return filter.WithLogging(f, log)
	})
	f, err := chain.Load(name, leaves, a.loader)
	if err != nil {
		return nil, err
	}
	if a.metrics != nil {
		f = filter.WithMetrics(f, a.metrics)
	}
	if a.tracer != nil {
		f = filter.WithTracing(f, "reportflow")
	}
	return f, nil
}

// Submit runs the root chain on reports without blocking.
func (a *App) Submit(ctx context.Context, reports report.Set, done func(filter.Result)) (*executor.Run, error) {
	if a.Executor == nil {
		return nil, ErrNotStarted
	}
	return a.Executor.Submit(ctx, a.Root, reports, done)
}

// Execute runs the root chain on reports and waits for its result.
func (a *App) Execute(ctx context.Context, reports report.Set) filter.Result {
	if a.Executor == nil {
		return filter.Failed(ErrNotStarted)
	}
	return a.Executor.Execute(ctx, a.Root, reports)
}

// Health aggregates the executor and sink health into one status.
func (a *App) Health(ctx context.Context) observability.Health {
	if a.Executor == nil {
		return observability.Health{Name: a.Name, Status: observability.HealthStatusDown, Message: "not started"}
	}
	checkers := []observability.HealthChecker{a.Executor}
	if a.redis != nil {
		checkers = append(checkers, a.redis)
	}
	return observability.Aggregate(ctx, a.Name, checkers...)
}

// RunTask starts the app, runs task and shuts down when the task returns
// or SIGINT/SIGTERM cancels its context.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context, app *App) error) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Info("received signal, canceling task", logger.Fields("signal", sig.String()))
			cancel()
		case <-taskCtx.Done():
		}
	}()

	taskErr := task(taskCtx, a)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer stopCancel()
	if stopErr := a.Shutdown(stopCtx); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

// Shutdown runs the OnStop hooks, drains the executor, closes the sinks
// and flushes telemetry. It returns the first error encountered.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down")
	var errs []error

	if err := a.runHooks(ctx, phaseStop); err != nil {
		errs = append(errs, err)
	}
	if a.Executor != nil {
		if err := a.Executor.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("executor: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.meter != nil {
		if err := a.meter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter: %w", err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer: %w", err))
		}
	}

	if len(errs) > 0 {
		a.Logger.Error("shutdown completed with errors", logger.Fields(logger.FieldError, errors.Join(errs...).Error()))
		return errs[0]
	}
	a.Logger.Info("shutdown complete")
	return nil
}

func (a *App) initTelemetry(ctx context.Context) error {
	if a.Cfg.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, &a.Cfg.Tracing.TracerConfig)
		if err != nil {
			return err
		}
		a.tracer = tp
	}
	if a.Cfg.Metrics.Enabled {
		mp, err := observability.InitMeter(ctx, &a.Cfg.Metrics.MeterConfig)
		if err != nil {
			return err
		}
		a.meter = mp
		m, err := observability.NewMetrics(mp.Meter("reportflow"))
		if err != nil {
			return err
		}
		a.metrics = m
	}
	return nil
}
