package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/defunc/internal/defunc"
	"github.com/teemow/defunc/internal/demo"
	"github.com/teemow/defunc/internal/instrumentation"
	"github.com/teemow/defunc/internal/logging"
	"github.com/teemow/defunc/internal/server"
)

// watchEntry is one --watch item: Type.op (static) or Type#op (instance).
type watchEntry struct {
	typeName  string
	scope     defunc.Scope
	operation string
}

// demoOptions holds everything runDemo needs, already merged from env, manifest and flags.
type demoOptions struct {
	engine      defunc.Config
	manifest    *defunc.Manifest
	watch       []watchEntry
	dice        int
	metricsAddr string
	traceToLog  bool
	audit       bool
	instr       instrumentation.Config
	logger      *slog.Logger
}

func newDemoCmd() *cobra.Command {
	var (
		traceAll     bool
		threshold    time.Duration
		qualified    bool
		depthMode    string
		manifestPath string
		watchList    string
		dice         int
		metricsAddr  string
		traceToLog   bool
		audit        bool
		logLevel     string
		debugMode    bool
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the example types through the tracing engine",
		Long: `Run a round of the Random, Dice and Cup example types with call tracing
and instance auditing enabled, printing trace lines to standard output.

Watch sets come from, in increasing priority: built-in defaults, a YAML
manifest (--manifest) and --watch entries of the form Type.op (type-level)
or Type#op (instance-level).

With --metrics-addr the Prometheus endpoint stays up after the round until
the process is interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := defunc.DefaultConfig()

			var manifest *defunc.Manifest
			if manifestPath != "" {
				m, err := defunc.LoadManifest(manifestPath)
				if err != nil {
					return fmt.Errorf("failed to load manifest: %w", err)
				}
				manifest = m
				config = m.Config(config)
			}

			flags := cmd.Flags()
			if flags.Changed("trace-all") {
				config.TraceAll = traceAll
			}
			if flags.Changed("threshold") {
				config.StaleThreshold = threshold
			}
			if flags.Changed("qualified") {
				config.QualifiedNames = qualified
			}
			if flags.Changed("depth-mode") {
				config.DepthMode = depthMode
			}

			watch, err := parseWatchList(watchList)
			if err != nil {
				return err
			}

			if debugMode {
				logLevel = "debug"
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logging.ParseLevel(logLevel),
			}))

			instrConfig := instrumentation.DefaultConfig()
			instrConfig.ServiceVersion = version

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runDemo(ctx, demoOptions{
				engine:      config,
				manifest:    manifest,
				watch:       watch,
				dice:        dice,
				metricsAddr: metricsAddr,
				traceToLog:  traceToLog,
				audit:       audit,
				instr:       instrConfig,
				logger:      logger,
			}, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&traceAll, "trace-all", false, "Trace every operation of types without a watch set. Can also use DEFUNC_TRACE_ALL env var.")
	cmd.Flags().DurationVar(&threshold, "threshold", defunc.DefaultStaleThreshold, "Report instances released after living longer than this. Can also use DEFUNC_STALE_THRESHOLD env var.")
	cmd.Flags().BoolVar(&qualified, "qualified", false, "Render operations as Type.op / Type#op. Can also use DEFUNC_QUALIFIED_NAMES env var.")
	cmd.Flags().StringVar(&depthMode, "depth-mode", defunc.DepthModeShared, "Depth tracking mode: shared or context. Can also use DEFUNC_DEPTH_MODE env var.")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Path to a YAML watch manifest")
	cmd.Flags().StringVar(&watchList, "watch", "", "Additional watched operations (comma-separated Type.op or Type#op)")
	cmd.Flags().IntVar(&dice, "dice", 3, "Number of dice to shake")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address and keep running until interrupted")
	cmd.Flags().BoolVar(&traceToLog, "trace-to-log", false, "Write trace lines as structured log records instead of plain text")
	cmd.Flags().BoolVar(&audit, "audit", false, "Log every intercepted call through the audit logger")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Diagnostics log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	return cmd
}

func runDemo(ctx context.Context, opts demoOptions, out io.Writer) error {
	logger := opts.logger
	if logger == nil {
		logger = logging.Nop()
	}

	provider, err := instrumentation.NewProvider(ctx, opts.instr)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	var sink defunc.Sink = defunc.NewWriterSink(out)
	if opts.traceToLog {
		sink = defunc.NewSlogSink(slog.New(slog.NewJSONHandler(out, nil)))
	}

	engineOpts := []defunc.Option{
		defunc.WithSink(sink),
		defunc.WithLogger(logging.NewSlogAdapter(logger)),
	}
	if provider.Enabled() {
		engineOpts = append(engineOpts, defunc.WithRecorder(provider.Metrics()))
	}
	if opts.audit {
		auditConfig := opts.instr.AuditLogging
		auditConfig.Enabled = true
		engineOpts = append(engineOpts, defunc.WithRecorder(instrumentation.NewAuditLoggerWithConfig(logger, auditConfig)))
	}

	engine, err := defunc.New(opts.engine, engineOpts...)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	if opts.manifest != nil {
		if err := opts.manifest.Apply(engine); err != nil {
			return fmt.Errorf("failed to apply manifest: %w", err)
		}
	}
	for _, w := range opts.watch {
		engine.Declare(w.typeName).Watch(w.scope, w.operation)
	}
	demo.WatchDefaults(engine)

	var metricsServer *server.MetricsServer
	if opts.metricsAddr != "" && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.metricsAddr,
			Enabled:                 true,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case <-metricsReady:
			logger.Info("metrics server started", "addr", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("error during metrics server shutdown", logging.Err(err))
			}
		}()
	}

	d := demo.Register(engine)
	if err := d.Run(ctx, opts.dice); err != nil {
		return fmt.Errorf("demo run failed: %w", err)
	}

	for _, inst := range engine.Auditor().Overdue() {
		logger.Warn("instance outlived threshold",
			logging.Type(inst.Type), logging.InstanceID(uint64(inst.ID)))
	}

	if metricsServer != nil {
		fmt.Fprintf(out, "serving metrics on http://%s%s, interrupt to exit\n", metricsServer.Addr(), metricsServer.Path())
		<-ctx.Done()
	}

	return nil
}

// parseWatchList parses comma-separated Type.op and Type#op entries.
func parseWatchList(s string) ([]watchEntry, error) {
	var entries []watchEntry
	for _, item := range parseCommaSeparatedList(s) {
		scope := defunc.ScopeInstance
		i := strings.LastIndex(item, "#")
		if i < 0 {
			scope = defunc.ScopeStatic
			i = strings.LastIndex(item, ".")
		}
		if i <= 0 || i == len(item)-1 {
			return nil, fmt.Errorf("invalid watch entry %q, expected Type.op or Type#op", item)
		}
		entries = append(entries, watchEntry{
			typeName:  item[:i],
			scope:     scope,
			operation: item[i+1:],
		})
	}
	return entries, nil
}

// parseCommaSeparatedList splits a comma-separated string into a slice of trimmed,
// non-empty strings. Returns nil for an empty input or if no valid values remain.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
