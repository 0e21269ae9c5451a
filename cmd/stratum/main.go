package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stratum/pkg/config"
	"github.com/ajitpratap0/stratum/pkg/logger"
	"github.com/ajitpratap0/stratum/pkg/metrics"
	"github.com/ajitpratap0/stratum/pkg/observability"
	"github.com/ajitpratap0/stratum/pkg/stream"
)

var version = "0.1.0"

// app carries the state shared by every subcommand
type app struct {
	v          *viper.Viper
	configFile string
	summary    bool

	cfg     *config.Config
	stream  *stream.Stream
	log     *zap.Logger
	metrics *http.Server
	profile profiler
}

func main() {
	a := &app{v: viper.New()}
	root := a.rootCommand()
	err := root.Execute()
	_ = a.teardown(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "stratum",
		Short: "Stratum - parallel columnar transform engine",
		Long: `Stratum runs null-aware, data-parallel column kernels over Arrow IPC and
Parquet files: prefix scans, null filtering, string/integer conversion and
regex replacement with backreferences.`,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup(cmd) },
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to a YAML configuration file")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Int("workers", 0, "Maximum number of ranges executed at once (0 = NumCPU)")
	flags.Int("grain-size", 0, "Elements per range, rounded up to a multiple of 64")
	flags.Int("memory-limit-mb", 0, "Cap on bytes held by one stream (0 = unlimited)")
	flags.String("metrics-addr", "", "Serve prometheus metrics on this address while the command runs")
	flags.Bool("trace", false, "Export kernel spans to stderr")
	flags.BoolVar(&a.summary, "summary", false, "Print a JSON summary of the command to stdout")
	flags.StringVar(&a.profile.cpuFile, "cpuprofile", "", "Write a CPU profile of the command to this file")
	flags.StringVar(&a.profile.memFile, "memprofile", "", "Write a heap profile after the command to this file")

	a.bind(flags.Lookup("log-level"), "logging.level")
	a.bind(flags.Lookup("workers"), "engine.workers")
	a.bind(flags.Lookup("grain-size"), "engine.grain_size")
	a.bind(flags.Lookup("memory-limit-mb"), "engine.memory_limit_mb")
	a.bind(flags.Lookup("metrics-addr"), "metrics.listen_addr")
	a.bind(flags.Lookup("trace"), "tracing.enabled")

	a.v.SetEnvPrefix("STRATUM")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		a.scanCommand(),
		a.reduceCommand(),
		a.dropNullsCommand(),
		a.toIntegersCommand(),
		a.fromIntegersCommand(),
		a.isIntegerCommand(),
		a.replaceCommand(),
		versionCommand(),
	)
	return root
}

func (a *app) bind(flag *pflag.Flag, key string) {
	_ = a.v.BindPFlag(key, flag)
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Stratum v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// setup loads the configuration, applies flag and environment overrides
// and starts logging, tracing and the metrics endpoint.
func (a *app) setup(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg := config.Default()
	if a.configFile != "" {
		loaded, err := config.Load(a.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	a.applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if err := logger.Init(cfg.Logging.Logger()); err != nil {
		return err
	}
	a.log = logger.With(zap.String("component", "stratum-cli"), zap.String("command", cmd.Name()))

	if err := observability.Initialize(cfg.Tracing, observability.WithWriter(os.Stderr)); err != nil {
		return err
	}

	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		a.metrics = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := a.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Error("metrics server failed", zap.Error(err))
			}
		}()
		a.log.Info("serving metrics", zap.String("addr", cfg.Metrics.ListenAddr))
	}

	s, err := stream.New(cfg.Engine)
	if err != nil {
		return err
	}
	a.stream = s
	return a.profile.start()
}

// applyOverrides copies flag and STRATUM_* environment values that were
// set explicitly on top of the file configuration.
func (a *app) applyOverrides(cfg *config.Config) {
	if a.v.IsSet("logging.level") && a.v.GetString("logging.level") != "" {
		cfg.Logging.Level = a.v.GetString("logging.level")
	}
	if a.v.IsSet("engine.workers") && a.v.GetInt("engine.workers") > 0 {
		cfg.Engine.Workers = a.v.GetInt("engine.workers")
	}
	if a.v.IsSet("engine.grain_size") && a.v.GetInt("engine.grain_size") > 0 {
		cfg.Engine.GrainSize = a.v.GetInt("engine.grain_size")
	}
	if a.v.IsSet("engine.memory_limit_mb") && a.v.GetInt("engine.memory_limit_mb") > 0 {
		cfg.Engine.MemoryLimitMB = a.v.GetInt("engine.memory_limit_mb")
	}
	if addr := a.v.GetString("metrics.listen_addr"); addr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddr = addr
	}
	if a.v.GetBool("tracing.enabled") {
		cfg.Tracing.Enabled = true
	}
}

// teardown stops what setup started. It runs after failed commands too.
func (a *app) teardown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if a.log != nil {
		a.profile.stop(a.log)
	}
	if a.metrics != nil {
		_ = a.metrics.Shutdown(ctx)
	}
	if err := observability.Shutdown(ctx); err != nil && a.log != nil {
		a.log.Warn("failed to flush traces", zap.Error(err))
	}
	_ = logger.Sync()
	return nil
}
