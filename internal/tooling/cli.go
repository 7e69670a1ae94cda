// CLASSIFICATION: COMMUNITY
// Filename: cli.go v0.3
// Date Modified: 2026-10-16
// Author: Lukas Bower
//
// ─────────────────────────────────────────────────────────────
// servedir · Command line
//
// The root command carries the `serve`, `config`, `health` and
// `version` sub‑commands. Settings are layered: YAML file, then
// dotenv file and SERVEDIR_* environment, then explicit flags.
//
// Example:
//
//   package main
//
//   import "servedir/internal/tooling"
//
//   func main() { tooling.Execute(ctx) }
// ─────────────────────────────────────────────────────────────
package tooling

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gopkg.in/yaml.v3"

	"servedir/internal/config"
	"servedir/internal/health"
	orch "servedir/internal/http"
)

// Version is reported by the version sub‑command.
var Version = "v0.1.0"

type serveOptions struct {
	configPath   string
	envFile      string
	listen       string
	healthListen string
	mounts       []string
	accessLog    string
	rps          float64
	burst        int
	compress     bool
	watch        bool
	debug        bool
}

// NewCommand builds the root command writing to out.
func NewCommand(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "servedir",
		Short: "Serve directories over HTTP",
		Long: `servedir exposes one or more directories under URL prefixes.

Files outside a mounted root are never served, whatever the
request path or the symlinks below the root.`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.AddCommand(newServeCommand(), newConfigCommand(), newHealthCommand(), newVersionCommand())
	return root
}

// Execute runs the CLI until ctx is done.  Typically called from main().
func Execute(ctx context.Context) {
	if err := NewCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command, o *serveOptions) {
	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "YAML configuration file")
	f.StringVar(&o.envFile, "env-file", "", "dotenv file exporting SERVEDIR_* variables")
	f.StringVar(&o.listen, "listen", "", "HTTP listen address")
	f.StringVar(&o.healthListen, "health-listen", "", "gRPC health listen address")
	f.StringArrayVarP(&o.mounts, "mount", "m", nil, "mount as prefix=root (repeatable)")
	f.StringVar(&o.accessLog, "access-log", "", "access log file")
	f.Float64Var(&o.rps, "rps", 0, "requests per second per client on mounts (0 disables)")
	f.IntVar(&o.burst, "burst", 0, "rate limit burst")
	f.BoolVar(&o.compress, "compress", false, "gzip compressible responses")
	f.BoolVar(&o.watch, "watch", false, "watch mount roots and report their health")
}

// resolveConfig layers the configuration sources and validates the result.
func resolveConfig(cmd *cobra.Command, o *serveOptions, logger config.Logger) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if o.envFile != "" {
		if err := config.LoadEnvFile(o.envFile); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}

	f := cmd.Flags()
	if f.Changed("listen") {
		cfg.Listen = o.listen
	}
	if f.Changed("health-listen") {
		cfg.HealthListen = o.healthListen
	}
	if f.Changed("mount") {
		mounts, err := config.ParseMounts(o.mounts)
		if err != nil {
			return cfg, err
		}
		cfg.Mounts = mounts
	}
	if f.Changed("access-log") {
		cfg.AccessLog = o.accessLog
	}
	if f.Changed("rps") {
		cfg.RateLimit.RPS = o.rps
	}
	if f.Changed("burst") {
		cfg.RateLimit.Burst = o.burst
	}
	if f.Changed("compress") {
		cfg.Compress = o.compress
	}
	if f.Changed("watch") {
		cfg.Watch = o.watch
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if err := cfg.CanonicalizeRoots(logger); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newServeCommand() *cobra.Command {
	o := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured mounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.debug {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			}
			logger := log.Default()
			cfg, err := resolveConfig(cmd, o, logger)
			if err != nil {
				return err
			}
			srv, err := orch.New(orch.Config{
				Listen:          cfg.Listen,
				HealthListen:    cfg.HealthListen,
				Mounts:          cfg.Mounts,
				AccessLog:       cfg.AccessLog,
				RateLimit:       rate.Limit(cfg.RateLimit.RPS),
				RateBurst:       cfg.RateLimit.Burst,
				Compress:        cfg.Compress,
				Watch:           cfg.Watch,
				ShutdownTimeout: cfg.ShutdownTimeout,
				Logger:          logger,
			})
			if err != nil {
				return err
			}
			return srv.Start(cmd.Context())
		},
	}
	addConfigFlags(cmd, o)
	cmd.Flags().BoolVar(&o.debug, "debug", false, "log source file and line")
	return cmd
}

func newConfigCommand() *cobra.Command {
	o := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, o, log.New(cmd.ErrOrStderr(), "", 0))
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
	addConfigFlags(cmd, o)
	return cmd
}

func newHealthCommand() *cobra.Command {
	var (
		addr    string
		service string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the gRPC health service of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := health.Check(cmd.Context(), addr, service, timeout)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), health.Format(resp))
			if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("service %q is %s", service, resp.GetStatus())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8081", "health service address")
	cmd.Flags().StringVar(&service, "service", health.Overall, "mount prefix to check; empty for the whole server")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print servedir version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "servedir %s\n", Version)
		},
	}
}
