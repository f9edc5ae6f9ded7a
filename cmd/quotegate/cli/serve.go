package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quotegate/quotegate/internal/market"
	"github.com/quotegate/quotegate/internal/server"
	"github.com/quotegate/quotegate/internal/service"
)

const banner = `
  ___  _   _  ___ _____ ___ ___   _ _____ ___
 / _ \| | | |/ _ \_   _| __/ __| /_\_   _| __|
| (_) | |_| | (_) || | | _| (_ |/ _ \| | | _|
 \__\_\\___/ \___/ |_| |___\___/_/ \_\_| |___|
`

func newServeCmd() *cobra.Command {
	var (
		port   int
		host   string
		policy string
		ttl    time.Duration
		dev    bool
		daemon bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the QuoteGate API server",
		Long:  "Start the HTTP server that verifies credentials and serves market data.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if daemon {
				return runDaemonize()
			}
			return runServe(host, port, policy, ttl, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().StringVar(&policy, "session-policy", "", "session policy: sliding or absolute (default from config)")
	cmd.Flags().DurationVar(&ttl, "session-ttl", 0, "session lifetime (default from policy)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")
	cmd.Flags().BoolVarP(&daemon, "daemon", "d", false, "Run the server in the background")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	viper.BindPFlag("auth.session_policy", cmd.Flags().Lookup("session-policy"))

	return cmd
}

func runServe(host string, port int, policy string, ttl time.Duration, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	// Set up logger
	logLevel := slog.LevelInfo
	if dev || viper.GetString("logging.level") == "debug" {
		logLevel = slog.LevelDebug
	}
	var handler slog.Handler
	if viper.GetString("logging.format") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)

	// 1. Open the credential store
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	logger.Info("credential store ready", "data_dir", resolveDataDir())

	// 2. Build the verifier
	if policy == "" {
		policy = viper.GetString("auth.session_policy")
	}
	sessionPolicy, err := service.ParsePolicy(policy)
	if err != nil {
		return err
	}
	if ttl == 0 {
		if raw := viper.GetString("auth.session_ttl"); raw != "" {
			ttl, _ = time.ParseDuration(raw)
		}
	}
	verifier := service.NewVerifier(st, service.Options{
		Policy:     sessionPolicy,
		SessionTTL: ttl,
		SweepEvery: viper.GetInt("auth.sweep_every"),
	}, logger)
	logger.Info("verifier ready", "policy", verifier.Policy(), "session_ttl", verifier.SessionTTL())

	// 3. Register market providers
	registry := market.NewRegistry()
	registry.Register(market.NewBinance())
	registry.Register(market.NewCoinGecko())
	logger.Info("market registry ready", "markets", len(registry.Markets()))

	// 4. Build and start the HTTP server
	srvCfg := server.DefaultConfig()
	srvCfg.Host = host
	srvCfg.Port = port
	srvCfg.Version = versionString()
	if origins := viper.GetStringSlice("server.cors.origins"); len(origins) > 0 {
		srvCfg.CORSOrigins = origins
	}
	if viper.IsSet("server.rate_limit.requests") {
		srvCfg.RateLimit = viper.GetInt("server.rate_limit.requests")
	}
	if window := viper.GetString("server.rate_limit.window"); window != "" {
		if d, err := time.ParseDuration(window); err == nil {
			srvCfg.RateWindow = d
		}
	}

	srv := server.New(srvCfg, registry, st, verifier, logger)

	if err := writePID(os.Getpid()); err != nil {
		logger.Warn("failed to write PID file", "error", err)
	}
	defer removePID()

	fmt.Printf("→ QuoteGate %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", host, port)
	fmt.Printf("→ OpenAPI:  http://%s:%d/openapi.json\n", host, port)
	fmt.Printf("→ Health:   http://%s:%d/healthz\n", host, port)
	fmt.Printf("→ Session policy: %s (TTL %s)\n", verifier.Policy(), verifier.SessionTTL())
	fmt.Println()

	return srv.ListenAndServe()
}

// runDaemonize re-executes the serve command detached from the terminal,
// redirecting output to the log file in the data directory.
func runDaemonize() error {
	args := make([]string, 0, len(os.Args))
	for _, a := range os.Args[1:] {
		if a == "--daemon" || a == "-d" {
			continue
		}
		args = append(args, a)
	}

	logPath := logFilePath()
	if err := os.MkdirAll(resolveDataDir(), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(os.Args[0], args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start background server: %w", err)
	}

	if err := writePID(cmd.Process.Pid); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}

	fmt.Printf("Server started in background (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  Logs: %s\n", logPath)
	fmt.Println("  Stop with: quotegate stop")
	return nil
}
