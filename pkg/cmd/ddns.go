package ddns

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/larivierec/ddns-reconciler/pkg/cloudprovider"
	"github.com/larivierec/ddns-reconciler/pkg/cloudprovider/cloudflare"
	"github.com/larivierec/ddns-reconciler/pkg/cloudprovider/route53"
	"github.com/larivierec/ddns-reconciler/pkg/config"
	"github.com/larivierec/ddns-reconciler/pkg/ipprovider"
	"github.com/larivierec/ddns-reconciler/pkg/metrics"
	"github.com/larivierec/ddns-reconciler/pkg/reconcile"
)

const shutdownTimeout = 5 * time.Second

type flags struct {
	configPath string
	domains    string
	verbosity  int
	cfg        config.Config
}

func newFlagSet(f *flags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("ddns", pflag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "path to an optional yaml config file. defaults to $"+config.EnvConfigPath+".")
	fs.StringVar(&f.domains, "domains", "", "colon separated list of zones to reconcile. overrides $"+config.EnvDomainList+".")
	fs.StringVar(&f.cfg.CloudProvider, "cloud-provider", "cloudflare", "set this to the requested cloud provider. where your `A` records live (cloudflare, route53).")
	fs.StringVar(&f.cfg.IPProvider, "provider", "ipify", "set this to the ip provider that will be queried for your public ip address (ipify, icanhazip, random).")
	fs.StringVar(&f.cfg.IPURL, "ip-url", "", "query this echo service instead of the ip provider's default endpoint.")
	fs.StringVar(&f.cfg.BaseURL, "api-url", cloudflare.DefaultBaseURL, "cloudflare api base url.")
	fs.StringVar(&f.cfg.AWSRegion, "aws-region", "", "region used to sign route53 requests.")
	fs.DurationVar(&f.cfg.Timeout, "timeout", 30*time.Second, "timeout applied to every outbound http call.")
	fs.DurationVar(&f.cfg.Ticker, "ticker", 0, "when set, keep running and reconcile at this interval. zero runs once.")
	fs.StringVar(&f.cfg.MetricsAddr, "metrics-addr", ":8080", "address of the health and metrics server when running with --ticker.")
	fs.BoolVar(&f.cfg.FailFast, "fail-fast", false, "stop at the first domain that fails instead of moving on.")
	fs.BoolVar(&f.cfg.VerifyToken, "verify-token", false, "verify the cloudflare api token before reconciling.")
	fs.IntVarP(&f.verbosity, "verbosity", "v", 0, "log verbosity. 1 logs every api call.")
	return fs
}

// Start runs the reconciler with the process arguments and environment and exits non-zero on failure.
func Start() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Execute(ctx, os.Args[1:], os.LookupEnv, os.Stderr); err != nil {
		stop()
		os.Exit(1)
	}
}

// Execute parses args, builds every component and reconciles once, or
// periodically when --ticker is set. Errors are logged before being returned.
func Execute(ctx context.Context, args []string, lookupEnv func(string) (string, bool), stderr io.Writer) error {
	var f flags
	fs := newFlagSet(&f)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	stdr.SetVerbosity(f.verbosity)
	logger := stdr.New(log.New(stderr, "", log.LstdFlags))

	cfg, err := resolveConfig(fs, &f, lookupEnv)
	if err != nil {
		logger.Error(err, "invalid configuration")
		return err
	}

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error(err, "ddns run failed")
		return err
	}
	return nil
}

// resolveConfig layers defaults, the config file, the environment and explicitly set flags.
func resolveConfig(fs *pflag.FlagSet, f *flags, lookupEnv func(string) (string, bool)) (config.Config, error) {
	path := f.configPath
	if path == "" {
		path, _ = lookupEnv(config.EnvConfigPath)
	}

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv(lookupEnv)

	if fs.Changed("domains") {
		cfg.Domains = config.ParseDomainList(f.domains)
	}
	if fs.Changed("cloud-provider") {
		cfg.CloudProvider = f.cfg.CloudProvider
	}
	if fs.Changed("provider") {
		cfg.IPProvider = f.cfg.IPProvider
	}
	if fs.Changed("ip-url") {
		cfg.IPURL = f.cfg.IPURL
	}
	if fs.Changed("api-url") {
		cfg.BaseURL = f.cfg.BaseURL
	}
	if fs.Changed("aws-region") {
		cfg.AWSRegion = f.cfg.AWSRegion
	}
	if fs.Changed("timeout") {
		cfg.Timeout = f.cfg.Timeout
	}
	if fs.Changed("ticker") {
		cfg.Ticker = f.cfg.Ticker
	}
	if fs.Changed("metrics-addr") {
		cfg.MetricsAddr = f.cfg.MetricsAddr
	}
	if fs.Changed("fail-fast") {
		cfg.FailFast = f.cfg.FailFast
	}
	if fs.Changed("verify-token") {
		cfg.VerifyToken = f.cfg.VerifyToken
	}

	return cfg, cfg.Validate()
}

func run(ctx context.Context, logger logr.Logger, cfg config.Config) error {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	ipProvider, err := ipprovider.New(cfg.IPProvider, cfg.IPURL, httpClient)
	if err != nil {
		return &config.ConfigError{Field: "provider", Reason: err.Error()}
	}

	cloudProvider, err := createCloudProvider(ctx, logger, cfg, httpClient)
	if err != nil {
		return err
	}

	reconciler := reconcile.New(logger.WithName("reconcile"), ipProvider, cloudProvider, reconcile.Options{FailFast: cfg.FailFast})

	if cfg.Ticker == 0 {
		_, err := reconciler.Run(ctx, cfg.Domains)
		metrics.IncrementRun(err)
		return err
	}
	return daemon(ctx, logger, cfg, reconciler)
}

func createCloudProvider(ctx context.Context, logger logr.Logger, cfg config.Config, httpClient *http.Client) (cloudprovider.Provider, error) {
	switch cfg.CloudProvider {
	case config.CloudProviderRoute53:
		return route53.NewRoute53Provider(ctx, logger.WithName("route53"), route53.Configuration{
			Region:     cfg.AWSRegion,
			HTTPClient: httpClient,
		})
	default:
		cf, err := cloudflare.NewCloudflareProvider(logger.WithName("cloudflare"), cloudflare.Configuration{
			Token:      cfg.Token,
			BaseURL:    cfg.BaseURL,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}
		if cfg.VerifyToken {
			if err := cf.VerifyToken(ctx); err != nil {
				return nil, &config.ConfigError{Field: config.EnvToken, Reason: err.Error()}
			}
		}
		return cf, nil
	}
}

// daemon reconciles immediately and then on every tick until ctx is done,
// serving health and metrics endpoints meanwhile.
func daemon(ctx context.Context, logger logr.Logger, cfg config.Config, reconciler *reconcile.Reconciler) error {
	metrics.InitMetrics()

	var ready atomic.Bool
	healthServer := newHealthServer(cfg.MetricsAddr, &ready)

	serverErr := make(chan error, 1)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("listen health server: %w", err)
		}
	}()
	logger.Info("server started", "addr", cfg.MetricsAddr, "ticker", cfg.Ticker.String())

	tick := func() {
		_, err := reconciler.Run(ctx, cfg.Domains)
		metrics.IncrementRun(err)
		if err != nil {
			logger.Error(err, "reconcile pass failed")
			return
		}
		ready.Store(true)
	}

	tick()
	ticker := time.NewTicker(cfg.Ticker)
	defer ticker.Stop()

	var runErr error
loop:
	for {
		select {
		case <-ticker.C:
			tick()
		case err := <-serverErr:
			runErr = err
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health server unable to shutdown: %w", err)
	}
	logger.Info("servers stopped gracefully")
	return runErr
}

func newHealthServer(addr string, ready *atomic.Bool) *http.Server {
	router := http.NewServeMux()
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/health/alive", func(w http.ResponseWriter, r *http.Request) {
		metrics.IncrementReqs(r)
		w.WriteHeader(http.StatusOK)
	})
	router.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		metrics.IncrementReqs(r)
		if !ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{Addr: addr, Handler: router}
}
