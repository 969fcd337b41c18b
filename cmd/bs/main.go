// Command bs runs the RequireJS build-instrumenting reverse proxy: it
// sits in front of a single upstream, harvests the loader configuration
// the upstream serves, and exposes a build plan derived from what a real
// browsing session actually requested.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thought-machine/go-flags"

	"github.com/wearejh/bs-proxy/internal/certs"
	"github.com/wearejh/bs-proxy/internal/config"
	"github.com/wearejh/bs-proxy/internal/logging"
	"github.com/wearejh/bs-proxy/internal/planner"
	"github.com/wearejh/bs-proxy/internal/preset"
	"github.com/wearejh/bs-proxy/internal/proxy"
	"github.com/wearejh/bs-proxy/internal/rewrite"
	"github.com/wearejh/bs-proxy/internal/state"
)

type options struct {
	Port   uint16 `long:"port" default:"0" description:"port to listen on (0 = OS-assigned)"`
	Config string `long:"config" description:"path to the program configuration file (YAML or JSON)"`
	Seed   string `long:"seed" description:"path to a seed file to rehydrate state from at startup"`

	Args struct {
		URL string `positional-arg-name:"url" required:"true" description:"the upstream URL to proxy, including scheme"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if err := logging.Init(logging.Config{Level: logging.LevelInfo, Format: "text", Output: "stdout"}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	upstreamURL, err := url.Parse(opts.Args.URL)
	if err != nil || upstreamURL.Host == "" {
		return fmt.Errorf("invalid upstream url %q", opts.Args.URL)
	}

	programConfig, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	m2Opts, bundleConfig, basicAuth, err := resolveM2Options(programConfig)
	if err != nil {
		return fmt.Errorf("resolve preset options: %w", err)
	}

	appState := state.New(programConfig, bundleConfig)
	if opts.Seed != "" {
		seed, err := loadSeed(opts.Seed)
		if err != nil {
			return fmt.Errorf("load seed %q: %w", opts.Seed, err)
		}
		appState.ApplySeed(seed)
	}

	var presets []preset.Preset
	var m2 *preset.M2
	if m2Opts != nil {
		m2 = preset.NewM2(*m2Opts, appState)
		presets = append(presets, m2)
	}

	rewriters := []rewrite.Func{rewrite.RewriteAbsoluteURLs}
	var onBuffered func(string, string, []byte) []byte
	if m2 != nil {
		rewriters = append(rewriters, m2.Rewriters()...)
		onBuffered = m2.Capture
	}

	pipeline := proxy.New(proxy.Config{
		Upstream:  &proxy.Upstream{Scheme: upstreamURL.Scheme, Host: upstreamURL.Host},
		Timeout:   5 * time.Second,
		BasicAuth: basicAuth,
	}, proxy.Hooks{Rewriters: rewriters, OnBufferedBody: onBuffered})

	if m2 != nil {
		m2.SetPipeline(pipeline)
	}

	handler := preset.NewRegistry(pipeline, presets...).Handler()

	material, err := certs.Write()
	if err != nil {
		return fmt.Errorf("write dev certificate: %w", err)
	}
	defer func() {
		if err := material.Remove(); err != nil {
			logging.Warn("failed to remove dev certificate directory", "source", "main", "error", err)
		}
	}()

	cert, err := material.LoadKeyPair()
	if err != nil {
		return fmt.Errorf("load dev certificate: %w", err)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", opts.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	tlsListener := tls.NewListener(listener, &tls.Config{Certificates: []tls.Certificate{cert}})

	httpServer := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(tlsListener)
	}()

	logging.Info("bs-proxy started", "source", "main", "listen", listener.Addr().String(), "upstream", upstreamURL.Host)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
	case <-quit:
		logging.Info("shutting down", "source", "main")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logging.Warn("graceful shutdown error", "source", "main", "error", err)
		}
	}

	return nil
}

// resolveM2Options extracts the one supported preset's options from the
// program config, if present, loading its bundle config file along the
// way. A config with no presets is valid: the process still runs, just
// proxying everything with no build/loader instrumentation endpoints.
func resolveM2Options(cfg config.Config) (*preset.M2Options, planner.BundleConfig, *proxy.BasicAuth, error) {
	for _, p := range cfg.Presets {
		if p.Name != "m2" {
			continue
		}
		bundleConfig, err := planner.LoadBundleConfig(p.Options.BundleConfig)
		if err != nil {
			return nil, planner.BundleConfig{}, nil, err
		}
		bundleConfig.ModuleBlacklist = append(bundleConfig.ModuleBlacklist, p.Options.ModuleBlacklist...)

		var basicAuth *proxy.BasicAuth
		if p.Options.AuthBasic.Username != "" {
			basicAuth = &proxy.BasicAuth{
				Username: p.Options.AuthBasic.Username,
				Password: p.Options.AuthBasic.Password,
			}
		}

		return &preset.M2Options{
			RequirePath:     p.Options.RequirePath,
			RequireConfPath: p.Options.RequireConfPath,
			ShimBody:        preset.InstrumentedLoaderShim,
		}, bundleConfig, basicAuth, nil
	}
	return nil, planner.BundleConfig{}, nil, nil
}
