package cmd

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/furisto/seyal/backend/analytics"
	"github.com/furisto/seyal/backend/api"
	"github.com/furisto/seyal/backend/event"
	"github.com/furisto/seyal/frontend/cli/pkg/fail"
	"github.com/furisto/seyal/frontend/cli/pkg/terminal"
	"github.com/furisto/seyal/shared/config"
	"github.com/furisto/seyal/shared/listener"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serveOptions struct {
	HTTPAddress   string
	UnixSocket    string
	Store         string
	SecureCookies bool
	Debug         bool
}

func NewServeCmd() *cobra.Command {
	options := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the SEYAL web interface",
		Long: `Serve the three-tab web interface (plan, action, reflect) and its JSON API.
Every browser gets its own session through a cookie.

The listener is chosen in this order:
  - the address given with --listen-http
  - the socket given with --listen-unix
  - a socket passed in by systemd socket activation
  - the http_address from the config file`,
		GroupID: "system",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := getConfig(ctx)

			store := cfg.Store
			if options.Store != "" {
				store = config.StoreKind(options.Store)
			}

			address := options.HTTPAddress
			if address == "" && options.UnixSocket == "" && !listener.IsSystemdSocketActivation() {
				address = cfg.HTTPAddress
			}

			provider, err := listener.DetectProvider(address, options.UnixSocket)
			if err != nil {
				return fmt.Errorf("failed to detect listener provider: %w", err)
			}

			ln, err := provider.Create()
			if err != nil {
				return fail.EnhanceError(fmt.Errorf("failed to create listener: %w", err), map[string]interface{}{"path": options.UnixSocket})
			}
			defer provider.Close()

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			bus := event.NewBus(event.WithMetrics(registry))
			defer bus.Close()

			tracker, err := analytics.NewClient(cfg.Analytics.PostHogKey, cfg.Analytics.PostHogEndpoint)
			if err != nil {
				return err
			}
			stopTracking := analytics.Subscribe(bus, tracker)
			defer stopTracking()

			runtime, closeRuntime, err := openRuntime(ctx, runtimeSetup{Store: store, Bus: bus, Metrics: registry})
			if err != nil {
				return err
			}
			defer closeRuntime()

			server, err := api.NewServer(runtime,
				api.WithBus(bus),
				api.WithEventRouter(event.NewEventRouter(0)),
				api.WithGatherer(registry),
				api.WithSecureCookies(options.SecureCookies),
				api.WithDebug(options.Debug),
			)
			if err != nil {
				return err
			}
			defer server.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "%s SEYAL is listening on %s (%s, %s store)\n",
				terminal.ActionSymbol, displayAddress(ln), provider.ActivationType(), store)
			if !listener.IsLoopback(ln.Addr()) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s The web interface is reachable from other machines\n", terminal.WarningSymbol)
				slog.Warn("listening on a non-loopback address", "address", ln.Addr().String())
			}
			slog.Info("serving web interface", "address", ln.Addr().String(), "store", store, "provider", cfg.Provider)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.Serve(gctx, ln)
			})
			g.Go(func() error {
				<-gctx.Done()
				return tracker.Close()
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&options.HTTPAddress, "listen-http", "", "address to listen on for HTTP requests")
	cmd.Flags().StringVar(&options.UnixSocket, "listen-unix", "", "path of a Unix socket to listen on")
	cmd.Flags().StringVar(&options.Store, "store", "", "session store (memory or sqlite, default from config)")
	cmd.Flags().BoolVar(&options.SecureCookies, "secure-cookies", false, "only send the session cookie over HTTPS")
	cmd.Flags().BoolVar(&options.Debug, "debug", false, "run gin in debug mode")

	return cmd
}

func displayAddress(ln net.Listener) string {
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		return "http://" + tcp.String()
	}
	return ln.Addr().Network() + ":" + ln.Addr().String()
}
