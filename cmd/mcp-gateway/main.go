// main wires up the MCP multi-tenant aggregation gateway: a controller-
// runtime manager reconciling Connection/VirtualMCP CRDs into an in-process
// registry, and an HTTP front door serving the aggregated MCP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	mcpv1alpha1 "github.com/meshgate/mcp-gateway/pkg/apis/mcp/v1alpha1"
	"github.com/meshgate/mcp-gateway/pkg/controller"

	"github.com/meshgate/mcp-gateway/internal/authz"
	appconfig "github.com/meshgate/mcp-gateway/internal/config"
	"github.com/meshgate/mcp-gateway/internal/gateway"
	"github.com/meshgate/mcp-gateway/internal/registry"
	"github.com/meshgate/mcp-gateway/internal/session"
	"github.com/meshgate/mcp-gateway/internal/telemetry"
)

var scheme = runtime.NewScheme()

func init() {
	_ = clientgoscheme.AddToScheme(scheme)
	_ = mcpv1alpha1.AddToScheme(scheme)
}

func main() {
	var (
		configFile     string
		logFormat      string
		sessionMinutes int64
	)
	flag.StringVar(&configFile, "config", "", "optional config file (MCP_GATEWAY_* env vars take precedence over it)")
	flag.StringVar(&logFormat, "log-format", "", "override MCP_GATEWAY_LOG_FORMAT")
	flag.Int64Var(&sessionMinutes, "session-minutes", 0, "mcp session id lifetime in minutes (0 = 24h default)")
	flag.Parse()

	cfg, err := appconfig.Load(configFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	logger := newLogger(cfg)
	ctrl.SetLogger(zap.New(zap.UseDevMode(true)))

	reg := registry.NewInMemory()

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsserver.Options{BindAddress: cfg.MetricsAddr},
		HealthProbeBindAddress: cfg.HealthAddr,
		LeaderElection:         false,
	})
	if err != nil {
		log.Fatalf("unable to start manager: %v", err)
	}
	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		log.Fatalf("unable to register healthz: %v", err)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		log.Fatalf("unable to register readyz: %v", err)
	}

	if err := (&controller.ConnectionReconciler{Client: mgr.GetClient(), Scheme: mgr.GetScheme(), Registry: reg}).SetupWithManager(mgr); err != nil {
		log.Fatalf("unable to create connection controller: %v", err)
	}
	if err := (&controller.VirtualMCPReconciler{Client: mgr.GetClient(), Scheme: mgr.GetScheme(), Registry: reg}).SetupWithManager(mgr); err != nil {
		log.Fatalf("unable to create virtual-mcp controller: %v", err)
	}

	sessionCache, err := session.NewCache(context.Background(), sessionCacheOption(cfg), session.WithNamespace(cfg.MeshURL))
	if err != nil {
		log.Fatalf("unable to start session cache: %v", err)
	}
	sessionManager, err := session.NewJWTManager(cfg.DelegationSigningKey, sessionMinutes, cfg.MeshURL, logger, sessionCache)
	if err != nil {
		log.Fatalf("unable to start session manager: %v", err)
	}

	promReg := prometheus.NewRegistry()
	deps := gateway.Dependencies{
		Registry:             reg,
		Permissions:          authz.AllowAll{},
		Tracer:               telemetry.NoopTracer{},
		Meter:                telemetry.NewPromMeter(promReg),
		Audit:                telemetry.NewSlogAuditSink(logger),
		Logger:               logger,
		DelegationSigningKey: cfg.DelegationSigningKey,
		MeshURL:              cfg.MeshURL,
		SessionManager:       sessionManager,
	}
	handler := gateway.New(deps)
	statusHandler := gateway.NewStatusHandler(reg, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "MCP gateway: aggregated MCP surface on /mcp/virtual-mcp/, /mcp/mesh/, /mcp/")
	})
	mux.Handle("/.well-known/oauth-protected-resource", gateway.NewProtectedResourceHandler(logger, "/mcp"))
	mux.Handle("GET /status/{org_slug}", statusHandler)
	mux.Handle("GET /status/{org_slug}/{connection_id}", statusHandler)
	mux.HandleFunc("POST /mcp/virtual-mcp/{virtual_mcp_id}", func(w http.ResponseWriter, r *http.Request) {
		handler.ServeVirtualMCP(w, r, r.PathValue("virtual_mcp_id"))
	})
	mux.HandleFunc("POST /mcp/gateway/{virtual_mcp_id}", func(w http.ResponseWriter, r *http.Request) {
		handler.ServeVirtualMCP(w, r, r.PathValue("virtual_mcp_id"))
	})
	mux.HandleFunc("POST /mcp/virtual-mcp", func(w http.ResponseWriter, r *http.Request) {
		handler.ServeVirtualMCP(w, r, "")
	})
	mux.HandleFunc("POST /mcp/mesh/{org_slug}", func(w http.ResponseWriter, r *http.Request) {
		handler.ServeMesh(w, r, r.PathValue("org_slug"))
	})
	mux.HandleFunc("POST /mcp/{connection_id}", func(w http.ResponseWriter, r *http.Request) {
		handler.ServeConnection(w, r, r.PathValue("connection_id"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // streamable HTTP keeps connections open for server-initiated notifications
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Info("starting controller manager", "metrics_addr", cfg.MetricsAddr, "health_addr", cfg.HealthAddr)
		if err := mgr.Start(ctx); err != nil {
			log.Fatalf("manager exited: %v", err)
		}
	}()

	go func() {
		logger.Info("starting http front door", "listen_addr", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http front door exited: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	logger.Info("shutting down mcp gateway")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	cancel()
}

func newLogger(cfg *appconfig.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.Level(cfg.LogLevel)}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func sessionCacheOption(cfg *appconfig.Config) func(*session.Cache) {
	if cfg.RedisURL == "" {
		return func(*session.Cache) {}
	}
	return session.WithConnectionString(cfg.RedisURL)
}
