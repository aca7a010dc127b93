package sqlgate

import (
	"cmp"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sqlgate/sqlgate/pkg/config"
	mw "github.com/sqlgate/sqlgate/pkg/httputil/middleware"
	"github.com/sqlgate/sqlgate/pkg/metrics"
	"github.com/sqlgate/sqlgate/pkg/pgx"
	"github.com/sqlgate/sqlgate/pkg/rest"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long:  `Starts the HTTP server that translates REST requests into SQL against the configured databases`,
	Run:   runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringP("server.listenAddr", "l", "", "server listen address")
	f.String("server.token", "", "shared bearer token")
	f.String("server.primaryKey", "", "primary key column for single-record routes")
	f.Bool("metrics.enabled", false, "expose Prometheus metrics")
	f.String("metrics.addr", "", "metrics listen address")

	viper.BindPFlags(f)
}

func runServe(cmd *cobra.Command, args []string) {
	if cfg == nil {
		log.Fatal("Configuration not loaded")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// flag / env overrides
	if addr := viper.GetString("server.listenAddr"); addr != "" {
		cfg.Server.ListenAddr = addr
	}
	cfg.Server.Token = cmp.Or(viper.GetString("server.token"), os.Getenv("SQLGATE_TOKEN"), cfg.Server.Token)
	cfg.Server.PrimaryKey = cmp.Or(viper.GetString("server.primaryKey"), cfg.Server.PrimaryKey, "id")

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Connect to the configured databases
	ctx := context.Background()
	registry := pgx.NewRegistry()
	for _, db := range cfg.Server.Databases {
		if err := registry.Add(ctx, pgx.Database{Name: db.Name, ConnString: db.ConnString}); err != nil {
			log.Fatalf("Failed to register database: %v", err)
		}
	}
	defer registry.Close()

	server, err := rest.NewServer(registry,
		rest.WithPrimaryKeyColumn(cfg.Server.PrimaryKey),
		rest.WithLogger(logger),
		rest.WithVersion(config.Version),
	)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	server.AddMiddleware(
		mw.RequestID,
		mw.CORSWithOptions(nil),
		mw.Metrics,
		mw.VerifyBearerToken(&mw.BearerAuthConfig{Token: cfg.Server.Token}),
	)
	if logLevel != "none" {
		server.AddMiddleware(mw.LoggerWithOptions(&mw.LoggerOptions{Logger: logger}))
	}

	metricsCtx, cancelMetrics := context.WithCancel(ctx)
	defer cancelMetrics()
	var wg sync.WaitGroup
	if cfg.Metrics.Enabled || viper.GetBool("metrics.enabled") {
		metrics.StartPrometheusServer(metricsCtx, &wg, &metrics.PromServerOpts{
			Addr: cfg.Metrics.Addr,
		})
	}

	// Handle graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(cfg.Server.ListenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	cancelMetrics()
	wg.Wait()

	log.Println("Server gracefully stopped")
}
