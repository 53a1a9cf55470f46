package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"calagent/internal/analytics"
	"calagent/internal/handlers"
	"calagent/internal/logger"
	"calagent/internal/metrics"
	"calagent/internal/repository"
	"calagent/internal/repository/db"
	"calagent/internal/server"
	"calagent/internal/service"
)

// @title           CalAgent API
// @version         1.0
// @description     Calendar subscriptions pushed by agents, served as iCalendar feeds.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// load config.yml first so the log level comes from it
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(viper.GetString("log.level"))

	// open DB
	sqlDB, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Fatalw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	sink := metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
	notifier := newNotifier(log)

	services := service.NewService(repos, service.Config{
		SigningKey: viper.GetString("auth.signing_key"),
		TokenTTL:   viper.GetDuration("auth.token_ttl"),
		BaseURL:    viper.GetString("feed.base_url"),
	}, notifier, sink)

	apiHandler := handlers.NewHandler(services, log, newAnalyticsSink(log))

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start the retention sweeper
	sweeper := service.NewSweeperService(
		repos.Events,
		repos.SyncRuns,
		viper.GetString("retention.schedule"),
		viper.GetInt("retention.days"),
		log,
		sink,
	)
	go sweeper.Run(ctx)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "calagent.db")
		dbPath = "calagent.db"
	}
	return db.InitDB(dbPath)
}

// newNotifier builds the Telegram notifier when credentials are configured.
func newNotifier(log *logger.Logger) service.Notifier {
	token := viper.GetString("telegram.bot_token")
	chatID := viper.GetString("telegram.chat_id")
	if token == "" || chatID == "" {
		log.Infow("telegram not configured; sync notifications disabled")
		return service.NopNotifier{}
	}
	return service.NewTelegramNotifier(token, chatID, log)
}

// newAnalyticsSink connects to Redis for feed fetch counters when configured.
func newAnalyticsSink(log *logger.Logger) analytics.Sink {
	addr := viper.GetString("redis.addr")
	if addr == "" {
		return analytics.NopSink{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})
	return analytics.NewRedisSink(client, log)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
