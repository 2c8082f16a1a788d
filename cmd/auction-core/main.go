package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-core/internal/api/handlers"
	apimiddleware "auction-core/internal/api/middleware"
	"auction-core/internal/config"
	"auction-core/internal/infrastructure/leader"
	"auction-core/internal/infrastructure/mysql"
	"auction-core/internal/infrastructure/redis"
	ws "auction-core/internal/infrastructure/websocket"
	"auction-core/internal/services"
	"auction-core/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (defaults and env vars otherwise)")
	flag.Parse()

	log := logger.New()
	log.Info("Starting auction core")

	// Load configuration
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	log.Info("Configuration loaded", "config", cfg.String())

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	// Test MySQL connection
	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Initialize repositories
	auctionRepo := mysql.NewMySQLAuctionRepository(db)
	bidRepo := mysql.NewMySQLBidRepository(db)
	userRepo := mysql.NewMySQLUserRepository(db)

	// Initialize Redis based components
	stateCache := redis.NewRedisStateCache(rdb)
	eventPublisher := redis.NewRedisEventPublisher(rdb)
	eventSubscriber := redis.NewRedisEventSubscriber(rdb, log)
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	// Initialize the subscription hub and the ledger's event fan-out
	hub := ws.NewHub(log)
	fanout := services.NewEventFanout(log, ws.NewNotifier(hub), eventPublisher)

	// Initialize core services
	ledger := services.NewLedger(auctionRepo, bidRepo, userRepo, stateCache,
		fanout, cfg.Instance.ID, log)
	registry := services.NewRegistry(auctionRepo, bidRepo, userRepo, stateCache, log)
	sweeper := services.NewSweeper(ledger, auctionRepo, leaderElection,
		cfg.Instance.ID, cfg.Sweep.Interval, log)
	relay := services.NewRelayListener(hub, cfg.Instance.ID, log)

	// Initialize Echo for the REST API
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.HEAD, echo.PUT, echo.PATCH,
			echo.POST, echo.DELETE, echo.OPTIONS,
		},
	}))

	handlers.RegisterRoutes(e,
		handlers.NewBidHandler(ledger, log),
		handlers.NewAuctionHandler(registry, ledger, stateCache, log),
		handlers.NewUserHandler(registry, log),
	)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-core",
			"timestamp": time.Now().Format(time.RFC3339),
			"instance":  cfg.Instance.ID,
		})
	})

	// Watch endpoint on its own listener
	watchHandler := ws.NewWatchHandler(ledger, hub, cfg.Hub, log)

	router := mux.NewRouter()
	router.Use(apimiddleware.CORS)
	router.HandleFunc("/ws/auction/{auctionID}", watchHandler.HandleWatch)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	watchServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.WatchPort),
		Handler: router,
	}

	// Start background services
	relayCtx, relayCancel := context.WithCancel(context.Background())
	defer relayCancel()

	go func() {
		if err := sweeper.Start(relayCtx); err != nil {
			log.Error("Failed to start sweeper", "error", err)
		}
	}()

	go func() {
		if err := relay.Start(relayCtx, eventSubscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Relay listener stopped", "error", err)
		}
	}()

	// Try to become leader
	go func() {
		for {
			became, err := leaderElection.BecomeLeader(context.Background(), cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became sweep leader", "instance_id", cfg.Instance.ID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	// Start servers
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.APIPort)
		log.Info("Starting API server", "address", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("API server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		log.Info("Starting watch server", "address", watchServer.Addr)
		if err := watchServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Watch server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction core...")

	// Graceful shutdown
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	relayCancel()

	if err := sweeper.Stop(); err != nil {
		log.Error("Failed to stop sweeper", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(ctx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}

	if err := watchServer.Shutdown(ctx); err != nil {
		log.Error("Watch server forced to shutdown", "error", err)
	}
	hub.Shutdown()

	if err := e.Shutdown(ctx); err != nil {
		log.Error("API server forced to shutdown", "error", err)
	}

	log.Info("Auction core stopped")
}
