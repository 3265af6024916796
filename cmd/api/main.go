package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"database/sql"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/streamlend/lending-service/internal/config"
	"github.com/streamlend/lending-service/internal/handler"
	"github.com/streamlend/lending-service/internal/integrations/ledger"
	"github.com/streamlend/lending-service/internal/integrations/rates"
	"github.com/streamlend/lending-service/internal/middleware"
	"github.com/streamlend/lending-service/internal/repository"
	"github.com/streamlend/lending-service/internal/service"
	"github.com/streamlend/lending-service/internal/utils/email"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	ledgerClient := ledger.NewClient(cfg, logger)

	var rateSource service.RateSource
	if rc := rates.NewClient(cfg, logger); rc != nil {
		rateSource = rc
	}
	var notifier service.Notifier
	if sender := email.NewSender(cfg, logger); sender != nil {
		notifier = sender
	}

	authority, err := service.NewAuthority(cfg, repo, ledgerClient, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize authority: %v", err)
	}
	tokens := service.NewTokenManager(authority, repo, ledgerClient, logger)
	transfer := service.NewTransfer(authority, repo, ledgerClient, logger)
	lend := service.NewLend(authority, tokens, transfer, repo, ledgerClient, rateSource, notifier, logger)

	ctx := context.Background()
	if _, err := authority.Setup(ctx); err != nil {
		logger.Fatalf("Failed to set up authority: %v", err)
	}

	// Keep the authority wallet topped up for transaction fees
	c := cron.New()
	if _, err := c.AddFunc(cfg.FundingSchedule, func() {
		if err := authority.EnsureFunded(context.Background()); err != nil {
			logger.Errorf("Authority funding check failed: %v", err)
		}
	}); err != nil {
		logger.Fatalf("Failed to schedule funding job: %v", err)
	}
	c.Start()
	defer c.Stop()

	h := handler.NewHandler(lend, tokens, authority.PublicKey(), cfg, logger)

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/", h.Welcome).Methods("GET")
	r.HandleFunc("/auth/login", h.Login).Methods("POST")
	r.HandleFunc("/lend/request-loan", h.RequestLoan).Methods("POST")
	r.HandleFunc("/lend/get-outstanding-loans", h.GetOutstandingLoans).Methods("GET")
	r.HandleFunc("/lend/get-all-outstanding-loans", h.GetAllOutstandingLoans).Methods("GET")
	// Protected routes
	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminRouter.Use(middleware.AuthMiddleware(cfg))
	adminRouter.HandleFunc("/setup-token", h.SetupToken).Methods("POST")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
