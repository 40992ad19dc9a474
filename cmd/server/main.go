package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/finflow/invoice-sentinel/internal/anomaly"
	"github.com/finflow/invoice-sentinel/internal/config"
	"github.com/finflow/invoice-sentinel/internal/document"
	"github.com/finflow/invoice-sentinel/internal/erpnext"
	"github.com/finflow/invoice-sentinel/internal/extractor"
	httpserver "github.com/finflow/invoice-sentinel/internal/interfaces/http"
	"github.com/finflow/invoice-sentinel/internal/repository"
	"github.com/finflow/invoice-sentinel/internal/service"
	"github.com/finflow/invoice-sentinel/pkg/database"
	"github.com/finflow/invoice-sentinel/pkg/utils"
)

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting invoice sentinel",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal("Failed to create data directory", zap.Error(err))
		}
	}

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)

	renderer := document.NewFitzRenderer(logger)
	fieldExtractor := extractor.New(renderer, extractor.Config{
		PlaceholderVendor: cfg.Extractor.PlaceholderVendor,
		DefaultCurrency:   cfg.Extractor.DefaultCurrency,
		MinTextLength:     cfg.Extractor.MinTextLength,
	}, logger)
	engine := anomaly.NewEngine()

	var forwarder service.Forwarder
	if cfg.ERPNext.BaseURL != "" {
		forwarder = erpnext.NewClient(erpnext.Config{
			BaseURL:   cfg.ERPNext.BaseURL,
			APIKey:    cfg.ERPNext.APIKey,
			APISecret: cfg.ERPNext.APISecret,
			Timeout:   cfg.ERPNext.Timeout,
		}, logger)
		logger.Info("ERPNext forwarding enabled", zap.String("base_url", cfg.ERPNext.BaseURL))
	} else {
		logger.Info("ERPNext forwarding disabled")
	}

	invoiceService := service.NewInvoiceService(fieldExtractor, engine, invoiceRepo, forwarder, logger)

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, invoiceService, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case sig := <-quit:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
