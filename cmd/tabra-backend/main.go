// Command tabra-backend runs the gift card inventory and redemption
// API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/tabra-pos/tabra-backend/internal/config"
	"github.com/tabra-pos/tabra-backend/internal/db"
	relayhttp "github.com/tabra-pos/tabra-backend/internal/http"
	"github.com/tabra-pos/tabra-backend/internal/http/api/admin"
	"github.com/tabra-pos/tabra-backend/internal/http/api/filial"
	"github.com/tabra-pos/tabra-backend/internal/logging"
	"github.com/tabra-pos/tabra-backend/internal/security"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of the given password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, errHash := security.HashPassword(*hashPassword)
		if errHash != nil {
			fmt.Fprintf(os.Stderr, "hash password: %v\n", errHash)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	if errRun := run(config.ResolveConfigPath(*configPath)); errRun != nil {
		log.WithError(errRun).Fatal("server exited")
	}
}

func run(configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Log)

	conn, errOpen := db.Open(cfg.DB.DSN)
	if errOpen != nil {
		return fmt.Errorf("open database: %w", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return fmt.Errorf("migrate database: %w", errMigrate)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(relayhttp.RequestLogMiddleware())
	engine.Use(relayhttp.CORSMiddleware(cfg.Server.AllowedOrigins))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	admin.RegisterAdminRoutes(engine, conn, cfg)
	filial.RegisterFilialRoutes(engine, conn, cfg)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("server listening")
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case errServe := <-errCh:
		return errServe
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("shutdown: %w", errShutdown)
	}
	return nil
}
