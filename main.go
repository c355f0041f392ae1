package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chxlky/event-calendar/api"
	"github.com/chxlky/event-calendar/database"
	"github.com/chxlky/event-calendar/integrations"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	app := &App{}
	if err := SetupCommands(app).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// serve runs the HTTP service until SIGINT or SIGTERM.
func (a *App) serve() error {
	cfg := a.cfg

	db := database.Init(cfg.Database.Path)
	sqlDB, _ := db.DB()
	events := database.NewEventRepository(db)

	var syncer api.EventSyncer
	if cfg.Google.Enabled {
		calClient, err := integrations.NewCalendarClient(context.Background(), cfg.Google, cfg.Location())
		if err != nil {
			zap.L().Fatal("Failed to initialise Google Calendar client", zap.Error(err))
		}
		zap.L().Info("Successfully authenticated with Google Calendar API.", zap.String("calendarID", cfg.Google.CalendarID))
		syncer = calClient
	}

	var notifier api.ChangeNotifier
	if len(cfg.Webhooks.URLs) > 0 {
		notifier = integrations.NewWebhookNotifier(cfg.Webhooks.URLs, cfg.Webhooks.Attempts)
		zap.L().Info("Change notifications enabled", zap.Strings("urls", cfg.Webhooks.URLs))
	}

	if !a.logger.Core().Enabled(zap.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}

	apiHandler := api.NewHandler(cfg, events, syncer, notifier)
	router := api.NewRouter(apiHandler, a.logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	zap.L().Info("Starting server", zap.String("port", cfg.Server.Port), zap.String("prefix", cfg.Calendar.RoutePrefix))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once

	cleanup := func(reason string) {
		zap.L().Info("Shutdown initiated", zap.String("reason", reason))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		zap.L().Info("Shutting down HTTP server...")
		if err := srv.Shutdown(ctx); err != nil {
			zap.L().Error("Error shutting down server", zap.Error(err))
		} else {
			zap.L().Info("HTTP server shut down gracefully.")
		}

		zap.L().Info("Waiting for background jobs...")
		apiHandler.Wait()

		if sqlDB != nil {
			if err := sqlDB.Close(); err != nil {
				zap.L().Error("Error closing database", zap.Error(err))
			} else {
				zap.L().Info("Database connection closed.")
			}
		}
		close(done)
	}

	go func() {
		sig := <-sigCh
		once.Do(func() {
			cleanup(sig.String())
		})

		// if a second signal is caught, exit immediately
		go func() {
			<-sigCh
			zap.L().Info("Second interrupt signal received. Exiting immediately.")
			os.Exit(1)
		}()
	}()

	<-done
	zap.L().Info("Exiting...")
	return nil
}
