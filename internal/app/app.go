package app

import (
	"context"
	"errors"
	"net/http"

	"gitlab.com/nevasik7/alerting/logger"
)

type HTTPServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// EventConsumer is the ingest loop feeding the aggregation engine.
type EventConsumer interface {
	Run(ctx context.Context) error
	Close() error
}

type App struct {
	log      logger.Logger
	httpSrv  HTTPServer
	consumer EventConsumer

	cancelConsume context.CancelFunc
}

func NewApp(log logger.Logger, httpSrv HTTPServer, consumer EventConsumer) *App {
	return &App{log: log, httpSrv: httpSrv, consumer: consumer}
}

func (a *App) Start() error {
	a.log.Debug("App started begin...")

	go func() {
		if err := a.httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatalf("Start HTTP server is error=%v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	a.cancelConsume = cancel
	go func() {
		if err := a.consumer.Run(ctx); err != nil {
			a.log.Errorf("Consumer stopped with error=%v", err)
		}
	}()

	a.log.Info("App started")
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.log.Debug("App stopped begin...")

	if a.cancelConsume != nil {
		a.cancelConsume()
	}
	if err := a.consumer.Close(); err != nil {
		a.log.Errorf("Failed to close consumer, error=%v", err)
	}

	if err := a.httpSrv.Shutdown(ctx); err != nil {
		return err
	}

	a.log.Info("App stopped")
	return nil
}
