package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/mohammadjaf013/findlanqbot/config"
	"github.com/mohammadjaf013/findlanqbot/internal/api/handlers"
	"github.com/mohammadjaf013/findlanqbot/internal/api/middleware"
	"github.com/mohammadjaf013/findlanqbot/internal/api/routes"
	"github.com/mohammadjaf013/findlanqbot/internal/app"
	"github.com/mohammadjaf013/findlanqbot/internal/logger"
	"github.com/mohammadjaf013/findlanqbot/internal/workers"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "", "optional config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("startup")
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.WithError(err).Error("shutdown")
		}
	}()

	janitor := &workers.SessionJanitor{History: c.History, Interval: cfg.PurgeInterval, Logger: log}
	var janitorDone sync.WaitGroup
	janitorDone.Add(1)
	go func() {
		defer janitorDone.Done()
		janitor.Run(ctx)
	}()

	var pool *workers.IngestWorkerPool
	if c.Redis != nil {
		pool = &workers.IngestWorkerPool{
			Redis:      c.Redis,
			Ingest:     c.Ingest,
			NumWorkers: cfg.IngestWorkers,
			Logger:     log,
			Stream:     cfg.IngestStream,
		}
		if err := pool.Start(ctx); err != nil {
			log.WithError(err).Fatal("ingest workers")
		}
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	r.Use(
		middleware.RequestLogger(log),
		middleware.Recovery(log),
		middleware.CORS(cfg.CORSOrigins),
	)

	routes.RegisterRoutes(r, routes.Deps{
		Chat:         handlers.NewChatHandler(c.Chat, cfg.MaxUploadBytes),
		Documents:    handlers.NewDocumentHandler(c.Ingest, cfg.MaxUploadBytes, cfg.IngestAsync),
		Sessions:     handlers.NewSessionHandler(c.History),
		Consultation: handlers.NewConsultationHandler(c.Consultations),
		WS:           handlers.NewWSHandler(c.Chat, cfg.CORSOrigins, log),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":    cfg.Port,
			"store":   cfg.StoreBackend,
			"history": cfg.HistoryBackend,
			"llm":     cfg.LLMEnabled(),
		}).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	// consumers still hold the stores; they must stop before Close runs
	if pool != nil {
		pool.Wait()
	}
	janitorDone.Wait()
}
