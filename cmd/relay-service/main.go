package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/healthverse/care-relay/internal/config"
	"github.com/healthverse/care-relay/internal/handler"
	"github.com/healthverse/care-relay/internal/hub"
	"github.com/healthverse/care-relay/internal/ice"
	"github.com/healthverse/care-relay/internal/kafka"
	"github.com/healthverse/care-relay/internal/metrics"
	"github.com/healthverse/care-relay/internal/repository"
	"github.com/healthverse/care-relay/internal/service"
	"github.com/healthverse/care-relay/pkg/database"
	pkglog "github.com/healthverse/care-relay/pkg/log"
	"github.com/healthverse/care-relay/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting relay-service")

	// Initialize database
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db, repository.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database ready")

	recordRepo := repository.NewGormRecordRepository(db)

	// Initialize note event publisher
	publisher, err := pubsub.NewPublisher(cfg.PubSub)
	if err != nil {
		logger.Warn().Err(err).Str("driver", cfg.PubSub.Driver).Msg("failed to initialize pubsub, note events disabled")
		publisher = nil
	}
	if publisher != nil {
		defer publisher.Close()
		logger.Info().Str("driver", cfg.PubSub.Driver).Msg("note event publisher ready")
	}

	// Initialize Kafka producer for call events
	var kafkaProducer kafka.CallEventProducer
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka producer, call events disabled")
		} else {
			kafkaProducer = producer
			defer producer.Close()
			logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("connected to kafka")
		}
	}

	m := metrics.New()

	// Initialize hubs, one per pool
	videoHub := hub.NewHub(handler.PoolVideo, cfg.WebSocket, cfg.Rooms.MaxMembers, m)
	notesHub := hub.NewHub(handler.PoolNotes, cfg.WebSocket, 0, m)

	// Initialize services
	signalSvc := service.NewSignalService(videoHub, kafkaProducer, m, cfg.Signaling.NegotiationTimeout)
	noteSvc := service.NewNoteService(notesHub, recordRepo, publisher, m, cfg.Notes.StoreTimeout)

	iceProvider := ice.NewProvider(cfg.WebRTC)
	if iceProvider.TURNConfigured() {
		logger.Info().Str("turn_key_id", cfg.WebRTC.TurnKeyID).Str("turn_key", ice.MaskKey(cfg.WebRTC.TurnKey)).Msg("cloudflare TURN configured")
	}

	// Initialize handlers
	upgrader := handler.NewUpgrader(cfg.CORS.AllowedOrigins)
	router := handler.NewRouter(
		cfg.CORS.AllowedOrigins,
		handler.NewHandler([]*hub.Hub{videoHub, notesHub}, noteSvc, iceProvider, m),
		handler.NewCallHandler(videoHub, signalSvc, upgrader, m),
		handler.NewNotesHandler(notesHub, noteSvc, upgrader, m),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Wait for interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hubCtx, cancelHubs := context.WithCancel(context.Background())
	defer cancelHubs()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return videoHub.Run(hubCtx) })
	g.Go(func() error { return notesHub.Run(hubCtx) })
	g.Go(func() error {
		logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("relay-service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down relay-service")

		// Graceful shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server forced to shutdown")
		}
		cancelHubs()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("relay-service exited with error")
	}

	signalSvc.Stop()
	noteSvc.Stop()

	logger.Info().Msg("relay-service stopped")
}
