package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"atende-relay/config"
	"atende-relay/internal/db"
	"atende-relay/internal/events"
	"atende-relay/internal/evolution"
	"atende-relay/internal/handlers"
	"atende-relay/internal/repositories"
	"atende-relay/internal/services"
	"atende-relay/pkg/logger"
)

func main() {
	logger.InitLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer conn.Close()

	if err := db.Migrate(conn); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Repositories
	contacts := repositories.NewContactRepository(conn)
	conversations := repositories.NewConversationRepository(conn)
	messages := repositories.NewMessageRepository(conn)
	flows := repositories.NewFlowRepository(conn)
	sessions := repositories.NewSessionRepository(conn)
	queue := repositories.NewQueueRepository(conn)
	configs := repositories.NewConfigRepository(conn)
	transfers := repositories.NewTransferRepository(conn)

	// Services
	resolver := services.NewResolver(configs, contacts, conversations, cfg.DefaultEmpresaID, cfg.SingleOpenConversation)
	engine := services.NewChatbotEngine(flows, sessions, conversations, transfers, messages, queue, services.DefaultMatcher(), cfg.QueueMaxRetries)
	sender := evolution.NewClient(cfg.DispatchTimeout)
	dispatcher := services.NewDispatcher(queue, configs, sender, services.DefaultBackoff, cfg.DispatchTimeout)

	publisher := events.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	defer publisher.Close()

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(resolver, engine, messages, publisher)
	sendHandler := handlers.NewSendHandler(configs, sender)
	queueHandler := handlers.NewQueueHandler(queue)
	conversationHandler := handlers.NewConversationHandler(conversations, transfers)

	router := mux.NewRouter()
	router.HandleFunc(cfg.WebhookPath, webhookHandler.Handle).Methods(http.MethodPost)
	router.HandleFunc("/send", sendHandler.Handle).Methods(http.MethodPost)
	router.HandleFunc("/queue/status", queueHandler.Status).Methods(http.MethodGet)
	router.HandleFunc("/queue/failed", queueHandler.Failed).Methods(http.MethodGet)
	router.HandleFunc("/conversations/{id}/assumir", conversationHandler.Assume).Methods(http.MethodPost)
	router.HandleFunc("/conversations/{id}/liberar", conversationHandler.Release).Methods(http.MethodPost)
	router.HandleFunc("/conversations/{id}/transferir", conversationHandler.Transfer).Methods(http.MethodPost)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	chain := alice.New(handlers.Recoverer, handlers.RequestLogger).Then(router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Queue consumer
	go dispatcher.Run(ctx, cfg.QueueTick)

	// Retention reaper
	reaper := cron.New()
	_, err = reaper.AddFunc(cfg.ReaperSchedule, func() {
		n, err := queue.Purge(cfg.QueueRetention)
		if err != nil {
			log.Error().Err(err).Msg("Queue purge failed")
			return
		}
		if n > 0 {
			log.Info().Int64("purged", n).Msg("Queue retention purge completed")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.ReaperSchedule).Msg("Invalid reaper schedule")
	}
	reaper.Start()
	defer reaper.Stop()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: chain,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("webhookPath", cfg.WebhookPath).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}
