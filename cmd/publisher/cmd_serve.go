package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"afterlife.app/publisher/common/id"
	"afterlife.app/publisher/common/logger"
	"afterlife.app/publisher/common/otel"
	"afterlife.app/publisher/core/config"
	"afterlife.app/publisher/internal/bot"
	"afterlife.app/publisher/internal/conversation"
	"afterlife.app/publisher/internal/fetcher"
	"afterlife.app/publisher/internal/format"
	"afterlife.app/publisher/internal/http/handler"
	"afterlife.app/publisher/internal/http/middleware"
	httprouter "afterlife.app/publisher/internal/http/router"
	"afterlife.app/publisher/internal/queue"
	"afterlife.app/publisher/internal/service"
	"afterlife.app/publisher/internal/store"
	"afterlife.app/publisher/internal/transport"
	"afterlife.app/publisher/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot (long polling or webhook, per UPDATE_MODE)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel, cfg.Env)
	if err != nil {
		// Can't use slog yet, OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		return err
	}

	logger.Setup(cfg)
	if err := tgbotapi.SetLogger(botLogger{}); err != nil {
		slog.WarnContext(ctx, "failed to route telegram client logs", "error", err)
	}

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "publisher starting",
		"env", cfg.Env,
		"mode", cfg.Updates.Mode,
		"allowed_chats", len(cfg.AllowedChats),
		"admins", len(cfg.Admins))

	if err := id.Init(1); err != nil {
		return fmt.Errorf("initializing snowflake id generator: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		return fmt.Errorf("parsing redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	// Webhook mode closes the client through the producer on shutdown.
	defer func() {
		if err := redisClient.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			slog.WarnContext(ctx, "failed to close redis", "error", err)
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	slog.InfoContext(ctx, "redis connected")

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("connecting to telegram: %w", err)
	}
	slog.InfoContext(ctx, "telegram connected", "bot", api.Self.UserName)

	channel, err := transport.ParseDestination(cfg.ChannelID)
	if err != nil {
		return fmt.Errorf("parsing CHANNEL_ID: %w", err)
	}

	messenger := transport.NewTelegramMessenger(api)
	services := service.NewServices(service.ServicesConfig{
		Messenger: messenger,
		Fetcher:   fetcher.New(cfg.OTA.BaseURL, nil),
		Banners:   store.NewRedisBannerStore(redisClient),
		Formatter: format.New(linksFrom(cfg.Links)),
		State:     conversation.NewStore(),
		Codec:     conversation.NewCodec(cfg.TokenSecret),
		Channel:   channel,
	})

	dispatcher := bot.New(bot.Config{
		Publisher:    services.Publisher(),
		Banners:      services.Banners(),
		Messenger:    messenger,
		AllowedChats: cfg.AllowedChats,
		Admins:       cfg.Admins,
	})

	if cfg.Updates.IsWebhook() {
		err = serveWebhook(ctx, cfg, redisClient, dispatcher)
	} else {
		err = servePolling(ctx, cfg, api, dispatcher)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if telemetry != nil {
		if shutdownErr := telemetry.Shutdown(shutdownCtx); shutdownErr != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", shutdownErr)
		}
	}

	if err != nil {
		slog.ErrorContext(shutdownCtx, "publisher stopped with error", "error", err)
		return err
	}
	slog.InfoContext(shutdownCtx, "shutdown complete")
	return nil
}

// servePolling long-polls getUpdates and handles updates in arrival order.
func servePolling(ctx context.Context, cfg config.Config, api *tgbotapi.BotAPI, dispatcher *bot.Dispatcher) error {
	// getUpdates is refused while a webhook is registered.
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("clearing webhook before polling: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.Updates.PollTimeout
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := api.GetUpdatesChan(u)
	slog.InfoContext(ctx, "polling for updates")

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "shutting down...")
			api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := dispatcher.Handle(ctx, update); err != nil {
				slog.ErrorContext(ctx, "update handling failed", "error", err, "update_id", update.UpdateID)
			}
		}
	}
}

// serveWebhook runs the ingress server and the single stream worker together.
func serveWebhook(ctx context.Context, cfg config.Config, redisClient *redis.Client, dispatcher *bot.Dispatcher) error {
	consumerName := cfg.Pipeline.RedisConsumer
	if consumerName == "" {
		consumerName = "publisher-" + uuid.NewString()
	}

	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, slog.Default())
	consumer, err := queue.NewRedisConsumer(ctx, redisClient, queue.ConsumerConfig{
		Stream:    cfg.Pipeline.RedisStream,
		Group:     cfg.Pipeline.RedisGroup,
		Consumer:  consumerName,
		DLQStream: cfg.Pipeline.RedisDLQStream,
		BatchSize: 1, // one update at a time keeps the conversation ordered
		Block:     5 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("creating consumer: %w", err)
	}
	w := worker.New(consumer, dispatcher)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(cfg, handler.NewWebhookHandler(producer, cfg.Updates.WebhookSecret))
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.InfoContext(gctx, "http server starting", "port", cfg.Port, "consumer", consumerName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// The worker ignores the signal and is stopped explicitly, so an update
	// in hand is finished before exit.
	g.Go(func() error {
		if err := w.Run(context.WithoutCancel(gctx)); err != nil {
			return fmt.Errorf("worker: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.InfoContext(ctx, "shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
		}

		w.Stop()
		slog.InfoContext(shutdownCtx, "worker stopped")

		if err := producer.Close(); err != nil {
			slog.ErrorContext(shutdownCtx, "producer close error", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func setupRouter(cfg config.Config, webhook *handler.WebhookHandler) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, webhook)
	return router
}

func linksFrom(l config.LinksConfig) format.Links {
	return format.Links{
		DownloadBase:     l.DownloadBase,
		SourceChangelogs: l.SourceChangelogs,
		Support:          l.Support,
		Donate:           l.Donate,
		UpdatesChannel:   l.UpdatesChannel,
	}
}

// botLogger routes the Telegram library's own log lines into slog.
type botLogger struct{}

func (botLogger) Println(v ...interface{}) {
	slog.Debug(fmt.Sprint(v...), "component", "publisher.telegram")
}

func (botLogger) Printf(tmpl string, v ...interface{}) {
	slog.Debug(fmt.Sprintf(tmpl, v...), "component", "publisher.telegram")
}
