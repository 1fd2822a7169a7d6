package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-widget/internal/config"
	"chat-widget/internal/db"
	"chat-widget/internal/handlers"
	"chat-widget/internal/log"
	"chat-widget/internal/middleware"
	"chat-widget/internal/observability"
	"chat-widget/internal/rabbitmq"
	"chat-widget/internal/store"
	"chat-widget/internal/telemetry"
	"chat-widget/internal/tracing"
	"chat-widget/internal/web"
	"chat-widget/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.L().Fatal().Err(err).Msg("failed to load config")
	}
	log.Init(log.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, ServiceName: cfg.ServiceName})
	logger := log.L()

	location, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid display timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, observability.RoutingAuditLogs, cfg.ServiceName, cfg.Environment)
	logger.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("event publisher ready")

	base, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer closeStore()
	messages := store.NewPublishingStore(base)

	hub := ws.NewHub()
	messageHandler := handlers.NewMessageHandler(messages, cfg.MaxMessageLength)
	widgetWS := ws.NewWidgetHandler(hub, messages, ws.Config{
		PingInterval:   cfg.WSPingInterval,
		PongWait:       cfg.WSPongWait,
		WriteWait:      cfg.WSWriteWait,
		MaxMessageSize: cfg.WSMaxMessageSize,
	}, location, cfg.MaxMessageLength, audit)

	if cfg.Environment != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(observability.HTTPMetricsMiddleware())

	web.Register(router)
	router.GET("/healthz", handlers.Health(hub.Count))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	api := router.Group("/api", cors.Default())
	api.GET("/messages", messageHandler.ListMessages)
	api.POST("/messages", messageHandler.PostMessage)
	api.PATCH("/messages/:message_id", messageHandler.UpdateMessage)
	api.DELETE("/messages/:message_id", messageHandler.DeleteMessage)
	api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	router.GET("/ws", widgetWS.Handle)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		logger.Info().Str("port", cfg.Port).Str("driver", cfg.StoreDriver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("tracing shutdown")
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.MessageStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		database, err := db.Connect(cfg.DSN, cfg.Collection)
		if err != nil {
			return nil, nil, err
		}
		return store.NewPostgresStore(database, cfg.DSN, cfg.Collection), func() { _ = database.Close() }, nil
	case config.DriverMongo:
		client, err := db.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		coll := client.Database(cfg.MongoDatabase).Collection(cfg.Collection)
		return store.NewMongoStore(coll), func() { disconnectMongo(client) }, nil
	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}

func disconnectMongo(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.L().Warn().Err(err).Msg("mongo disconnect")
	}
}
