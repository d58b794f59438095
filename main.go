package main

import (
	"context"
	"log"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"

	"github.com/example/realtime-chat/config"
	"github.com/example/realtime-chat/logging"
	"github.com/example/realtime-chat/modules/api"
	"github.com/example/realtime-chat/modules/attachment"
	"github.com/example/realtime-chat/modules/auth"
	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/example/realtime-chat/modules/chat"
	"github.com/example/realtime-chat/modules/relay"
	"github.com/example/realtime-chat/modules/session"
	"github.com/example/realtime-chat/modules/store"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	logger.Info("Starting service", "app", cfg.AppName, "port", cfg.Port, "db_driver", cfg.Database.Driver)

	// Framework logs follow the service level where mono has a matching one.
	frameworkLevel := mono.LogLevelInfo
	if cfg.Log.Level == "error" {
		frameworkLevel = mono.LogLevelError
	}

	// Create mono application with embedded NATS JetStream
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(frameworkLevel),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithJetStreamStorageDir(cfg.StorageDir),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Attachments live in a JetStream object store bucket
	storagePlugin, err := fsjetstream.New(fsjetstream.Config{
		Buckets: []fsjetstream.BucketConfig{
			{
				Name:        attachment.BucketName,
				Description: "Chat message attachments",
				MaxBytes:    1024 * 1024 * 1024,
				Storage:     fsjetstream.FileStorage,
				Compression: true,
			},
		},
	})
	if err != nil {
		log.Fatalf("Failed to create storage plugin: %v", err)
	}
	if err := app.RegisterPlugin(storagePlugin, "storage"); err != nil {
		log.Fatalf("Failed to register storage plugin: %v", err)
	}

	// Create modules
	storeModule, err := store.NewModule(cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	repo := storeModule.Repository()

	authModule := auth.NewModule(repo, cfg.JWT, logger)
	chatModule := chat.NewModule(repo, chat.Options{
		PersistTimeout: cfg.Chat.PersistTimeout,
		HistoryLimit:   cfg.Chat.HistoryLimit,
		MaxHistory:     cfg.Chat.MaxHistory,
	}, logger)
	broadcastModule := broadcast.NewModule(logger)
	sessionModule := session.NewModule(cfg.Redis, repo, logger)
	attachmentModule := attachment.NewModule(cfg.MaxUploadSize, logger)
	relayModule := relay.NewModule(cfg.AMQP, logger)
	apiModule := api.NewModule(cfg, logger)

	// Wire in-process collaborators that are not exposed via ServiceContainer
	hub := broadcastModule.GetHub()
	chatModule.Service().SetFanout(hub)
	chatModule.Service().SetSubscribers(sessionModule.Rooms())
	chatModule.Service().SetAttachmentResolver(attachmentModule)
	sessionModule.Rooms().SetMembership(chatModule.Service())
	sessionModule.SetBroadcaster(hub)
	broadcastModule.SetLocator(sessionModule.Registry())
	authModule.Service().SetOnlineSource(sessionModule.Registry())

	apiModule.SetHub(hub)
	apiModule.SetPipeline(chatModule.Service())
	apiModule.SetSessions(sessionModule.Registry(), sessionModule.Rooms())
	apiModule.SetAttachments(attachmentModule)

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - store: database connection
	// - auth, chat: request-reply services + event emitters
	// - broadcast: websocket hub + event consumer
	// - session: connection registry, rooms and presence (depends on chat)
	// - attachment: object storage (uses the storage plugin)
	// - relay: forwards events to an external broker
	// - api: Fiber HTTP/WebSocket server (depends on chat, auth)
	app.Register(storeModule)
	app.Register(authModule)
	app.Register(chatModule)
	app.Register(broadcastModule)
	app.Register(sessionModule)
	app.Register(attachmentModule)
	app.Register(relayModule)
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	logger.Info("Application started",
		"http", "http://localhost:"+cfg.Port+"/api/v1",
		"websocket", "ws://localhost:"+cfg.Port+"/ws?token=<jwt>",
	)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				logger.Info("Graceful shutdown initiated")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info("Application exited", "code", exitCode)
	os.Exit(exitCode)
}

