package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/carepulse/shift-orchestrator/database"
	"github.com/carepulse/shift-orchestrator/internal/backend"
	"github.com/carepulse/shift-orchestrator/internal/bootstrap"
	"github.com/carepulse/shift-orchestrator/internal/config"
	"github.com/carepulse/shift-orchestrator/internal/consolidator"
	"github.com/carepulse/shift-orchestrator/internal/engine"
	"github.com/carepulse/shift-orchestrator/internal/events"
	"github.com/carepulse/shift-orchestrator/internal/idempotency"
	"github.com/carepulse/shift-orchestrator/internal/ingress"
	"github.com/carepulse/shift-orchestrator/internal/jobs"
	"github.com/carepulse/shift-orchestrator/internal/llmgateway"
	"github.com/carepulse/shift-orchestrator/internal/locking"
	"github.com/carepulse/shift-orchestrator/internal/router"
	"github.com/carepulse/shift-orchestrator/internal/routes"
	"github.com/carepulse/shift-orchestrator/internal/storage"
	"github.com/carepulse/shift-orchestrator/internal/subgraphs"
)

const (
	bufferRetentionInterval = 6 * time.Hour
	bufferRetentionTTL      = 7 * 24 * time.Hour
	rehydrationInterval     = 15 * time.Minute
	rehydrationStaleAfter   = 12 * time.Hour
)

func main() {
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			log.Info().Msg("no .env file found, reading environment directly")
		}
	}

	cfg := config.Load()
	configureLogging(cfg.LogLevel)

	var store storage.Store

	if cfg.UseMemoryStore {
		log.Warn().Msg("using in-memory storage, not for production")
		store = storage.NewMemoryStore()
	} else {
		if err := database.Connect(cfg.DBUser, cfg.DBPass, cfg.DBName); err != nil {
			log.Fatal().Err(err).Msg("database connect failed")
		}
		sessionStore := storage.NewPostgresStore(database.DB)
		if err := sessionStore.AutoMigrate(); err != nil {
			log.Fatal().Err(err).Msg("database migration failed")
		}

		buffer, err := storage.NewPqBufferStore(os.Getenv("DATABASE_URL"))
		if err != nil {
			log.Fatal().Err(err).Msg("buffer store connect failed")
		}
		if err := buffer.EnsureSchema(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("buffer schema migration failed")
		}
		store = storage.NewCompositeStore(sessionStore, buffer)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	lock := locking.New(redisClient)
	idemStore := idempotency.New(redisClient)
	readCache := storage.NewReadCache(5 * time.Minute)

	llmGateway := llmgateway.New(cfg.OpenAIAPIKey, cfg.IntentModel, cfg.ExtractorModel)

	backendAdapter := backend.New(backend.Config{
		GetScheduleURL:    cfg.LambdaGetSchedule,
		UpdateScheduleURL: cfg.LambdaUpdateSchedule,
		UpdateClinicalURL: cfg.LambdaUpdateClinical,
		UpdateSummaryURL:  cfg.LambdaUpdateSummary,
		GetNoteReportURL:  cfg.LambdaGetNoteReport,
		WebhookURL:        cfg.N8NWebhookURL,
		Timeout:           cfg.TimeoutLambdas,
		MaxRetries:        cfg.MaxRetries,
	})

	publisher := events.New(cfg.AMQPURL)
	defer publisher.Close()

	routerInstance := router.New(llmGateway, llmGateway)
	bootstrapper := bootstrap.New(backendAdapter)
	consolidatorInstance := consolidator.New(llmGateway)

	eng := &engine.Engine{
		Store:        store,
		Lock:         lock,
		Bootstrap:    bootstrapper,
		Router:       routerInstance,
		Consolidator: consolidatorInstance,
		Events:       publisher,
		ReadCache:    readCache,
		Deps: subgraphs.Deps{
			LLM:     llmGateway,
			Backend: backendAdapter,
		},
		Subgraphs: map[router.Subgraph]subgraphs.Subgraph{
			router.SubgraphEscala:      subgraphs.Escala{},
			router.SubgraphClinico:     subgraphs.Clinico{},
			router.SubgraphOperacional: subgraphs.Operacional{},
			router.SubgraphFinalizar:   subgraphs.Finalizar{},
			router.SubgraphAuxiliar:    subgraphs.Auxiliar{},
		},
	}

	var bufferJob *jobs.BufferRetentionJob
	var rehydrationJob *jobs.RehydrationPollJob
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	jobGroup, jobGroupCtx := errgroup.WithContext(jobCtx)
	if composite, ok := store.(*storage.CompositeStore); ok {
		bufferJob = jobs.NewBufferRetentionJob(composite.PqBufferStore, bufferRetentionInterval, bufferRetentionTTL)
		jobGroup.Go(func() error {
			bufferJob.Start(jobGroupCtx)
			return nil
		})

		rehydrationJob = jobs.NewRehydrationPollJob(composite.PostgresStore, eng, rehydrationInterval, rehydrationStaleAfter)
		jobGroup.Go(func() error {
			rehydrationJob.Start(jobGroupCtx)
			return nil
		})
	}

	handlers := &ingress.Handlers{
		Engine:      eng,
		Idempotency: idemStore,
		Store:       store,
		ReadCache:   readCache,
		ReadinessPing: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}

	app := fiber.New(fiber.Config{
		AppName: "shift-orchestrator",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			log.Error().Err(err).Str("path", c.Path()).Msg("unhandled request error")
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New(logger.Config{Format: "[${time}] ${status} - ${latency} ${method} ${path}\n"}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Idempotency-Key, X-Twilio-Signature",
		AllowMethods: "GET, POST",
	}))

	routes.SetupRoutes(app, handlers, routes.Config{
		Environment:              cfg.Environment,
		DisableWebhookValidation: cfg.DisableWebhookValidation,
		TwilioAuthToken:          cfg.TwilioAuthToken,
		PublicURL:                cfg.PublicURL,
		AdminJWTSecret:           cfg.AdminJWTSecret,
	})

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdownSignal
		log.Info().Msg("shutting down")
		if bufferJob != nil {
			bufferJob.Stop()
		}
		if rehydrationJob != nil {
			rehydrationJob.Stop()
		}
		cancelJobs()
		_ = jobGroup.Wait()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.Info().Str("port", cfg.Port).Str("environment", cfg.Environment).Msg("shift-orchestrator starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func configureLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
}
