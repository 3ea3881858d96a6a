package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/storykeeper/internal/auth"
	"github.com/imrishuroy/storykeeper/internal/aws"
	"github.com/imrishuroy/storykeeper/internal/cache"
	"github.com/imrishuroy/storykeeper/internal/config"
	"github.com/imrishuroy/storykeeper/internal/handlers"
	"github.com/imrishuroy/storykeeper/internal/idempotency"
	"github.com/imrishuroy/storykeeper/internal/logging"
	"github.com/imrishuroy/storykeeper/internal/metrics"
	"github.com/imrishuroy/storykeeper/internal/middleware"
	"github.com/imrishuroy/storykeeper/internal/notify"
	"github.com/imrishuroy/storykeeper/internal/orders"
	"github.com/imrishuroy/storykeeper/internal/payment"
	"github.com/imrishuroy/storykeeper/internal/store"
)

const banner = "The Memory Maker"

func setupRouter(cfg handlers.HandlerConfig, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestID(), logging.RequestLogger(cfg.Logger), m.Middleware())

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, banner)
	})
	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	handlers.Register(r, cfg)

	return r
}

// app holds what main has to release on shutdown.
type app struct {
	router   *gin.Engine
	dispatch *notify.Dispatcher
	closers  []func(context.Context) error
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}

	var clients *aws.AWSClients
	awsClients := func() (*aws.AWSClients, error) {
		if clients != nil {
			return clients, nil
		}
		c, err := aws.NewAWSClients(ctx, aws.Settings{Region: cfg.AWS.Region, Endpoint: cfg.AWS.EndpointOverride})
		if err != nil {
			return nil, err
		}
		clients = c
		return clients, nil
	}

	var db store.Store
	switch cfg.Store.Backend {
	case config.BackendMongo:
		m, err := store.ConnectMongo(ctx, cfg.Store.MongoURI(), cfg.Store.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, m.Close)
		db = m
	case config.BackendDynamoDB:
		c, err := awsClients()
		if err != nil {
			return nil, err
		}
		db = store.NewDynamo(c.DynamoDB, cfg.Store.TablePrefix)
	default:
		logger.Warn("using in-memory store; data is lost on restart")
		db = store.NewMemory()
	}

	tokens, err := auth.NewTokens(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	owner := auth.StaticOwner(cfg.Auth.OwnerEmail)

	var notifier notify.Notifier
	switch {
	case cfg.Notify.QueueURL != "":
		c, err := awsClients()
		if err != nil {
			return nil, err
		}
		notifier = notify.NewQueueNotifier(aws.NewPublisher(c.SQS, cfg.Notify.QueueURL))
	case cfg.Notify.SMTP.Host != "":
		s, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.Notify.SMTP.Host,
			Port:     cfg.Notify.SMTP.Port,
			Username: cfg.Notify.SMTP.User,
			Password: cfg.Notify.SMTP.Password,
			From:     cfg.Notify.SMTP.From,
			Timeout:  cfg.Notify.SMTP.Timeout,
		})
		if err != nil {
			return nil, err
		}
		notifier = s
	default:
		notifier = notify.NewLogNotifier(logger)
	}

	m := metrics.New("storykeeper-api")
	a.dispatch = notify.NewDispatcher(notifier, m, logger, notify.WithSendTimeout(cfg.Notify.SendTimeout))

	orderStore := orders.NewStore(db)
	hc := handlers.HandlerConfig{
		Store:        db,
		Tokens:       tokens,
		Gate:         auth.NewGate(tokens, owner, logger),
		Owner:        owner,
		Orders:       orderStore,
		Workflow:     orders.NewWorkflow(orderStore, idempotency.NewStore(db, cfg.IdempotencyTTL), a.dispatch, logger),
		CacheTTL:     cfg.Redis.CacheTTL,
		IssueLimiter: middleware.NewRateLimiter(middleware.PerMinute(cfg.IssueRatePerMinute), cfg.IssueRatePerMinute, 10*time.Minute).Middleware(),
		Logger:       logger,
	}

	if cfg.StripeSecretKey != "" {
		s, err := payment.NewStripe(cfg.StripeSecretKey, "")
		if err != nil {
			return nil, err
		}
		hc.Payments = s
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set; payment intents are disabled")
	}

	if cfg.Redis.Addr != "" {
		rc := cache.New(cfg.Redis.Addr)
		if err := rc.Ping(ctx); err != nil {
			// the catalog still works without a cache
			logger.Warn("redis unreachable; catalog cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			_ = rc.Close()
		} else {
			hc.Cache = rc
			a.closers = append(a.closers, func(context.Context) error { return rc.Close() })
		}
	}

	a.router = setupRouter(hc, m)
	return a, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	a, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise service", zap.Error(err))
	}
	defer func() {
		for _, c := range a.closers {
			if err := c(context.Background()); err != nil {
				logger.Warn("close failed", zap.Error(err))
			}
		}
	}()

	// if RUN_LOCAL is set, run a local HTTP server for development.
	if cfg.RunLocal {
		serveLocal(a, cfg.HTTPAddr, logger)
		return
	}

	// lambda adapter
	adapter := ginadapter.New(a.router)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		resp, err := adapter.ProxyWithContext(ctx, req)
		// give pending enqueues a short window before the environment freezes
		drainCtx, cancel := context.WithTimeout(ctx, cfg.Notify.DrainTimeout)
		defer cancel()
		if werr := a.dispatch.WaitContext(drainCtx); werr != nil {
			logger.Warn("notifications still pending at response", zap.Error(werr))
		}
		return resp, err
	})
}

func serveLocal(a *app, addr string, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("running local server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to run local server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if err := a.dispatch.WaitContext(ctx); err != nil {
		logger.Warn("abandoning pending notifications", zap.Error(err))
	}
}
