package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/storykeeper/internal/aws"
	"github.com/imrishuroy/storykeeper/internal/config"
	"github.com/imrishuroy/storykeeper/internal/logging"
	"github.com/imrishuroy/storykeeper/internal/notify"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	clients, err := aws.NewAWSClients(context.Background(), aws.Settings{
		Region:   cfg.AWS.Region,
		Endpoint: cfg.AWS.EndpointOverride,
	})
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}

	sender, err := notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Timeout:  cfg.SMTP.Timeout,
	})
	if err != nil {
		logger.Fatal("failed to configure smtp", zap.Error(err))
	}

	p := NewProcessor(sender, aws.NewMetrics(clients.CloudWatch, cfg.AWS.CloudWatchNamespace), logger)

	if cfg.RunLocal {
		if cfg.LocalBody == "" {
			logger.Fatal("LOCAL_SQS_BODY is required with RUN_LOCAL")
		}
		event := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local-1", Body: cfg.LocalBody}}}
		if err := p.Handle(context.Background(), event); err != nil {
			logger.Fatal("local handler error", zap.Error(err))
		}
		return
	}

	lambda.Start(p.Handle)
}
