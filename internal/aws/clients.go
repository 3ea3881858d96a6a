package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// AWSClients holds one client per service the binaries talk to. Fields are
// the narrow interfaces from api.go so tests can swap them.
type AWSClients struct {
	DynamoDB   DynamoDBAPI
	SQS        SQSAPI
	CloudWatch CloudWatchAPI
}

func NewAWSClients(ctx context.Context, s Settings) (*AWSClients, error) {
	cfg, err := LoadAWSConfig(ctx, s)
	if err != nil {
		return nil, err
	}
	return &AWSClients{
		DynamoDB:   dynamodb.NewFromConfig(cfg),
		SQS:        sqs.NewFromConfig(cfg),
		CloudWatch: cloudwatch.NewFromConfig(cfg),
	}, nil
}
