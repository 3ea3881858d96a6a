package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Publisher enqueues notification bodies on one SQS queue.
type Publisher struct {
	client   SQSAPI
	queueURL string
}

func NewPublisher(client SQSAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

// SendMessage enqueues body. Attributes become String message attributes;
// SQS rejects empty values, so those are left out.
func (p *Publisher) SendMessage(ctx context.Context, body string, attributes map[string]string) error {
	in := &sqs.SendMessageInput{
		QueueUrl:    sdkaws.String(p.queueURL),
		MessageBody: sdkaws.String(body),
	}
	for k, v := range attributes {
		if v == "" {
			continue
		}
		if in.MessageAttributes == nil {
			in.MessageAttributes = make(map[string]sqstypes.MessageAttributeValue, len(attributes))
		}
		in.MessageAttributes[k] = sqstypes.MessageAttributeValue{
			DataType:    sdkaws.String("String"),
			StringValue: sdkaws.String(v),
		}
	}

	if _, err := p.client.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("sqs send to %s: %w", p.queueURL, err)
	}
	return nil
}
