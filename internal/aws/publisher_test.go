package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type mockSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{}, nil
}

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestPublisher_SendMessage(t *testing.T) {
	mock := &mockSQS{}
	p := NewPublisher(mock, "https://sqs.local/queue")

	err := p.SendMessage(context.Background(), `{"kind":"order_confirmation"}`, map[string]string{
		"order_id": "o1",
		"kind":     "",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.inputs) != 1 {
		t.Fatalf("expected 1 send, got %d", len(mock.inputs))
	}
	in := mock.inputs[0]
	if *in.QueueUrl != "https://sqs.local/queue" {
		t.Fatalf("queue url mismatch: %s", *in.QueueUrl)
	}
	if _, ok := in.MessageAttributes["kind"]; ok {
		t.Fatalf("empty attribute should be skipped")
	}
	if v := in.MessageAttributes["order_id"].StringValue; v == nil || *v != "o1" {
		t.Fatalf("order_id attribute not set")
	}
}

func TestPublisher_SendMessage_Error(t *testing.T) {
	boom := errors.New("boom")
	p := NewPublisher(&mockSQS{err: boom}, "q")

	err := p.SendMessage(context.Background(), "{}", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestPublisher_NoAttributes(t *testing.T) {
	mock := &mockSQS{}
	p := NewPublisher(mock, "q")

	if err := p.SendMessage(context.Background(), "{}", map[string]string{"kind": ""}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.inputs[0].MessageAttributes != nil {
		t.Fatalf("expected no attributes, got %v", mock.inputs[0].MessageAttributes)
	}
}

func TestMetrics_Count(t *testing.T) {
	cw := &mockCloudWatch{}
	m := NewMetrics(cw, "")
	m.nowFunc = func() time.Time { return time.Unix(100, 0) }

	m.RecordFailure(context.Background(), "order_confirmation", errors.New("smtp down"))

	if len(cw.inputs) != 1 {
		t.Fatalf("expected 1 metric put, got %d", len(cw.inputs))
	}
	in := cw.inputs[0]
	if *in.Namespace != "StoryKeeper" {
		t.Fatalf("unexpected namespace %s", *in.Namespace)
	}
	if *in.MetricData[0].MetricName != MetricNotificationFailures {
		t.Fatalf("unexpected metric %s", *in.MetricData[0].MetricName)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	if err := m.Count(context.Background(), "x", nil); err != nil {
		t.Fatalf("nil metrics should be a no-op, got %v", err)
	}
}
