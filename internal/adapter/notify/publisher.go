// Package notify emits advance lifecycle events. Delivery to farmers happens downstream.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"agri-advance/internal/domain/advance"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes one message per event, keyed by advance so an advance's events stay ordered.
type Kafka struct {
	w     messageWriter
	topic string
}

var _ advance.Publisher = (*Kafka)(nil)

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		topic: topic,
	}
}

func (k *Kafka) Publish(ctx context.Context, e advance.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.AdvanceID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("advance." + string(e.Status))},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka write to %s: %w", k.topic, err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.w.Close() }

type sqsSender interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQS struct {
	client   sqsSender
	queueURL string
}

var _ advance.Publisher = (*SQS)(nil)

func NewSQS(client *sqs.Client, queueURL string) *SQS {
	return &SQS{client: client, queueURL: queueURL}
}

func (s *SQS) Publish(ctx context.Context, e advance.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String("advance." + string(e.Status))},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}
	return nil
}

func (s *SQS) Close() error { return nil }

// Log only records the event.
type Log struct {
	log *slog.Logger
}

var _ advance.Publisher = (*Log)(nil)

func NewLog(l *slog.Logger) *Log { return &Log{log: l} }

func (l *Log) Publish(ctx context.Context, e advance.Event) error {
	l.log.InfoContext(ctx, "advance event",
		"event_id", e.EventID, "advance_id", e.AdvanceID, "farmer_id", e.FarmerID,
		"status", string(e.Status), "amount", e.Amount.String())
	return nil
}

func (l *Log) Close() error { return nil }
