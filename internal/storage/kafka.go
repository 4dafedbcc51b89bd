package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/aman-zulfiqar/routediff/internal/models"
)

// KafkaPublisher writes divergences to a topic keyed by token pair, so all
// records for one pair land on the same partition.
type KafkaPublisher struct {
	brokers []string
	writer  *kafka.Writer
}

var _ DivergenceSink = (*KafkaPublisher)(nil)

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	return &KafkaPublisher{
		brokers: brokers,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}, nil
}

func (k *KafkaPublisher) RecordDivergence(ctx context.Context, d *models.Divergence) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal divergence: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(d.Request.Pair()),
		Value: data,
		Time:  d.DetectedAt,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write divergence to kafka: %w", err)
	}
	return nil
}

// Ping dials the first broker.
func (k *KafkaPublisher) Ping(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", k.brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka broker: %w", err)
	}
	return conn.Close()
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
