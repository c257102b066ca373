package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher mirrors committed ledger entries to a compliance topic so
// downstream reporting can consume the trail without reading the store. The
// database remains the source of truth; a publish failure is logged and the
// entry is simply not mirrored.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher connects to the brokers and ensures the topic exists.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, err
	}

	admin := kadm.NewClient(client)
	if _, err := admin.CreateTopic(ctx, 1, 1, nil, topic); err != nil {
		// Topic may already exist; anything else surfaces on first produce.
		logger.InfoContext(ctx, "audit topic create skipped", "topic", topic, "reason", err)
	}

	return &KafkaPublisher{client: client, topic: topic, logger: logger}, nil
}

// Publish mirrors one entry asynchronously. Keyed by sequence number so the
// topic preserves ledger order per partition.
func (p *KafkaPublisher) Publish(entry Entry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		p.logger.Error("marshal audit entry for mirror", "error", err, "seq", entry.Seq)
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(strconv.FormatUint(entry.Seq, 10)),
		Value: payload,
	}
	p.client.Produce(context.Background(), record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("mirror audit entry", "error", err, "seq", entry.Seq)
		}
	})
}

// Close flushes outstanding produces and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}
