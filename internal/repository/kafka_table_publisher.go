package repository

import (
	"context"
	"fmt"
	"math"

	"github.com/sjfremen/fred/internal/domain/models"
	drepo "github.com/sjfremen/fred/internal/domain/repository"
	pkgkafka "github.com/sjfremen/fred/pkg/kafka"
)

// batchProducer is the subset of pkg/kafka.Producer used by the mirror.
type batchProducer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// RowMessage is the JSON payload of one table row.
type RowMessage struct {
	Table  string              `json:"table"`
	Date   string              `json:"date"`
	Values map[string]*float64 `json:"values"`
	Labels map[string]string   `json:"labels,omitempty"`
}

// KafkaTablePublisher mirrors tables to a Kafka topic, one message per row
// keyed by table and date.
type KafkaTablePublisher struct {
	producer  batchProducer
	topic     string
	batchSize int
}

var _ drepo.TableMirror = (*KafkaTablePublisher)(nil)

// NewKafkaTablePublisher creates Kafka publisher.
func NewKafkaTablePublisher(producer batchProducer, topic string, batchSize int) *KafkaTablePublisher {
	if batchSize <= 0 {
		batchSize = DefaultChunkSize
	}
	return &KafkaTablePublisher{producer: producer, topic: topic, batchSize: batchSize}
}

// RowMessages converts t into one message per row.
func RowMessages(name string, t *models.Table) []pkgkafka.Message {
	cols := t.Columns()
	msgs := make([]pkgkafka.Message, t.Len())
	for i, d := range t.Dates {
		date := d.Format(models.DateLayout)
		m := RowMessage{Table: name, Date: date, Values: make(map[string]*float64)}
		for _, c := range cols {
			if c.Kind == models.LabelColumn {
				if m.Labels == nil {
					m.Labels = make(map[string]string)
				}
				m.Labels[c.Name] = c.Labels[i]
				continue
			}
			if v := c.Values[i]; !models.IsMissing(v) && !math.IsInf(v, 0) {
				m.Values[c.Name] = &v
			} else {
				m.Values[c.Name] = nil
			}
		}
		msgs[i] = pkgkafka.Message{
			Key:     []byte(name + ":" + date),
			Value:   m,
			Headers: map[string]string{"table": name},
		}
	}
	return msgs
}

func (p *KafkaTablePublisher) Mirror(ctx context.Context, name string, t *models.Table) error {
	msgs := RowMessages(name, t)
	for start := 0; start < len(msgs); start += p.batchSize {
		end := start + p.batchSize
		if end > len(msgs) {
			end = len(msgs)
		}
		if err := p.producer.PublishBatch(ctx, p.topic, msgs[start:end]); err != nil {
			return fmt.Errorf("kafka publish %s rows %d-%d: %w", name, start, end, err)
		}
	}
	return nil
}

func (p *KafkaTablePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
