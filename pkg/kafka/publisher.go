package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"payguard/backend/config"
)

// Message 待发布的事件；Value 以 JSON 编码
type Message struct {
	Key   string
	Value interface{}
}

// Publisher 事件发布接口
type Publisher interface {
	Publish(ctx context.Context, msgs ...Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewPublisher 根据配置创建发布者；未配置 brokers 时返回空实现
func NewPublisher(cfg *config.KafkaConfig, logger *zap.Logger) (Publisher, error) {
	if !cfg.Enabled() {
		logger.Info("Kafka 未配置，异常事件不发布")
		return NopPublisher{}, nil
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("kafka.topic 不能为空")
	}

	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		WriteTimeout:           timeout,
		AllowAutoTopicCreation: false,
	}

	logger.Info("Kafka 发布者已创建",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
	)
	return newPublisherWithWriter(w, cfg.Topic, logger), nil
}

func newPublisherWithWriter(w messageWriter, topic string, logger *zap.Logger) *writerPublisher {
	return &writerPublisher{
		writer: w,
		topic:  topic,
		logger: logger.With(zap.String("component", "kafka_publisher")),
	}
}

// ── kafka-go 实现 ──

type writerPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func (p *writerPublisher) Publish(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]kafkago.Message, 0, len(msgs))
	for _, m := range msgs {
		value, err := json.Marshal(m.Value)
		if err != nil {
			return fmt.Errorf("序列化事件失败: %w", err)
		}
		out = append(out, kafkago.Message{
			Key:   []byte(m.Key),
			Value: value,
			Time:  time.Now().UTC(),
		})
	}
	if err := p.writer.WriteMessages(ctx, out...); err != nil {
		return fmt.Errorf("写入 Kafka 失败: %w", err)
	}
	p.logger.Debug("事件已发布", zap.String("topic", p.topic), zap.Int("count", len(out)))
	return nil
}

func (p *writerPublisher) Close() error {
	return p.writer.Close()
}

// ── 空实现 ──

// NopPublisher 不发布任何事件
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Message) error { return nil }
func (NopPublisher) Close() error                              { return nil }
