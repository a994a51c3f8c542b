package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/odysseycup/admin-gate/internal/core/port"
	"github.com/odysseycup/admin-gate/internal/infra/logger"
)

const (
	mailTopicSuffix = "otp-mail"
	mailSchema      = "1.0"
)

// MailTopic returns the full outbound mail topic for the given prefix.
func MailTopic(prefix string) string {
	if prefix == "" {
		return mailTopicSuffix
	}
	return fmt.Sprintf("%s.%s", prefix, mailTopicSuffix)
}

// mailEnvelope wraps an outbound mail with delivery metadata.
type mailEnvelope struct {
	MessageID string       `json:"message_id"`
	Kind      string       `json:"kind"`
	Timestamp time.Time    `json:"timestamp"`
	Version   string       `json:"version"`
	Payload   port.OTPMail `json:"payload"`
}

// MailDispatcher publishes outbound OTP mail to the queue. Implements
// port.MailDispatcher; enqueue problems are logged and swallowed so the
// login flow never observes delivery state.
type MailDispatcher struct {
	producer *Producer
	logger   *zap.Logger
}

// NewMailDispatcher constructs a Kafka-backed mail dispatcher.
func NewMailDispatcher(producer *Producer, log *zap.Logger) *MailDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &MailDispatcher{producer: producer, logger: log}
}

// DispatchOTP enqueues the mail and returns immediately.
func (d *MailDispatcher) DispatchOTP(_ context.Context, mail port.OTPMail) {
	envelope := mailEnvelope{
		MessageID: uuid.NewString(),
		Kind:      "auth.otp_issued",
		Timestamp: time.Now().UTC(),
		Version:   mailSchema,
		Payload:   mail,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		d.logger.Error("marshal mail envelope", zap.Error(err))
		return
	}

	d.producer.Input() <- &sarama.ProducerMessage{
		Topic: d.producer.TopicName(mailTopicSuffix),
		Key:   sarama.StringEncoder(mail.Identity),
		Value: sarama.ByteEncoder(bytes),
	}

	d.logger.Debug("otp mail enqueued",
		zap.String("identity", logger.MaskEmail(mail.Identity)),
		zap.String("message_id", envelope.MessageID),
	)
}

// MailConsumer drains the outbound mail topic and drives the configured
// sender. It owns retries and failure logging, decoupled from the request
// lifecycle that enqueued the message.
type MailConsumer struct {
	group      sarama.ConsumerGroup
	topic      string
	sender     port.MailSender
	logger     *zap.Logger
	retries    int
	retryDelay time.Duration
}

// NewMailConsumer constructs a consumer group member for the mail topic.
func NewMailConsumer(brokers []string, groupID, topic string, sender port.MailSender, log *zap.Logger) (*MailConsumer, error) {
	if sender == nil {
		return nil, fmt.Errorf("mail sender is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}

	return &MailConsumer{
		group:      group,
		topic:      topic,
		sender:     sender,
		logger:     log,
		retries:    3,
		retryDelay: time.Second,
	}, nil
}

// Run consumes until the context is cancelled.
func (c *MailConsumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("kafka consumer error", zap.Error(err))
		}
	}()

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, c); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("kafka consume failed", zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close shuts the consumer group down.
func (c *MailConsumer) Close() error {
	return c.group.Close()
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *MailConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *MailConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim delivers each message with bounded retries. Permanent
// failures are logged and the offset is committed anyway; OTP mail goes
// stale quickly and must never wedge the partition.
func (c *MailConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var envelope mailEnvelope
		if err := json.Unmarshal(message.Value, &envelope); err != nil {
			c.logger.Error("malformed mail envelope",
				zap.Error(err),
				zap.Int64("offset", message.Offset))
			session.MarkMessage(message, "")
			continue
		}

		c.deliver(session.Context(), envelope)
		session.MarkMessage(message, "")
	}
	return nil
}

func (c *MailConsumer) deliver(ctx context.Context, envelope mailEnvelope) {
	var err error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if err = c.sender.SendOTP(ctx, envelope.Payload); err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		if attempt < c.retries {
			time.Sleep(time.Duration(attempt) * c.retryDelay)
		}
	}

	c.logger.Error("otp mail delivery failed",
		zap.String("identity", logger.MaskEmail(envelope.Payload.Identity)),
		zap.String("message_id", envelope.MessageID),
		zap.Error(err),
	)
}

var _ port.MailDispatcher = (*MailDispatcher)(nil)
var _ sarama.ConsumerGroupHandler = (*MailConsumer)(nil)
