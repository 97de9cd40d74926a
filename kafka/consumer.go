// Package kafka runs sarama consumer groups behind a middleware chain of recovery, tracing,
// metadata, logging, retry and timeout.
package kafka

import (
	"context"
	"errors"
	"strings"

	"github.com/IBM/sarama"
	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/meta"
)

// HandleFunc is a delivery handler that should be injected into the consumer.
type HandleFunc func(context.Context, *sarama.ConsumerMessage) error

// Option customizes a Consumer.
type Option func(*Consumer)

// WithRetryIf decides which handler errors are retried. Without it nothing is retried.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Consumer) { c.retryIf = fn }
}

type Consumer struct {
	cfg           ConsumerConfig
	topic         string
	logger        logger.Logger
	consumerGroup sarama.ConsumerGroup
	handler       HandleFunc
	retryIf       func(error) bool
}

// NewConsumer creates a consumer group member for topic. Messages are consumed only after Start.
func NewConsumer(
	cfg ConsumerConfig,
	topic string,
	handleFn HandleFunc,
	log logger.Logger,
	opts ...Option,
) (*Consumer, error) {
	if cfg.Brokers == "" {
		return nil, errx.New("[kafka] brokers are not configured", errx.WithDetails(errx.D{"topic": topic}))
	}

	saramaCfg, err := cfg.getSaramaConfig(meta.GetServiceName())
	if err != nil {
		return nil, errx.Wrap(err)
	}

	consumerGroup, err := sarama.NewConsumerGroup(strings.Split(cfg.Brokers, ","), cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	c := newConsumer(cfg, topic, handleFn, log, opts...)
	c.consumerGroup = consumerGroup
	return c, nil
}

func newConsumer(cfg ConsumerConfig, topic string, handleFn HandleFunc, log logger.Logger, opts ...Option) *Consumer {
	c := &Consumer{
		cfg:     cfg,
		topic:   topic,
		logger:  log.Named("kafka.consumer").With("topic", topic),
		retryIf: func(error) bool { return false },
	}
	for _, opt := range opts {
		opt(c)
	}
	c.handler = c.buildHandlerChain(handleFn)
	return c
}

// Start consumes until ctx is done or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	// the main consume loop, parent of the ConsumeClaim() partition consumer loop
	for {
		err := c.consumerGroup.Consume(ctx, []string{c.topic}, c)
		if err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return errx.Wrap(err)
		}
		if ctx.Err() != nil {
			return nil
		}

		c.logger.Info("[kafka] rebalancing occurred, waiting for new messages")
	}
}

func (c *Consumer) Stop() error {
	if err := c.consumerGroup.Close(); err != nil {
		return errx.Wrap(err)
	}
	return nil
}

// Setup implements sarama.ConsumerGroupHandler contract.
func (c *Consumer) Setup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup implements sarama.ConsumerGroupHandler contract.
func (c *Consumer) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	// NOTE:
	// Do not move the code below to a goroutine.
	// The `ConsumeClaim` itself is called within a goroutine,
	// https://github.com/IBM/sarama/blob/main/consumer_group.go#L27-L29
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			// the chain logs failures; the offset is committed either way
			_ = c.handler(session.Context(), message)

			session.MarkMessage(message, "")

		// Should return when `session.Context()` is done
		// if not, will raise `ErrRebalanceInProgress` or `read tcp <ip>:<port>: i/o timeout` when kafka rebalance
		// https://github.com/IBM/sarama/issues/1192
		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) buildHandlerChain(handler HandleFunc) HandleFunc {
	// build the chain in reverse order (last wrapper first)
	handler = c.handlerWithTimeout(handler)       // 7. timeout, per attempt
	handler = c.handlerWithRetry(handler)         // 6. retry
	handler = c.handlerWithErrorHandling(handler) // 5. error handling
	handler = c.handlerWithLogging(handler)       // 4. logging
	handler = c.handlerWithMetaInjection(handler) // 3. meta
	handler = c.handlerWithTracing(handler)       // 2. tracing
	handler = c.handlerWithRecovery(handler)      // 1. recovery (outermost)

	return handler
}
