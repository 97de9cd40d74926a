// Package ingest consumes interaction events from Kafka and records them through the
// TrackInteraction command.
package ingest

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/code19m/errx"
	"github.com/goccy/go-json"

	"github.com/rise-and-shine/recoengine/cache"
	"github.com/rise-and-shine/recoengine/cqrs"
	"github.com/rise-and-shine/recoengine/kafka"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/meta"
	"github.com/rise-and-shine/recoengine/metrics"
	"github.com/rise-and-shine/recoengine/recommend"
	"github.com/rise-and-shine/recoengine/uow"
)

const CodeInvalidInteraction = "INVALID_INTERACTION"

// Config configures the interaction consumer.
type Config struct {
	Enabled  bool                 `yaml:"enabled"`
	Topic    string               `yaml:"topic"    default:"reco.interactions"`
	Consumer kafka.ConsumerConfig `yaml:"consumer"`
}

// Handler turns one Kafka message into a TrackInteractionCommand.
type Handler struct {
	dispatcher *cqrs.Dispatcher
	logger     logger.Logger
	metrics    *metrics.Metrics
}

func NewHandler(d *cqrs.Dispatcher, log logger.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		dispatcher: d,
		logger:     log.Named("ingest"),
		metrics:    m,
	}
}

// NewConsumer builds the consumer group member for cfg.Topic. Transient failures are retried
// by the consumer; everything else is logged and committed.
func NewConsumer(cfg Config, d *cqrs.Dispatcher, log logger.Logger, m *metrics.Metrics) (*kafka.Consumer, error) {
	h := NewHandler(d, log, m)
	c, err := kafka.NewConsumer(cfg.Consumer, cfg.Topic, h.Handle, log, kafka.WithRetryIf(IsTransient))
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return c, nil
}

// IsTransient reports whether a failed interaction is worth redelivering.
func IsTransient(err error) bool {
	return errx.IsCodeIn(err, uow.CodeTransactionConflict, cache.CodeCacheUnavailable)
}

func (h *Handler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var cmd recommend.TrackInteractionCommand
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		h.metrics.IncIngest(metrics.OutcomeFailure)
		return errx.Wrap(err,
			errx.WithCode(CodeInvalidInteraction),
			errx.WithType(errx.T_Validation),
			errx.WithDetails(errx.D{"key": string(msg.Key)}),
		)
	}
	if cmd.OccurredAt.IsZero() {
		cmd.OccurredAt = msg.Timestamp
	}

	ctx = meta.InjectMetaToContext(ctx, map[meta.ContextKey]string{ //nolint:exhaustive // only keys we own
		meta.PlayerID:  cmd.PlayerID,
		meta.SessionID: cmd.SessionID,
	})

	res := cqrs.Dispatch[recommend.TrackInteractionResult](ctx, h.dispatcher, cmd)
	if res.IsFail() {
		err := res.Err()
		if IsTransient(err) {
			h.metrics.IncIngest(metrics.OutcomeConflict)
		} else {
			h.metrics.IncIngest(metrics.OutcomeFailure)
		}
		return err
	}

	out := res.MustValue()
	if out.Duplicate {
		h.logger.WithContext(ctx).With("recommendation_id", cmd.RecommendationID).Debug("duplicate interaction skipped")
		h.metrics.IncIngest(metrics.OutcomeSkipped)
		return nil
	}

	h.metrics.IncIngest(metrics.OutcomeSuccess)
	return nil
}
