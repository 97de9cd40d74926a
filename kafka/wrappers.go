package kafka

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/avast/retry-go/v4"
	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/meta"
	"github.com/rise-and-shine/recoengine/tracing"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const CodePanicRecovered = "PANIC_RECOVERED"

func (c *Consumer) handlerWithRecovery(next HandleFunc) HandleFunc {
	return func(ctx context.Context, msg *sarama.ConsumerMessage) (err error) {
		defer func() {
			if r := recover(); r != nil {
				stackTrace := make([]byte, 4096) // 4KB
				stackTrace = stackTrace[:runtime.Stack(stackTrace, false)]

				c.logger.
					Named("recovery").
					WithContext(ctx).
					With("stack_trace", string(stackTrace)).
					With("panic_values", fmt.Sprintf("%v", r)).
					Error("panic recovered in kafka handler")

				err = errx.New("panic recovered in kafka handler",
					errx.WithCode(CodePanicRecovered),
					errx.WithType(errx.T_Internal),
					errx.WithDetails(errx.D{
						"topic":        msg.Topic,
						"panic_values": fmt.Sprintf("%v", r),
					}),
				)
			}
		}()
		return next(ctx, msg)
	}
}

func (c *Consumer) handlerWithTracing(next HandleFunc) HandleFunc {
	tracer := otel.Tracer("recoengine/kafka")
	return func(ctx context.Context, msg *sarama.ConsumerMessage) (err error) {
		ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier{msg: msg})

		ctx, span := tracer.Start(ctx, fmt.Sprintf("kafka.%s.consume", msg.Topic),
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.consumer.group.name", c.cfg.GroupID),
				attribute.String("messaging.destination.name", msg.Topic),
				attribute.Int64("messaging.kafka.offset", msg.Offset),
				attribute.String("messaging.kafka.message.key", string(msg.Key)),
			),
			trace.WithSpanKind(trace.SpanKindConsumer),
		)

		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}()

		return next(ctx, msg)
	}
}

func (c *Consumer) handlerWithMetaInjection(next HandleFunc) HandleFunc {
	return func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		ctx = meta.InjectMetaToContext(ctx, map[meta.ContextKey]string{ //nolint:exhaustive // only keys we own
			meta.TraceID:        tracing.TraceID(ctx),
			meta.ActorType:      "system",
			meta.ActorID:        c.cfg.GroupID,
			meta.ServiceName:    meta.GetServiceName(),
			meta.ServiceVersion: meta.GetServiceVersion(),
		})
		return next(ctx, msg)
	}
}

func (c *Consumer) handlerWithTimeout(next HandleFunc) HandleFunc {
	return func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		if c.cfg.HandlerTimeout <= 0 {
			return next(ctx, msg)
		}
		ctx, cancel := context.WithTimeout(ctx, c.cfg.HandlerTimeout)
		defer cancel()
		return next(ctx, msg)
	}
}

func (c *Consumer) handlerWithLogging(next HandleFunc) HandleFunc {
	return func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		start := time.Now()

		err := next(ctx, msg)

		headers := lo.SliceToMap(lo.Compact(msg.Headers), func(h *sarama.RecordHeader) (string, string) {
			return string(h.Key), string(h.Value)
		})

		log := c.logger.Named("access_logger").WithContext(ctx).With(
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"duration", time.Since(start).String(),
			"headers", headers,
		)

		const logMsg = "consumed incoming kafka message"
		if err != nil {
			log.With("error", getErrObject(err)).Error(logMsg)
			return err
		}
		log.Info(logMsg)
		return nil
	}
}

// handlerWithRetry retries errors accepted by the retryIf option with backoff and jitter.
func (c *Consumer) handlerWithRetry(next HandleFunc) HandleFunc {
	return func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		if c.cfg.RetryAttempts <= 1 {
			return next(ctx, msg)
		}

		log := c.logger.Named("retry").WithContext(ctx)

		return retry.Do(
			func() error {
				return next(ctx, msg)
			},
			retry.Attempts(c.cfg.RetryAttempts),
			retry.Delay(c.cfg.RetryDelay),
			retry.MaxJitter(c.cfg.RetryDelay/2),
			retry.LastErrorOnly(true),
			retry.RetryIf(c.retryIf),
			retry.OnRetry(func(n uint, err error) {
				log.
					With("error", getErrObject(err)).
					With("attempt", n+1).
					With("max_attempts", c.cfg.RetryAttempts).
					Warn("retrying kafka message")
			}),
			retry.Context(ctx),
		)
	}
}

// handlerWithErrorHandling attaches the message position to every failure.
func (c *Consumer) handlerWithErrorHandling(next HandleFunc) HandleFunc {
	return func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		err := next(ctx, msg)
		if err == nil {
			return nil
		}
		return errx.Wrap(err, errx.WithDetails(errx.D{
			"topic":     msg.Topic,
			"partition": strconv.Itoa(int(msg.Partition)),
			"offset":    strconv.FormatInt(msg.Offset, 10),
		}))
	}
}

func getErrObject(err error) any {
	e := errx.AsErrorX(err)
	return map[string]any{
		"code":    e.Code(),
		"message": e.Error(),
		"type":    e.Type().String(),
		"trace":   e.Trace(),
		"fields":  e.Fields(),
		"details": e.Details(),
	}
}
