package kafka

import (
	"time"

	"github.com/IBM/sarama"
	"github.com/code19m/errx"
)

const (
	newestOffset = "newest"
	oldestOffset = "oldest"
)

var initialOffsets = map[string]int64{
	"":           sarama.OffsetNewest,
	newestOffset: sarama.OffsetNewest,
	oldestOffset: sarama.OffsetOldest,
}

// ConsumerConfig configures the consumer group reading one topic.
type ConsumerConfig struct {
	// Brokers is a comma separated list. NewConsumer rejects an empty list.
	Brokers string `yaml:"brokers"`

	// SASL/PLAIN credentials. Both must be set to enable SASL.
	SaslUsername string `yaml:"sasl_username"`
	SaslPassword string `yaml:"sasl_password" mask:"true"`

	// GroupID defaults to the service name.
	GroupID string `yaml:"group_id"`

	KafkaVersion   string        `yaml:"kafka_version"   default:"3.6.0"`
	InitialOffset  string        `yaml:"initial_offset"  default:"newest" validate:"oneof=newest oldest"`
	SessionTimeout time.Duration `yaml:"session_timeout" default:"10s"`

	// HandlerTimeout bounds a single delivery attempt.
	HandlerTimeout time.Duration `yaml:"handler_timeout" default:"10s"`

	// RetryAttempts counts attempts for messages failing with a transient error. 1 disables retrying.
	RetryAttempts uint          `yaml:"retry_attempts" default:"3"     validate:"gte=1"`
	RetryDelay    time.Duration `yaml:"retry_delay"    default:"200ms"`
}

func (c *ConsumerConfig) getSaramaConfig(serviceName string) (*sarama.Config, error) {
	if c.GroupID == "" {
		c.GroupID = serviceName
	}

	version, err := sarama.ParseKafkaVersion(c.KafkaVersion)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	offset, ok := initialOffsets[c.InitialOffset]
	if !ok {
		return nil, errx.New("[kafka] unknown initial offset", errx.WithDetails(errx.D{
			"initial_offset": c.InitialOffset,
		}))
	}

	sc := sarama.NewConfig()
	sc.ClientID = c.GroupID
	sc.Version = version
	sc.Consumer.Offsets.Initial = offset
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}
	if c.SessionTimeout > 0 {
		sc.Consumer.Group.Session.Timeout = c.SessionTimeout
	}

	if c.SaslUsername != "" && c.SaslPassword != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		sc.Net.SASL.User = c.SaslUsername
		sc.Net.SASL.Password = c.SaslPassword
	}

	return sc, nil
}
