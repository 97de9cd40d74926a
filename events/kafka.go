package events

import (
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	wkafka "github.com/ThreeDotsLabs/watermill-kafka/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/code19m/errx"
)

// NewKafkaPublisher creates a synchronous Kafka publisher keyed by the partition_key metadata.
func NewKafkaPublisher(cfg Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	saramaCfg := wkafka.DefaultSaramaSyncPublisherConfig()
	saramaCfg.ClientID = cfg.ClientID

	marshaler := wkafka.NewWithPartitioningMarshaler(partitionKey)

	publisher, err := wkafka.NewPublisher(strings.Split(cfg.Brokers, ","), marshaler, saramaCfg, logger)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	return publisher, nil
}

func partitionKey(_ string, msg *message.Message) (string, error) {
	key := msg.Metadata.Get(MetadataPartitionKey)
	if key == "" {
		return "", errx.New("partition key is empty")
	}
	return key, nil
}
