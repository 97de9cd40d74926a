package events

const (
	DriverKafka     = "kafka"
	DriverInProcess = "inprocess"
)

// Config selects and configures the event transport.
type Config struct {
	// Driver is "kafka" for production and "inprocess" for single-process setups and tests.
	Driver string `yaml:"driver" default:"inprocess" validate:"oneof=kafka inprocess"`

	// Brokers is a comma separated list of Kafka brokers. Required for the kafka driver.
	Brokers string `yaml:"brokers" validate:"required_if=Driver kafka"`

	// ClientID identifies this service to the brokers.
	ClientID string `yaml:"client_id" default:"recoengine"`

	// TopicPrefix is prepended to every event type: "{prefix}.{event_type}".
	TopicPrefix string `yaml:"topic_prefix" default:"reco"`
}
