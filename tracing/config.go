package tracing

import "time"

const (
	reconnectionPeriod = 30 * time.Second
	maxQueueSize       = 10000
	batchTimeout       = 5 * time.Second
	maxExportBatchSize = 1024
)

// Config selects the OTLP collector and the sampling rate.
type Config struct {
	// Disable installs a no-op provider. Trace ids are still generated for log correlation.
	Disable bool `yaml:"disable" default:"false"`

	// SampleRate is the fraction of root spans kept, from 0 to 1.
	SampleRate float64 `yaml:"sample_rate" default:"1" validate:"gte=0,lte=1"`

	ExporterHost string `yaml:"exporter_host" validate:"required_if=Disable false"`
	ExporterPort int    `yaml:"exporter_port" validate:"required_if=Disable false"`

	// Tags become resource attributes of every span, e.g. deployment environment.
	Tags map[string]string `yaml:"tags"`
}
