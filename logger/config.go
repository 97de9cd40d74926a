package logger

import (
	"github.com/code19m/errx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Supported encodings.
const (
	EncodingJSON   = "json"
	EncodingPretty = "pretty"
)

const levelDebug = "debug"

// Config configures the process logger.
type Config struct {
	// Level is the minimum level emitted: debug, info, warn or error.
	Level string `yaml:"level" validate:"oneof=debug info warn error" default:"info"`

	// Encoding is "json" for log shippers or "pretty" for colored terminal output.
	Encoding string `yaml:"encoding" validate:"oneof=json pretty" default:"json"`

	// Disable builds a no-op logger.
	Disable bool `yaml:"disable" default:"false"`
}

var encoderConfig = zapcore.EncoderConfig{
	MessageKey:     "msg",
	LevelKey:       "level",
	NameKey:        "logger",
	TimeKey:        "time",
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.StringDurationEncoder,
	EncodeName:     zapcore.FullNameEncoder,
}

func (c Config) getZapConfig() (*zap.Config, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	// pretty output post-processes json entries
	return &zap.Config{
		Level:            level,
		Encoding:         EncodingJSON,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}, nil
}
