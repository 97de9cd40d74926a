package logger

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

//nolint:gochecknoglobals // static palette shared by every pretty encoder
var (
	levelColors = map[zapcore.Level]*color.Color{
		zapcore.DebugLevel:  color.New(color.FgCyan),
		zapcore.InfoLevel:   color.New(color.FgGreen),
		zapcore.WarnLevel:   color.New(color.FgYellow),
		zapcore.ErrorLevel:  color.New(color.FgRed, color.Bold),
		zapcore.DPanicLevel: color.New(color.FgRed, color.Bold),
		zapcore.PanicLevel:  color.New(color.FgRed, color.Bold),
		zapcore.FatalLevel:  color.New(color.FgMagenta, color.Bold),
	}
	faint   = color.New(color.Faint)
	nameClr = color.New(color.FgBlue)
	keyClr  = color.New(color.FgHiCyan)
	errKey  = color.New(color.FgHiRed)
)

// prettyEncoder renders entries as a colored header line followed by indented fields.
// It reuses the json encoder for field serialization so every zap field type is supported.
type prettyEncoder struct {
	zapcore.Encoder
	pool buffer.Pool
}

func newPrettyLogger(cfg *zap.Config) *zap.Logger {
	enc := &prettyEncoder{
		Encoder: zapcore.NewJSONEncoder(cfg.EncoderConfig),
		pool:    buffer.NewPool(),
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), cfg.Level)
	return zap.New(core, zap.ErrorOutput(zapcore.AddSync(os.Stderr)))
}

func (e *prettyEncoder) Clone() zapcore.Encoder {
	return &prettyEncoder{Encoder: e.Encoder.Clone(), pool: e.pool}
}

func (e *prettyEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	raw, err := e.Encoder.EncodeEntry(entry, fields)
	if err != nil {
		return nil, err
	}
	defer raw.Free()

	out := e.pool.Get()

	var payload map[string]any
	if err := json.Unmarshal(raw.Bytes(), &payload); err != nil {
		out.AppendString(raw.String())
		return out, nil
	}

	out.AppendString(e.header(entry))
	for _, k := range []string{encoderConfig.TimeKey, encoderConfig.LevelKey, encoderConfig.MessageKey, encoderConfig.NameKey} {
		delete(payload, k)
	}
	if len(payload) > 0 {
		out.AppendString(e.fields(payload))
	}
	out.AppendString("\n")
	return out, nil
}

func (e *prettyEncoder) header(entry zapcore.Entry) string {
	ts := entry.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	b.WriteString(faint.Sprint(ts.Format(time.DateTime)))
	b.WriteByte(' ')
	if c, ok := levelColors[entry.Level]; ok {
		b.WriteString(c.Sprintf("%-5s", entry.Level.CapitalString()))
	} else {
		b.WriteString(entry.Level.CapitalString())
	}
	if entry.LoggerName != "" {
		b.WriteString(" ")
		b.WriteString(nameClr.Sprint("[" + entry.LoggerName + "]"))
	}
	if entry.Message != "" {
		b.WriteByte(' ')
		b.WriteString(entry.Message)
	}
	return b.String()
}

func (e *prettyEncoder) fields(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString("\n  ")
		if strings.HasPrefix(k, "error") {
			b.WriteString(errKey.Sprint(k))
		} else {
			b.WriteString(keyClr.Sprint(k))
		}
		b.WriteString(": ")
		b.WriteString(renderValue(payload[k]))
	}
	return b.String()
}

func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any, []any:
		data, err := json.MarshalIndent(val, "  ", "  ")
		if err != nil {
			return "<unprintable>"
		}
		return string(data)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return "<unprintable>"
		}
		return string(data)
	}
}
