package logging

import (
	"encoding/json"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var bufferPool = buffer.NewPool()

// FlatEncoder writes one JSON object per entry with every field merged at the
// top level next to timestamp, level and message.
type FlatEncoder struct {
	*zapcore.MapObjectEncoder
	cfg zapcore.EncoderConfig
}

// NewFlatEncoder creates a flat JSON encoder using the key names of cfg
func NewFlatEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return &FlatEncoder{
		MapObjectEncoder: zapcore.NewMapObjectEncoder(),
		cfg:              cfg,
	}
}

// Clone creates a copy of the encoder including the fields added through With
func (e *FlatEncoder) Clone() zapcore.Encoder {
	clone := zapcore.NewMapObjectEncoder()
	for k, v := range e.Fields {
		clone.Fields[k] = v
	}
	return &FlatEncoder{MapObjectEncoder: clone, cfg: e.cfg}
}

// EncodeEntry encodes a log entry and its fields into a single JSON line
func (e *FlatEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	enc := zapcore.NewMapObjectEncoder()
	for k, v := range e.Fields {
		enc.Fields[k] = v
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	obj := make(map[string]interface{}, len(enc.Fields)+6)
	for k, v := range enc.Fields {
		if d, ok := v.(time.Duration); ok {
			v = d.String()
		}
		obj[k] = v
	}

	obj[key(e.cfg.TimeKey, "timestamp")] = entry.Time.UTC().Format(time.RFC3339Nano)
	obj[key(e.cfg.LevelKey, "level")] = entry.Level.String()
	obj[key(e.cfg.MessageKey, "message")] = entry.Message
	if entry.LoggerName != "" {
		obj[key(e.cfg.NameKey, "logger")] = entry.LoggerName
	}
	if entry.Caller.Defined {
		obj[key(e.cfg.CallerKey, "caller")] = entry.Caller.TrimmedPath()
	}
	if entry.Stack != "" {
		obj[key(e.cfg.StacktraceKey, "stack")] = entry.Stack
	}

	buf := bufferPool.Get()
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(obj); err != nil {
		buf.Free()
		return nil, err
	}
	return buf, nil
}

func key(configured, fallback string) string {
	if configured == "" || configured == zapcore.OmitKey {
		return fallback
	}
	return configured
}
