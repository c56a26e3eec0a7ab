package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// SchemaVersion is bumped whenever a stage payload changes shape.
// Artifacts written with another version are treated as cache misses.
const SchemaVersion = 1

// Meta describes a stored payload
type Meta struct {
	Schema    int       `json:"schema" msgpack:"schema"`
	Period    string    `json:"period" msgpack:"period"`
	Stage     string    `json:"stage" msgpack:"stage"`
	Method    string    `json:"method" msgpack:"method"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}

// Codec serializes an envelope (meta + payload)
type Codec interface {
	Name() string
	Ext() string
	Encode(meta Meta, payload interface{}) ([]byte, error)
	// Decode fills dest with the payload; dest may be nil to read meta only
	Decode(data []byte, dest interface{}) (Meta, error)
}

// NewCodec returns the codec registered under name
func NewCodec(name string) (Codec, error) {
	switch name {
	case "json", "":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown artifact codec %q", name)
	}
}

// JSONCodec writes indented, human-inspectable JSON
type JSONCodec struct{}

type jsonEnvelope struct {
	Meta
	Payload json.RawMessage `json:"payload"`
}

func (JSONCodec) Name() string { return "json" }
func (JSONCodec) Ext() string  { return ".json" }

func (JSONCodec) Encode(meta Meta, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonEnvelope{Meta: meta, Payload: raw}); err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return buf.Bytes(), nil
}

func (JSONCodec) Decode(data []byte, dest interface{}) (Meta, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Meta{}, fmt.Errorf("decode envelope: %w", err)
	}
	if dest != nil {
		if err := json.Unmarshal(env.Payload, dest); err != nil {
			return env.Meta, fmt.Errorf("decode payload: %w", err)
		}
	}
	return env.Meta, nil
}

// MsgpackCodec writes compact msgpack. Struct fields use their json tags.
type MsgpackCodec struct{}

type msgpackEnvelope struct {
	Meta    Meta               `msgpack:"meta"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

func (MsgpackCodec) Name() string { return "msgpack" }
func (MsgpackCodec) Ext() string  { return ".msgpack" }

func (MsgpackCodec) Encode(meta Meta, payload interface{}) ([]byte, error) {
	raw, err := msgpackMarshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	data, err := msgpackMarshal(msgpackEnvelope{Meta: meta, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

func (MsgpackCodec) Decode(data []byte, dest interface{}) (Meta, error) {
	var env msgpackEnvelope
	if err := msgpackUnmarshal(data, &env); err != nil {
		return Meta{}, fmt.Errorf("decode envelope: %w", err)
	}
	if dest != nil {
		if err := msgpackUnmarshal(env.Payload, dest); err != nil {
			return env.Meta, fmt.Errorf("decode payload: %w", err)
		}
	}
	return env.Meta, nil
}

func msgpackMarshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func msgpackUnmarshal(data []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
