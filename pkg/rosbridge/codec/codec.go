// Package codec implements the wire codec abstraction of §4.2: three
// interchangeable strategies (json, cbor, auto) sharing one capability
// set. The chosen codec is fixed for the lifetime of a connection.
package codec

import (
	"encoding/json"
	"fmt"

	nativecbor "github.com/fxamacker/cbor/v2"

	fallbackcbor "github.com/tsarna/rosbridge/pkg/rosbridge/cbor"
)

// Codec is the capability set every wire codec implements.
type Codec interface {
	Name() string
	// Encode produces either a string (text frame) or a []byte (binary
	// frame) representation of v.
	Encode(v any) (any, error)
	// Decode accepts a string or []byte payload and returns the decoded
	// message, normally a map[string]any envelope.
	Decode(payload any) (any, error)
}

const (
	NameJSON = "json"
	NameCBOR = "cbor"
	NameAuto = "auto"
)

// Resolve accepts either a Codec instance or one of NameJSON, NameCBOR,
// NameAuto and returns the corresponding instance. Resolving an already
// resolved Codec is a no-op, satisfying Resolve(Resolve(x)) == Resolve(x).
func Resolve(v any) (Codec, error) {
	switch x := v.(type) {
	case Codec:
		return x, nil
	case string:
		switch x {
		case NameJSON, "":
			return JSON, nil
		case NameCBOR:
			return CBOR, nil
		case NameAuto:
			return Auto, nil
		default:
			return nil, fmt.Errorf("codec: unknown codec %q", x)
		}
	default:
		return nil, fmt.Errorf("codec: cannot resolve codec from %T", v)
	}
}

// JSON is maximally compatible: encode always produces UTF-8 text, decode
// accepts text or bytes (bytes are treated as UTF-8 and parsed as JSON).
var JSON Codec = jsonCodec{}

// CBOR encodes to CBOR bytes and decodes CBOR bytes, but falls back to
// JSON parsing on decode when the payload is text or fails to parse as
// CBOR, since some servers mix frame kinds on one connection.
var CBOR Codec = cborCodec{useNative: true}

// SelfContainedCBOR is the same behavior as CBOR but never attempts the
// native github.com/fxamacker/cbor/v2 path first; it always uses the
// hand-rolled pkg/rosbridge/cbor codec. Exists for environments where the
// native library is unavailable, and for exercising §4.1 directly.
var SelfContainedCBOR Codec = cborCodec{useNative: false}

// Auto encodes as JSON text (maximally compatible on the wire) and
// decodes by inspecting the payload shape: text is parsed as JSON, bytes
// are tried as CBOR first and fall back to JSON on error.
var Auto Codec = autoCodec{}

type jsonCodec struct{}

func (jsonCodec) Name() string { return NameJSON }

func (jsonCodec) Encode(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: json encode: %w", err)
	}
	return string(b), nil
}

func (jsonCodec) Decode(payload any) (any, error) {
	b, err := textBytes(payload)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("codec: json decode: %w", err)
	}
	return out, nil
}

type cborCodec struct {
	useNative bool
}

func (cborCodec) Name() string { return NameCBOR }

func (c cborCodec) Encode(v any) (any, error) {
	if c.useNative {
		b, err := nativecbor.Marshal(v)
		if err == nil {
			return b, nil
		}
	}
	b, err := fallbackcbor.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("codec: cbor encode: %w", err)
	}
	return b, nil
}

func (c cborCodec) Decode(payload any) (any, error) {
	switch p := payload.(type) {
	case []byte:
		if c.useNative {
			var out any
			if err := nativecbor.Unmarshal(p, &out); err == nil {
				return out, nil
			}
		}
		out, err := fallbackcbor.Decode(p)
		if err == nil {
			return out, nil
		}
		return nil, fmt.Errorf("codec: cbor decode: %w", err)
	case string:
		// Some servers mix frame kinds; a text payload on a CBOR
		// connection is treated as JSON rather than an error.
		return JSON.Decode(p)
	default:
		return nil, fmt.Errorf("codec: cbor decode: unsupported payload type %T", payload)
	}
}

type autoCodec struct{}

func (autoCodec) Name() string { return NameAuto }

func (autoCodec) Encode(v any) (any, error) {
	return JSON.Encode(v)
}

func (autoCodec) Decode(payload any) (any, error) {
	switch payload.(type) {
	case string:
		return JSON.Decode(payload)
	case []byte:
		out, err := CBOR.Decode(payload)
		if err == nil {
			return out, nil
		}
		return JSON.Decode(payload)
	default:
		return nil, fmt.Errorf("codec: auto decode: unsupported payload type %T", payload)
	}
}

func textBytes(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	default:
		return nil, fmt.Errorf("codec: unsupported payload type %T", payload)
	}
}
