// Package codec provides the deterministic CBOR encoding shared by signing
// payloads and document snapshots.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items. The same
// logical value always produces identical bytes, which is what makes a
// signature over an entity independent of the replica it was read from.
//
// Workspace types carry `json` struct tags only; fxamacker/cbor falls back to
// them, so a single tag controls field naming and omitempty in both formats.
// Absent optional fields (nil pointers, empty omitempty values) are never
// encoded.
package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// any-typed targets decode maps as map[string]any so values stay
		// compatible with encoding/json.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v. Unknown fields are ignored so newer
// documents remain readable by older code.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Clone deep-copies src into dst through a deterministic encode/decode round
// trip. dst must be a pointer to the same type as src.
func Clone(src, dst any) error {
	b, err := Marshal(src)
	if err != nil {
		return err
	}
	return Unmarshal(b, dst)
}

// NewEncoder returns a stream encoder using the deterministic options.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a stream decoder using the shared decoding options.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}
