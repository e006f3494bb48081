package events

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Envelope is the wire form of an event: a name plus keyword fields.
// Envelopes are streamed back to back as CBOR data items.
type Envelope struct {
	Name   string         `cbor:"name" json:"name"`
	Fields map[string]any `cbor:"fields" json:"fields"`
}

// Decode turns the envelope into a typed event.
func (e Envelope) Decode() (Event, error) {
	return Decode(e.Name, e.Fields)
}

// EnvelopeOf renders ev as an envelope.
func EnvelopeOf(ev Event) Envelope {
	return Envelope{Name: ev.Name(), Fields: Fields(ev)}
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("events: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("events: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes an envelope.
func Marshal(e Envelope) ([]byte, error) {
	return encMode.Marshal(e)
}

// Unmarshal decodes a single envelope.
func Unmarshal(data []byte, e *Envelope) error {
	return decMode.Unmarshal(data, e)
}

// NewEncoder returns a streaming envelope encoder writing to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a streaming envelope decoder reading from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}
