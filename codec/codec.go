package codec

import (
	"fmt"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-village-store/village"
)

// Encoding tags the text format of the encoded fields of a Document.
type Encoding string

const (
	// EncodingLegacy marks untagged documents. They store maps and
	// privateState either natively or as JSON text. It is readable but never
	// written.
	EncodingLegacy  Encoding = ""
	EncodingJSON    Encoding = "json/v1"
	EncodingMsgpack Encoding = "msgpack+zstd/v2"
)

// Document is the stored shape of a village in a document store.
type Document struct {
	ID                  string         `json:"-"`
	PlayerInfo          map[string]any `json:"playerInfo"`
	MapsEncoded         string         `json:"maps_encoded,omitempty"`
	PrivateStateEncoded string         `json:"privateState_encoded,omitempty"`
	Encoding            Encoding       `json:"encoding,omitempty"`
	SchemaVersion       *string        `json:"schemaVersion,omitempty"`

	// Native fields found on legacy documents only.
	Maps         any `json:"maps,omitempty"`
	PrivateState any `json:"privateState,omitempty"`
}

// IsLegacy reports whether the document predates the encoded layout: no
// encoding tag and no encoded text.
func (d Document) IsLegacy() bool {
	return d.Encoding == EncodingLegacy && d.MapsEncoded == "" && d.PrivateStateEncoded == ""
}

// textEncoding is the encoding of the encoded fields. Untagged documents that
// carry encoded text were written as plain JSON.
func (d Document) textEncoding() Encoding {
	if d.Encoding == EncodingLegacy {
		return EncodingJSON
	}
	return d.Encoding
}

type textCoder interface {
	encode(value any) (string, error)
	decode(text string) (any, error)
}

var coders = map[Encoding]textCoder{
	EncodingJSON:    jsonCoder{},
	EncodingMsgpack: msgpackCoder{},
}

// ParseEncoding maps a configured encoding name onto a writable Encoding.
func ParseEncoding(name string) (Encoding, error) {
	enc := Encoding(name)
	if _, ok := coders[enc]; !ok {
		return "", errors.New(fmt.Sprintf("unknown document encoding %q", name), errors.CategoryBadInput)
	}
	return enc, nil
}

// Codec converts villages to documents and back.
type Codec struct {
	encoding Encoding
}

// New returns a Codec that writes enc. Any known encoding, legacy included,
// can be read back.
func New(enc Encoding) (*Codec, error) {
	if _, err := ParseEncoding(string(enc)); err != nil {
		return nil, err
	}
	return &Codec{encoding: enc}, nil
}

// Default returns a Codec writing EncodingJSON.
func Default() *Codec {
	return &Codec{encoding: EncodingJSON}
}

// Encoding returns the tag written by Encode.
func (c *Codec) Encoding() Encoding {
	return c.encoding
}

// Encode converts v into its document form.
func (c *Codec) Encode(v *village.Village) (Document, error) {
	coder := coders[c.encoding]

	maps := any(v.Maps)
	if v.Maps == nil {
		maps = []any{}
	}
	privateState := any(v.PrivateState)
	if v.PrivateState == nil {
		privateState = map[string]any{}
	}

	mapsText, err := coder.encode(maps)
	if err != nil {
		return Document{}, village.SerializationError(v.ID, err)
	}
	stateText, err := coder.encode(privateState)
	if err != nil {
		return Document{}, village.SerializationError(v.ID, err)
	}

	doc := Document{
		ID:                  v.ID,
		PlayerInfo:          v.PlayerInfo,
		MapsEncoded:         mapsText,
		PrivateStateEncoded: stateText,
		Encoding:            c.encoding,
	}
	if v.SchemaVersion != nil {
		version := *v.SchemaVersion
		doc.SchemaVersion = &version
	}
	return doc, nil
}

// Decode reconstructs the raw record held by doc. The record still needs
// validation before it becomes a village.
func (c *Codec) Decode(doc Document) (village.Record, error) {
	rec := village.Record{}
	if doc.PlayerInfo != nil {
		rec["playerInfo"] = doc.PlayerInfo
	}
	if doc.SchemaVersion != nil {
		rec["schemaVersion"] = *doc.SchemaVersion
	}

	if doc.IsLegacy() {
		if doc.Maps != nil {
			rec["maps"] = doc.Maps
		}
		if doc.PrivateState != nil {
			rec["privateState"] = doc.PrivateState
		}
		return rec, nil
	}

	coder, ok := coders[doc.textEncoding()]
	if !ok {
		return nil, village.SerializationError(doc.ID, fmt.Errorf("unknown encoding %q", doc.Encoding))
	}

	maps, err := decodeField(coder, doc.MapsEncoded, doc.Maps, doc.Encoding)
	if err != nil {
		return nil, village.SerializationError(doc.ID, fmt.Errorf("maps: %w", err))
	}
	privateState, err := decodeField(coder, doc.PrivateStateEncoded, doc.PrivateState, doc.Encoding)
	if err != nil {
		return nil, village.SerializationError(doc.ID, fmt.Errorf("privateState: %w", err))
	}

	if maps != nil {
		rec["maps"] = maps
	}
	if privateState != nil {
		rec["privateState"] = privateState
	}
	return rec, nil
}

// decodeField decodes one encoded field. A partially migrated untagged
// document may still hold the other field natively.
func decodeField(coder textCoder, text string, native any, enc Encoding) (any, error) {
	if text == "" && enc == EncodingLegacy {
		return native, nil
	}
	return coder.decode(text)
}
