package codec

import (
	"encoding/base64"
	"encoding/json"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

type jsonCoder struct{}

func (jsonCoder) encode(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (jsonCoder) decode(text string) (any, error) {
	var out any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeAll and DecodeAll are safe for concurrent use, so one encoder and one
// decoder serve every document.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// msgpackCoder packs values with msgpack, compresses them with zstd and
// stores the result as base64 text.
type msgpackCoder struct{}

func (msgpackCoder) encode(value any) (string, error) {
	packed, err := msgpack.Marshal(value)
	if err != nil {
		return "", err
	}
	compressed := zstdEncoder.EncodeAll(packed, nil)
	return base64.StdEncoding.EncodeToString(compressed), nil
}

func (msgpackCoder) decode(text string) (any, error) {
	compressed, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, err
	}
	packed, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, err
	}
	var out any
	if err := msgpack.Unmarshal(packed, &out); err != nil {
		return nil, err
	}
	return out, nil
}
