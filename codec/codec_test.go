package codec

import (
	"encoding/json"
	"testing"

	"github.com/goliatone/go-village-store/pkg/testsupport"
	"github.com/goliatone/go-village-store/village"
)

func sampleVillage(t *testing.T) *village.Village {
	t.Helper()

	rec := village.Record(testsupport.VillageRecord("v-1", "Ana"))
	m := testsupport.MapRecord(40, 3, 900)
	m["items"] = map[string]any{"tree": []any{float64(1), float64(2)}, "flag": true, "label": "north"}
	rec["maps"] = append(rec["maps"].([]any), m)
	rec["privateState"].(map[string]any)["nested"] = map[string]any{"deep": []any{"a", nil}}

	v, err := village.FromRecord("v-1", rec)
	if err != nil {
		t.Fatalf("fixture invalid: %v", err)
	}
	v.SetVersion("4")
	return v
}

func TestRoundTrip(t *testing.T) {
	for _, enc := range []Encoding{EncodingJSON, EncodingMsgpack} {
		t.Run(string(enc), func(t *testing.T) {
			c, err := New(enc)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			v := sampleVillage(t)

			doc, err := c.Encode(v)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if doc.Encoding != enc {
				t.Errorf("expected encoding tag %s, got %s", enc, doc.Encoding)
			}
			if doc.MapsEncoded == "" || doc.PrivateStateEncoded == "" {
				t.Errorf("expected encoded text fields to be populated")
			}
			if doc.Maps != nil || doc.PrivateState != nil {
				t.Errorf("native fields must not be written")
			}

			rec, err := c.Decode(doc)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			got, err := village.FromRecord(v.ID, rec)
			if err != nil {
				t.Fatalf("decoded record invalid: %v", err)
			}
			if !village.Equal(v, got) {
				t.Errorf("round trip mismatch:\nwant %v\ngot  %v", village.ToRecord(v), village.ToRecord(got))
			}
		})
	}
}

func TestDecodeReadsEveryEncodingRegardlessOfWriter(t *testing.T) {
	jsonCodec := Default()
	packCodec, _ := New(EncodingMsgpack)
	v := sampleVillage(t)

	doc, _ := packCodec.Encode(v)
	rec, err := jsonCodec.Decode(doc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, _ := village.FromRecord(v.ID, rec)
	if !village.Equal(v, got) {
		t.Errorf("expected json codec to read msgpack documents")
	}
}

func TestLegacyDocumentEquivalence(t *testing.T) {
	v := sampleVillage(t)
	c := Default()

	current, _ := c.Encode(v)

	rec := village.ToRecord(v)
	raw, _ := json.Marshal(map[string]any{
		"playerInfo":    rec["playerInfo"],
		"maps":          rec["maps"],
		"privateState":  rec["privateState"],
		"schemaVersion": "4",
	})
	var legacy Document
	if err := json.Unmarshal(raw, &legacy); err != nil {
		t.Fatalf("unmarshal legacy: %v", err)
	}
	legacy.ID = v.ID
	if !legacy.IsLegacy() {
		t.Fatal("expected untagged document to be legacy")
	}

	fromLegacy, err := c.Decode(legacy)
	if err != nil {
		t.Fatalf("Decode legacy: %v", err)
	}
	fromCurrent, err := c.Decode(current)
	if err != nil {
		t.Fatalf("Decode current: %v", err)
	}

	a, _ := village.FromRecord(v.ID, fromLegacy)
	b, _ := village.FromRecord(v.ID, fromCurrent)
	if !village.Equal(a, b) {
		t.Errorf("legacy and current documents decode differently")
	}
}

func TestDecodeUntaggedEncodedDocument(t *testing.T) {
	v := sampleVillage(t)
	rec := village.ToRecord(v)
	maps, _ := json.Marshal(rec["maps"])
	state, _ := json.Marshal(rec["privateState"])
	version := "4"

	doc := Document{
		ID:                  v.ID,
		PlayerInfo:          v.PlayerInfo,
		MapsEncoded:         string(maps),
		PrivateStateEncoded: string(state),
		SchemaVersion:       &version,
	}
	if doc.IsLegacy() {
		t.Fatal("untagged document with encoded text must not be legacy")
	}

	decoded, err := Default().Decode(doc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, err := village.FromRecord(v.ID, decoded)
	if err != nil {
		t.Fatalf("decoded record invalid: %v", err)
	}
	if !village.Equal(v, got) {
		t.Errorf("untagged document mismatch:\nwant %v\ngot  %v", rec, village.ToRecord(got))
	}
}

func TestDecodeUntaggedMixedDocument(t *testing.T) {
	v := sampleVillage(t)
	rec := village.ToRecord(v)
	maps, _ := json.Marshal(rec["maps"])

	doc := Document{
		ID:           v.ID,
		PlayerInfo:   v.PlayerInfo,
		MapsEncoded:  string(maps),
		PrivateState: rec["privateState"],
	}

	decoded, err := Default().Decode(doc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !village.IsValid(decoded) {
		t.Errorf("expected encoded maps with native privateState to be valid: %v", decoded)
	}
}

func TestDecodeUntaggedMalformedText(t *testing.T) {
	doc := Document{ID: "x", PlayerInfo: map[string]any{"pid": "x"}, MapsEncoded: "[{", PrivateStateEncoded: "{}"}

	_, err := Default().Decode(doc)
	if !village.IsSerializationError(err) {
		t.Fatalf("expected serialization error, got %v", err)
	}
}

func TestLegacyDocumentMissingFieldsFailsValidation(t *testing.T) {
	doc := Document{ID: "x", PlayerInfo: map[string]any{"pid": "x"}}

	rec, err := Default().Decode(doc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if village.IsValid(rec) {
		t.Errorf("expected legacy document without maps to be invalid")
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
	}{
		{
			name: "bad json maps",
			doc:  Document{ID: "x", Encoding: EncodingJSON, MapsEncoded: "[{", PrivateStateEncoded: "{}"},
		},
		{
			name: "bad json private state",
			doc:  Document{ID: "x", Encoding: EncodingJSON, MapsEncoded: "[]", PrivateStateEncoded: ""},
		},
		{
			name: "bad base64",
			doc:  Document{ID: "x", Encoding: EncodingMsgpack, MapsEncoded: "!!!", PrivateStateEncoded: "!!!"},
		},
		{
			name: "not zstd",
			doc:  Document{ID: "x", Encoding: EncodingMsgpack, MapsEncoded: "aGVsbG8=", PrivateStateEncoded: "aGVsbG8="},
		},
		{
			name: "unknown tag",
			doc:  Document{ID: "x", Encoding: "yaml/v9", MapsEncoded: "[]", PrivateStateEncoded: "{}"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Default().Decode(tt.doc)
			if !village.IsSerializationError(err) {
				t.Fatalf("expected serialization error, got %v", err)
			}
		})
	}
}

func TestNewRejectsUnwritableEncodings(t *testing.T) {
	for _, enc := range []Encoding{EncodingLegacy, "gob/v1"} {
		if _, err := New(enc); err == nil {
			t.Errorf("expected New(%q) to fail", enc)
		}
	}
}

func TestEncodeNormalizesNilCollections(t *testing.T) {
	v := &village.Village{ID: "x", PlayerInfo: map[string]any{"pid": "x"}}

	doc, err := Default().Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if doc.MapsEncoded != "[]" || doc.PrivateStateEncoded != "{}" {
		t.Errorf("unexpected encoded fields %q %q", doc.MapsEncoded, doc.PrivateStateEncoded)
	}
}

func TestDocumentJSONShape(t *testing.T) {
	doc, _ := Default().Encode(sampleVillage(t))
	raw, _ := json.Marshal(doc)

	var fields map[string]any
	_ = json.Unmarshal(raw, &fields)
	for _, key := range []string{"playerInfo", "maps_encoded", "privateState_encoded", "encoding", "schemaVersion"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("expected key %s in %s", key, raw)
		}
	}
	for _, key := range []string{"maps", "privateState"} {
		if _, ok := fields[key]; ok {
			t.Errorf("unexpected native key %s", key)
		}
	}
}
