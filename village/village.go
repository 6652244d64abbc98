package village

import (
	"encoding/json"
	"reflect"
	"time"
)

// Partition names the cache partition a village lives in.
type Partition string

const (
	PartitionStatic Partition = "static"
	PartitionQuest  Partition = "quest"
	PartitionSave   Partition = "save"
)

// Record is the raw structured form of a village as read from a backend,
// before validation and migration.
type Record map[string]any

// Village is a player's persistent game state.
//
// All nested values are JSON shaped: numbers are float64, lists are []any and
// objects are map[string]any. Callers that mutate a village must be the single
// active writer for that id until Save returns.
type Village struct {
	ID            string           `json:"-"`
	PlayerInfo    map[string]any   `json:"playerInfo"`
	Maps          []map[string]any `json:"maps"`
	PrivateState  map[string]any   `json:"privateState"`
	SchemaVersion *string          `json:"schemaVersion,omitempty"`
}

// Info is the summary projection of a saved village.
type Info struct {
	UserID string `json:"userid"`
	Name   any    `json:"name"`
	XP     any    `json:"xp"`
	Level  any    `json:"level"`
}

// recordShape accepts both the current "schemaVersion" key and the "version"
// key written by older servers.
type recordShape struct {
	PlayerInfo    map[string]any   `json:"playerInfo"`
	Maps          []map[string]any `json:"maps"`
	PrivateState  map[string]any   `json:"privateState"`
	SchemaVersion *string          `json:"schemaVersion"`
	LegacyVersion *string          `json:"version"`
}

// FromRecord validates rec and converts it into a Village with the given id.
func FromRecord(id string, rec Record) (*Village, error) {
	res := Validate(rec)
	if !res.Valid() {
		return nil, InvalidRecord(id, res.Err())
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, InvalidRecord(id, err)
	}

	var shape recordShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, InvalidRecord(id, err)
	}

	v := &Village{
		ID:            id,
		PlayerInfo:    shape.PlayerInfo,
		Maps:          shape.Maps,
		PrivateState:  shape.PrivateState,
		SchemaVersion: shape.SchemaVersion,
	}
	if v.SchemaVersion == nil {
		v.SchemaVersion = shape.LegacyVersion
	}
	if v.Maps == nil {
		v.Maps = []map[string]any{}
	}
	return v, nil
}

// ToRecord returns a JSON-normalized structured copy of v.
func ToRecord(v *Village) Record {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil
	}
	if _, ok := rec["schemaVersion"]; !ok {
		rec["schemaVersion"] = nil
	}
	return rec
}

// Clone returns a deep copy of v.
func Clone(v *Village) *Village {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	out := &Village{}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil
	}
	out.ID = v.ID
	if out.Maps == nil {
		out.Maps = []map[string]any{}
	}
	return out
}

// Equal reports whether a and b hold the same id and the same content.
func Equal(a, b *Village) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && reflect.DeepEqual(ToRecord(a), ToRecord(b))
}

// Version returns the schema version or "" when the village was never migrated.
func (v *Village) Version() string {
	if v.SchemaVersion == nil {
		return ""
	}
	return *v.SchemaVersion
}

// SetVersion stamps the schema version.
func (v *Village) SetVersion(version string) {
	v.SchemaVersion = &version
}

// MapAt returns the map at index i, falling back to the first map when i is
// out of range. It returns nil when the village has no maps.
func (v *Village) MapAt(i int) map[string]any {
	if len(v.Maps) == 0 {
		return nil
	}
	if i < 0 || i >= len(v.Maps) {
		i = 0
	}
	return v.Maps[i]
}

// DefaultMapIndex reads playerInfo.default_map.
func (v *Village) DefaultMapIndex() int {
	n, ok := Number(v.PlayerInfo["default_map"])
	if !ok {
		return 0
	}
	return int(n)
}

// Info projects the save summary from the default map.
func (v *Village) Info() Info {
	info := Info{UserID: v.ID, Name: v.PlayerInfo["name"]}
	if m := v.MapAt(v.DefaultMapIndex()); m != nil {
		info.XP = m["xp"]
		info.Level = m["level"]
	}
	return info
}

// NewFromSeed builds a fresh village from the seed template. The result carries
// no schema version so the first migration run brings it up to date.
func NewFromSeed(seed *Village, id, displayName string, now time.Time) *Village {
	v := Clone(seed)
	v.ID = id
	v.SchemaVersion = nil

	if v.PlayerInfo == nil {
		v.PlayerInfo = map[string]any{}
	}
	v.PlayerInfo["pid"] = id
	if displayName != "" {
		v.PlayerInfo["name"] = displayName
	}

	if len(v.Maps) > 0 {
		v.Maps[0]["timestamp"] = float64(now.Unix())
	}

	if v.PrivateState == nil {
		v.PrivateState = map[string]any{}
	}
	v.PrivateState["timeStampDartsReset"] = float64(0)
	return v
}

// Number converts a JSON-ish numeric value to float64.
func Number(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
