package sqldoc

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-village-store/codec"
	"github.com/goliatone/go-village-store/storage"
	"github.com/goliatone/go-village-store/village"
)

// Name identifies this backend in logs and errors.
const Name = "sql"

var _ storage.Backend = (*Backend)(nil)

// saveRow is one document of the saves collection. Legacy rows fill maps and
// private_state with native JSON and leave the encoded columns and the
// encoding tag empty.
type saveRow struct {
	bun.BaseModel `bun:"table:saves,alias:s"`

	ID                  string          `bun:"id,pk"`
	PlayerInfo          json.RawMessage `bun:"player_info,type:json,notnull"`
	MapsEncoded         string          `bun:"maps_encoded,nullzero"`
	PrivateStateEncoded string          `bun:"private_state_encoded,nullzero"`
	Encoding            string          `bun:"encoding,nullzero"`
	SchemaVersion       *string         `bun:"schema_version"`
	Maps                json.RawMessage `bun:"maps,type:json,nullzero"`
	PrivateState        json.RawMessage `bun:"private_state,type:json,nullzero"`
	UpdatedAt           time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Backend stores villages as documents in a SQL table through bun.
type Backend struct {
	db    *bun.DB
	codec *codec.Codec
	now   func() time.Time
}

// New returns a Backend writing documents with c.
func New(db *bun.DB, c *codec.Codec) *Backend {
	if c == nil {
		c = codec.Default()
	}
	return &Backend{db: db, codec: c, now: time.Now}
}

func (b *Backend) Name() string { return Name }

// DB exposes the underlying connection for the binding store.
func (b *Backend) DB() *bun.DB { return b.db }

func (b *Backend) LoadOne(ctx context.Context, id string) (village.Record, error) {
	row := new(saveRow)
	err := b.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, village.NotFound(id)
		}
		return nil, village.BackendUnavailable(Name, err)
	}
	return b.decode(row)
}

func (b *Backend) LoadAll(ctx context.Context) ([]storage.Entry, error) {
	var rows []saveRow
	if err := b.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, village.BackendUnavailable(Name, err)
	}

	entries := make([]storage.Entry, 0, len(rows))
	for i := range rows {
		rec, err := b.decode(&rows[i])
		entries = append(entries, storage.Entry{ID: rows[i].ID, Record: rec, Err: err})
	}
	return entries, nil
}

// Store upserts v. Writing a legacy row clears its native columns, which
// upgrades it to the encoded layout.
func (b *Backend) Store(ctx context.Context, id string, v *village.Village) error {
	doc, err := b.codec.Encode(v)
	if err != nil {
		return err
	}
	playerInfo, err := json.Marshal(doc.PlayerInfo)
	if err != nil {
		return village.SerializationError(id, err)
	}

	row := &saveRow{
		ID:                  id,
		PlayerInfo:          playerInfo,
		MapsEncoded:         doc.MapsEncoded,
		PrivateStateEncoded: doc.PrivateStateEncoded,
		Encoding:            string(doc.Encoding),
		SchemaVersion:       doc.SchemaVersion,
		UpdatedAt:           b.now().UTC(),
	}

	_, err = b.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("player_info = EXCLUDED.player_info").
		Set("maps_encoded = EXCLUDED.maps_encoded").
		Set("private_state_encoded = EXCLUDED.private_state_encoded").
		Set("encoding = EXCLUDED.encoding").
		Set("schema_version = EXCLUDED.schema_version").
		Set("maps = EXCLUDED.maps").
		Set("private_state = EXCLUDED.private_state").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return village.BackendUnavailable(Name, err)
	}
	return nil
}

func (b *Backend) decode(row *saveRow) (village.Record, error) {
	doc := codec.Document{
		ID:                  row.ID,
		MapsEncoded:         row.MapsEncoded,
		PrivateStateEncoded: row.PrivateStateEncoded,
		Encoding:            codec.Encoding(row.Encoding),
		SchemaVersion:       row.SchemaVersion,
	}

	if err := json.Unmarshal(row.PlayerInfo, &doc.PlayerInfo); err != nil {
		return nil, village.SerializationError(row.ID, err)
	}
	if doc.Encoding == codec.EncodingLegacy {
		if err := unmarshalOptional(row.Maps, &doc.Maps); err != nil {
			return nil, village.SerializationError(row.ID, err)
		}
		if err := unmarshalOptional(row.PrivateState, &doc.PrivateState); err != nil {
			return nil, village.SerializationError(row.ID, err)
		}
	}
	return b.codec.Decode(doc)
}

func unmarshalOptional(raw json.RawMessage, dest *any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
