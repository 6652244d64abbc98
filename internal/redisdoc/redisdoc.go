package redisdoc

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/go-redis/redis/v8"

	"github.com/goliatone/go-village-store/codec"
	"github.com/goliatone/go-village-store/storage"
	"github.com/goliatone/go-village-store/village"
)

// Name identifies this backend in logs and errors.
const Name = "redis"

// Hash fields of a saved village.
const (
	fieldPlayerInfo          = "playerInfo"
	fieldMapsEncoded         = "maps_encoded"
	fieldPrivateStateEncoded = "privateState_encoded"
	fieldEncoding            = "encoding"
	fieldSchemaVersion       = "schemaVersion"
	fieldLegacyMaps          = "maps"
	fieldLegacyPrivateState  = "privateState"
)

var _ storage.Backend = (*Backend)(nil)

// Options configures key naming.
type Options struct {
	// KeyPrefix is prepended to every key, e.g. "village:".
	KeyPrefix string
}

// NewClient creates a Redis client.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Ping checks the connection.
func Ping(ctx context.Context, client redis.Cmdable) error {
	return client.Ping(ctx).Err()
}

// Backend stores each village as a hash at <prefix>saves:<id> and tracks ids
// in the set <prefix>saves.
type Backend struct {
	client redis.Cmdable
	codec  *codec.Codec
	prefix string
}

// New returns a Backend writing documents with c. A nil codec writes json/v1.
func New(client redis.Cmdable, c *codec.Codec, opts Options) *Backend {
	if c == nil {
		c = codec.Default()
	}
	return &Backend{client: client, codec: c, prefix: opts.KeyPrefix}
}

func (b *Backend) Name() string { return Name }

func (b *Backend) indexKey() string { return b.prefix + "saves" }

func (b *Backend) saveKey(id string) string { return b.prefix + "saves:" + id }

func (b *Backend) LoadOne(ctx context.Context, id string) (village.Record, error) {
	fields, err := b.client.HGetAll(ctx, b.saveKey(id)).Result()
	if err != nil {
		return nil, village.BackendUnavailable(Name, err)
	}
	if len(fields) == 0 {
		return nil, village.NotFound(id)
	}
	return b.decode(id, fields)
}

func (b *Backend) LoadAll(ctx context.Context) ([]storage.Entry, error) {
	ids, err := b.client.SMembers(ctx, b.indexKey()).Result()
	if err != nil {
		return nil, village.BackendUnavailable(Name, err)
	}
	sort.Strings(ids)

	cmds := make([]*redis.StringStringMapCmd, len(ids))
	_, err = b.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, b.saveKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, village.BackendUnavailable(Name, err)
	}

	entries := make([]storage.Entry, 0, len(ids))
	for i, id := range ids {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			// Index entry without a document.
			continue
		}
		rec, err := b.decode(id, fields)
		entries = append(entries, storage.Entry{ID: id, Record: rec, Err: err})
	}
	return entries, nil
}

// Store writes v and clears any legacy native fields in one transaction.
func (b *Backend) Store(ctx context.Context, id string, v *village.Village) error {
	doc, err := b.codec.Encode(v)
	if err != nil {
		return err
	}
	playerInfo, err := json.Marshal(doc.PlayerInfo)
	if err != nil {
		return village.SerializationError(id, err)
	}

	values := map[string]any{
		fieldPlayerInfo:          string(playerInfo),
		fieldMapsEncoded:         doc.MapsEncoded,
		fieldPrivateStateEncoded: doc.PrivateStateEncoded,
		fieldEncoding:            string(doc.Encoding),
	}
	stale := []string{fieldLegacyMaps, fieldLegacyPrivateState}
	if doc.SchemaVersion != nil {
		values[fieldSchemaVersion] = *doc.SchemaVersion
	} else {
		stale = append(stale, fieldSchemaVersion)
	}

	key := b.saveKey(id)
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		pipe.HDel(ctx, key, stale...)
		pipe.SAdd(ctx, b.indexKey(), id)
		return nil
	})
	if err != nil {
		return village.BackendUnavailable(Name, err)
	}
	return nil
}

func (b *Backend) decode(id string, fields map[string]string) (village.Record, error) {
	doc := codec.Document{
		ID:                  id,
		MapsEncoded:         fields[fieldMapsEncoded],
		PrivateStateEncoded: fields[fieldPrivateStateEncoded],
		Encoding:            codec.Encoding(fields[fieldEncoding]),
	}
	if version, ok := fields[fieldSchemaVersion]; ok {
		doc.SchemaVersion = &version
	}

	if raw, ok := fields[fieldPlayerInfo]; ok {
		if err := json.Unmarshal([]byte(raw), &doc.PlayerInfo); err != nil {
			return nil, village.SerializationError(id, err)
		}
	}
	if doc.Encoding == codec.EncodingLegacy {
		if raw, ok := fields[fieldLegacyMaps]; ok {
			if err := json.Unmarshal([]byte(raw), &doc.Maps); err != nil {
				return nil, village.SerializationError(id, err)
			}
		}
		if raw, ok := fields[fieldLegacyPrivateState]; ok {
			if err := json.Unmarshal([]byte(raw), &doc.PrivateState); err != nil {
				return nil, village.SerializationError(id, err)
			}
		}
	}
	return b.codec.Decode(doc)
}
