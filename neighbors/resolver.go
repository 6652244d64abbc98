// Package neighbors builds the friend and neighbor lists the game client shows
// from the static villages and player saves held by the store.
package neighbors

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-village-store/internal/logging"
	"github.com/goliatone/go-village-store/village"
)

// DefaultReservedIDs are the NPC villages that never appear as neighbors.
var DefaultReservedIDs = []string{"100000030", "100000031"}

// resourceKeys are copied from a neighbor's first map into its entry.
var resourceKeys = []string{"xp", "level", "gold", "wood", "oil", "steel"}

// Source is the read side of the village store.
type Source interface {
	Partition(p village.Partition) map[string]*village.Village
	Get(ctx context.Context, id string) (*village.Village, error)
	Lookup(ctx context.Context, id string) (*village.Village, error)
}

// Friend is the minimal entry of the friends list.
type Friend struct {
	ID        string `json:"uid"`
	AvatarRef any    `json:"pic_square"`
}

// Neighbor is a copy of a village's playerInfo merged with the resources of
// its first map.
type Neighbor map[string]any

// PlayerView is what a player receives for their own village.
type PlayerView struct {
	Timestamp    int64          `json:"timestamp"`
	PlayerInfo   map[string]any `json:"playerInfo"`
	Map          map[string]any `json:"map"`
	PrivateState map[string]any `json:"privateState"`
	Neighbors    []Neighbor     `json:"neighbors"`
}

// NeighborView is what a player receives when visiting another village.
type NeighborView struct {
	Timestamp    int64          `json:"timestamp"`
	PlayerInfo   map[string]any `json:"playerInfo"`
	Map          map[string]any `json:"map"`
	PrivateState map[string]any `json:"privateState"`
}

// Resolver computes projections on demand; nothing is cached.
type Resolver struct {
	src      Source
	reserved map[string]bool
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithReservedIDs replaces DefaultReservedIDs.
func WithReservedIDs(ids ...string) Option {
	return func(r *Resolver) {
		r.reserved = make(map[string]bool, len(ids))
		for _, id := range ids {
			r.reserved[id] = true
		}
	}
}

// WithClock overrides time.Now for projection timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = logging.OrNop(l) }
}

// NewResolver returns a Resolver reading villages from src.
func NewResolver(src Source, opts ...Option) *Resolver {
	r := &Resolver{
		src:    src,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	WithReservedIDs(DefaultReservedIDs...)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Friends lists static villages and other players' saves.
func (r *Resolver) Friends(requester string) []Friend {
	var friends []Friend
	r.each(requester, func(id string, v *village.Village) {
		friends = append(friends, Friend{ID: id, AvatarRef: v.PlayerInfo["pic"]})
	})
	return friends
}

// Neighbors lists the same villages as Friends with their playerInfo and
// first-map resources. Villages without maps are skipped.
func (r *Resolver) Neighbors(requester string) []Neighbor {
	var out []Neighbor
	r.each(requester, func(id string, v *village.Village) {
		first := v.MapAt(0)
		if first == nil {
			r.logger.Debug("skipping neighbor without maps", zap.String("village_id", id))
			return
		}
		n := Neighbor(village.Clone(v).PlayerInfo)
		if n == nil {
			n = Neighbor{}
		}
		for _, k := range resourceKeys {
			n[k] = first[k]
		}
		out = append(out, n)
	})
	return out
}

// PlayerInfo returns the player's own village with its first map and the
// neighbor list.
func (r *Resolver) PlayerInfo(ctx context.Context, id string) (PlayerView, error) {
	v, err := r.src.Get(ctx, id)
	if err != nil {
		return PlayerView{}, err
	}
	c := village.Clone(v)
	return PlayerView{
		Timestamp:    r.now().Unix(),
		PlayerInfo:   c.PlayerInfo,
		Map:          c.MapAt(0),
		PrivateState: c.PrivateState,
		Neighbors:    r.Neighbors(id),
	}, nil
}

// NeighborInfo returns any village by id, showing mapIndex. An out of range
// index shows the first map.
func (r *Resolver) NeighborInfo(ctx context.Context, id string, mapIndex int) (NeighborView, error) {
	v, err := r.src.Lookup(ctx, id)
	if err != nil {
		return NeighborView{}, err
	}
	c := village.Clone(v)
	return NeighborView{
		Timestamp:    r.now().Unix(),
		PlayerInfo:   c.PlayerInfo,
		Map:          c.MapAt(mapIndex),
		PrivateState: c.PrivateState,
	}, nil
}

// each visits static villages and then saves, each pool in id order, skipping
// reserved NPCs and the requester in both pools.
func (r *Resolver) each(requester string, fn func(id string, v *village.Village)) {
	for _, p := range []village.Partition{village.PartitionStatic, village.PartitionSave} {
		pool := r.src.Partition(p)
		ids := make([]string, 0, len(pool))
		for id := range pool {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			v := pool[id]
			if r.excluded(requester, id, v) {
				continue
			}
			fn(id, v)
		}
	}
}

func (r *Resolver) excluded(requester, id string, v *village.Village) bool {
	pid, _ := v.PlayerInfo["pid"].(string)
	for _, key := range []string{id, pid} {
		if key == "" {
			continue
		}
		if key == requester || r.reserved[key] {
			return true
		}
	}
	return false
}
