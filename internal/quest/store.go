package quest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Location of the player record in the blob store.
const (
	StateNamespace = "scavenger_sensory_hunt"
	StateKey       = "player_state"
)

// StateVersion is written into every saved record. Decoding rejects any
// other version until a migration exists for it.
const StateVersion = 1

// ErrUnsupportedVersion is returned when a stored record has an unknown
// format version.
var ErrUnsupportedVersion = errors.New("unsupported player state version")

// Store loads and saves the player record. Load returns ErrNotFound when
// nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) (PlayerState, error)
	Save(ctx context.Context, state PlayerState) error
}

// BlobStore is a namespaced key/value store for opaque records.
type BlobStore interface {
	Load(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Save(ctx context.Context, namespace, key string, data []byte) error
}

// BlobGateway stores the player record as a versioned JSON blob.
type BlobGateway struct {
	blobs     BlobStore
	namespace string
	key       string
}

// NewBlobGateway returns a gateway using the standard namespace and key.
func NewBlobGateway(blobs BlobStore) *BlobGateway {
	return &BlobGateway{blobs: blobs, namespace: StateNamespace, key: StateKey}
}

func (g *BlobGateway) Load(ctx context.Context) (PlayerState, error) {
	data, ok, err := g.blobs.Load(ctx, g.namespace, g.key)
	if err != nil {
		return PlayerState{}, fmt.Errorf("load player state: %w", err)
	}
	if !ok {
		return PlayerState{}, ErrNotFound
	}
	return DecodeState(data)
}

func (g *BlobGateway) Save(ctx context.Context, state PlayerState) error {
	data, err := EncodeState(state)
	if err != nil {
		return err
	}
	if err := g.blobs.Save(ctx, g.namespace, g.key, data); err != nil {
		return fmt.Errorf("save player state: %w", err)
	}
	return nil
}

type stateEnvelope struct {
	Version int         `json:"version"`
	Player  PlayerState `json:"player"`
}

// EncodeState serializes state with the current format version.
func EncodeState(state PlayerState) ([]byte, error) {
	data, err := json.Marshal(stateEnvelope{Version: StateVersion, Player: state})
	if err != nil {
		return nil, fmt.Errorf("encode player state: %w", err)
	}
	return data, nil
}

// DecodeState parses a record written by EncodeState.
func DecodeState(data []byte) (PlayerState, error) {
	var env stateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return PlayerState{}, fmt.Errorf("decode player state: %w", err)
	}
	if env.Version != StateVersion {
		return PlayerState{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
	if len(env.Player.Quests) > MaxPlayerQuests {
		return PlayerState{}, fmt.Errorf("decode player state: %d quests exceeds capacity %d", len(env.Player.Quests), MaxPlayerQuests)
	}
	return env.Player, nil
}
