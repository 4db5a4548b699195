package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// NoDataToken is the reserved token meaning "no chart is available".
const NoDataToken = "0"

// ArtifactStatus describes what a token resolves to.
type ArtifactStatus int

// Artifact statuses.
const (
	ArtifactUnknown ArtifactStatus = iota
	ArtifactUnavailable
	ArtifactReady
)

func (s ArtifactStatus) String() string {
	switch s {
	case ArtifactReady:
		return "ready"
	case ArtifactUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Artifact is a rendered chart (or the lack of one) referenced by token.
type Artifact struct {
	Token  string
	Status ArtifactStatus
	Path   string
}

// UnavailableArtifact is the sentinel result of a build that produced no data.
func UnavailableArtifact() Artifact {
	return Artifact{Token: NoDataToken, Status: ArtifactUnavailable}
}

// ArtifactToken derives the retrieval token for a pair, e.g. "USD-CAD".
// Identical pairs share a token, so a later build replaces an earlier one's chart.
func ArtifactToken(base, quote string) string {
	return base + "-" + quote
}

// ArtifactRegistry maps tokens to rendered artifacts.
type ArtifactRegistry interface {
	Register(ctx context.Context, a Artifact) error
	Resolve(ctx context.Context, token string) (Artifact, error)
}

// MemoryArtifactRegistry keeps artifacts in process memory.
type MemoryArtifactRegistry struct {
	mu    sync.RWMutex
	paths map[string]string
}

// NewMemoryArtifactRegistry creates an empty registry.
func NewMemoryArtifactRegistry() *MemoryArtifactRegistry {
	return &MemoryArtifactRegistry{paths: make(map[string]string)}
}

// Register records a ready artifact. Registering the sentinel is a no-op.
func (r *MemoryArtifactRegistry) Register(_ context.Context, a Artifact) error {
	if a.Token == NoDataToken {
		return nil
	}
	if err := validateReady(a); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[a.Token] = a.Path
	return nil
}

// Resolve looks a token up.
func (r *MemoryArtifactRegistry) Resolve(_ context.Context, token string) (Artifact, error) {
	if token == NoDataToken {
		return UnavailableArtifact(), nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	path, ok := r.paths[token]
	if !ok {
		return Artifact{Token: token, Status: ArtifactUnknown}, nil
	}
	return Artifact{Token: token, Status: ArtifactReady, Path: path}, nil
}

const artifactsKey = "artifacts:charts"

// RedisArtifactRegistry keeps token->path entries in a Redis hash so every process
// (bot, HTTP API, workers) sees the same charts.
type RedisArtifactRegistry struct {
	rdb *redis.Client
}

// NewRedisArtifactRegistry creates a registry backed by rdb.
func NewRedisArtifactRegistry(rdb *redis.Client) *RedisArtifactRegistry {
	return &RedisArtifactRegistry{rdb: rdb}
}

// Register records a ready artifact. Registering the sentinel is a no-op.
func (r *RedisArtifactRegistry) Register(ctx context.Context, a Artifact) error {
	if a.Token == NoDataToken {
		return nil
	}
	if err := validateReady(a); err != nil {
		return err
	}
	if err := r.rdb.HSet(ctx, artifactsKey, a.Token, a.Path).Err(); err != nil {
		return fmt.Errorf("%w: register artifact %s: %w", ErrStore, a.Token, err)
	}
	return nil
}

// Resolve looks a token up.
func (r *RedisArtifactRegistry) Resolve(ctx context.Context, token string) (Artifact, error) {
	if token == NoDataToken {
		return UnavailableArtifact(), nil
	}

	path, err := r.rdb.HGet(ctx, artifactsKey, token).Result()
	if err == redis.Nil {
		return Artifact{Token: token, Status: ArtifactUnknown}, nil
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: resolve artifact %s: %w", ErrStore, token, err)
	}
	return Artifact{Token: token, Status: ArtifactReady, Path: path}, nil
}

func validateReady(a Artifact) error {
	if a.Status != ArtifactReady || a.Path == "" || a.Token == "" {
		return fmt.Errorf("artifact %q must be ready with a path", a.Token)
	}
	return nil
}

var (
	_ ArtifactRegistry = (*MemoryArtifactRegistry)(nil)
	_ ArtifactRegistry = (*RedisArtifactRegistry)(nil)
)
