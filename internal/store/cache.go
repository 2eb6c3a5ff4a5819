package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/optiq-ai/optiq/internal/cache"
	"github.com/optiq-ai/optiq/internal/schema"
)

// CacheEntries persists validated stage results so the in-memory cache can
// be warmed across restarts. Payloads are decoded back into the concrete
// stage type keyed by the stage column.
type CacheEntries struct {
	db *DB
}

// NewCacheEntries creates a cache-entry store backed by the given database.
func NewCacheEntries(database *DB) *CacheEntries {
	return &CacheEntries{db: database}
}

// Save upserts one cache entry.
func (s *CacheEntries) Save(ctx context.Context, e cache.Entry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshalling cache payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (fingerprint, stage, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			stage = excluded.stage,
			payload = excluded.payload,
			created_at = excluded.created_at`,
		e.Fingerprint, e.Stage, string(payload), e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting cache entry: %w", err)
	}
	return nil
}

// Load returns all entries younger than maxAge, payloads decoded into the
// stage's concrete type. Rows with an unknown stage are skipped.
func (s *CacheEntries) Load(ctx context.Context, maxAge time.Duration) ([]cache.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint, stage, payload, created_at
		FROM cache_entries WHERE created_at > ?`,
		time.Now().Add(-maxAge).UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying cache entries: %w", err)
	}
	defer rows.Close()

	var out []cache.Entry
	for rows.Next() {
		var e cache.Entry
		var payload string
		if err := rows.Scan(&e.Fingerprint, &e.Stage, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning cache entry: %w", err)
		}
		decoded, err := decodePayload(schema.Stage(e.Stage), payload)
		if err != nil {
			return nil, fmt.Errorf("decoding cache entry %s: %w", e.Fingerprint, err)
		}
		if decoded == nil {
			continue
		}
		e.Payload = decoded
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries older than maxAge and reports how many went.
func (s *CacheEntries) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE created_at <= ?`,
		time.Now().Add(-maxAge).UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning cache entries: %w", err)
	}
	return res.RowsAffected()
}

func decodePayload(stage schema.Stage, payload string) (any, error) {
	var dst any
	switch stage {
	case schema.StageIntent:
		dst = new(schema.IntentResult)
	case schema.StageDataAnalysis:
		dst = new(schema.DataAnalysisResult)
	case schema.StageModelBuilding:
		dst = new(schema.OptimizationModel)
	case schema.StageSolving:
		dst = new(schema.SolutionRecord)
	default:
		return nil, nil
	}
	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		return nil, err
	}
	return dst, nil
}
