// Package checkpoint persists session snapshots to Redis so a paused
// interview can resume after a reconnect, and final assessments survive
// process restarts.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/voxhire/interview-agent/internal/models"
)

// ErrNotFound is returned when no snapshot exists for a session.
var ErrNotFound = errors.New("checkpoint not found")

const (
	snapshotKeyPrefix   = "interview:snapshot:"
	assessmentKeyPrefix = "interview:assessment:"
	snapshotTTL         = 24 * time.Hour
)

// Connect dials Redis with bounded exponential backoff.
func Connect(ctx context.Context, addr string, password string, maxRetries int, logger *zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		DB:              0,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
	})

	var err error
	for i := range maxRetries {
		if i > 0 {
			backoff := time.Duration(1<<uint(i)) * time.Second
			logger.Info().Dur("backoff", backoff).Msg("waiting before Redis retry")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		err = client.Ping(ctx).Err()
		if err == nil {
			logger.Info().Int("attempts_needed", i+1).Msg("Redis connected")
			return client, nil
		}

		logger.Warn().Err(err).Int("attempt", i+1).Msg("Redis ping failed")
	}

	return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", maxRetries, err)
}

// Store reads and writes checkpoint snapshots keyed by session id.
type Store struct {
	client *redis.Client
	logger *zerolog.Logger
}

func NewStore(client *redis.Client, logger *zerolog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// Save writes the snapshot. Called at every pause.
func (s *Store) Save(ctx context.Context, snapshot models.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := snapshotKeyPrefix + snapshot.SessionID
	if err := s.client.Set(ctx, key, payload, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", key, err)
	}

	s.logger.Info().
		Str("session_id", snapshot.SessionID).
		Str("stage", string(snapshot.Stage)).
		Int("turns", len(snapshot.Transcript)).
		Msg("checkpoint saved")

	return nil
}

// Load reads the snapshot for a session. Called at every resume.
func (s *Store) Load(ctx context.Context, sessionID string) (*models.Snapshot, error) {
	payload, err := s.client.Get(ctx, snapshotKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot for %s: %w", sessionID, err)
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", sessionID, err)
	}

	return &snapshot, nil
}

// Delete removes the snapshot once a session reaches a terminal state.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, snapshotKeyPrefix+sessionID).Err()
}

// SaveAssessment persists the final assessment at termination.
func (s *Store) SaveAssessment(ctx context.Context, assessment models.Assessment) error {
	payload, err := json.Marshal(assessment)
	if err != nil {
		return fmt.Errorf("failed to encode assessment: %w", err)
	}

	key := assessmentKeyPrefix + assessment.SessionID
	if err := s.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to write assessment %s: %w", key, err)
	}

	s.logger.Info().Str("session_id", assessment.SessionID).Msg("assessment persisted")
	return nil
}
