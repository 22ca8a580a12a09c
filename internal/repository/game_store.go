package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// SavedGame is one persisted game state row.
type SavedGame struct {
	GameID    string
	Checksum  string
	Blob      []byte
	SavedAt   time.Time
	UpdatedAt time.Time
}

// GameStore saves and loads serialized game states.
type GameStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewGameStore creates a game store backed by the given pool.
func NewGameStore(pool *pgxpool.Pool, logger *zap.Logger) *GameStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GameStore{pool: pool, logger: logger}
}

// EnsureSchema creates the saved_games table if it does not exist.
func (s *GameStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS saved_games (
			game_id    TEXT PRIMARY KEY,
			checksum   TEXT NOT NULL,
			blob       BYTEA NOT NULL,
			saved_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure saved_games schema: %w", err)
	}
	return nil
}

// Save upserts the serialized state for a game.
func (s *GameStore) Save(ctx context.Context, gameID string, blob []byte, checksum string) error {
	if gameID == "" {
		return fmt.Errorf("save game: gameID is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO saved_games (game_id, checksum, blob, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (game_id) DO UPDATE
		SET checksum = EXCLUDED.checksum, blob = EXCLUDED.blob, updated_at = now()
	`, gameID, checksum, blob)
	if err != nil {
		return fmt.Errorf("save game %s: %w", gameID, err)
	}
	s.logger.Debug("game saved",
		zap.String("game_id", gameID),
		zap.String("checksum", checksum),
		zap.Int("bytes", len(blob)),
	)
	return nil
}

// Load returns the saved state for a game.
func (s *GameStore) Load(ctx context.Context, gameID string) (*SavedGame, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT game_id, checksum, blob, saved_at, updated_at
		FROM saved_games WHERE game_id = $1
	`, gameID)

	var sg SavedGame
	if err := row.Scan(&sg.GameID, &sg.Checksum, &sg.Blob, &sg.SavedAt, &sg.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("load game %s: not found", gameID)
		}
		return nil, fmt.Errorf("load game %s: %w", gameID, err)
	}
	return &sg, nil
}

// List returns the IDs of all saved games, most recently updated first.
func (s *GameStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT game_id FROM saved_games ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list games: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a saved game.
func (s *GameStore) Delete(ctx context.Context, gameID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM saved_games WHERE game_id = $1`, gameID)
	if err != nil {
		return fmt.Errorf("delete game %s: %w", gameID, err)
	}
	return nil
}
