package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"matchmaker-backend/internal/matchmaking"
)

// MatchHistoryEntry is one recorded match.
type MatchHistoryEntry struct {
	ID          uuid.UUID `json:"id"`
	Queue       string    `json:"queue"`
	GameID      string    `json:"game_id"`
	Host        string    `json:"host"`
	Port        uint16    `json:"port"`
	TeamCount   int       `json:"team_count"`
	PlayerCount int       `json:"player_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// MatchStore records committed matches in Postgres for history queries.
type MatchStore struct {
	db *sql.DB
}

func NewMatchStore(databaseURL string) (*MatchStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &MatchStore{db: db}
	if err := store.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

func (s *MatchStore) Close() error {
	return s.db.Close()
}

func (s *MatchStore) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			id UUID PRIMARY KEY,
			queue VARCHAR(255) NOT NULL,
			game_id VARCHAR(255) NOT NULL,
			host VARCHAR(255) NOT NULL,
			port INTEGER NOT NULL,
			team_count INTEGER NOT NULL,
			player_count INTEGER NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_queue ON matches(queue)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_created_at ON matches(created_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// SaveMatch records a committed match.
func (s *MatchStore) SaveMatch(record matchmaking.MatchRecord) error {
	players := 0
	for _, team := range record.Teams {
		for _, entry := range team {
			players += len(entry.Players)
		}
	}

	query := `
		INSERT INTO matches (id, queue, game_id, host, port, team_count, player_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.Exec(query,
		uuid.New(),
		record.Queue,
		record.Game.GameID,
		record.Game.Host,
		int(record.Game.Port),
		len(record.Teams),
		players,
		record.Matched,
	)
	if err != nil {
		return fmt.Errorf("failed to save match: %w", err)
	}
	return nil
}

// GetRecentMatches returns the newest matches, optionally filtered by queue.
func (s *MatchStore) GetRecentMatches(queue string, limit int) ([]MatchHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, queue, game_id, host, port, team_count, player_count, created_at
		FROM matches
		WHERE ($1 = '' OR queue = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.Query(query, queue, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []MatchHistoryEntry
	for rows.Next() {
		var entry MatchHistoryEntry
		var port int
		if err := rows.Scan(&entry.ID, &entry.Queue, &entry.GameID, &entry.Host, &port,
			&entry.TeamCount, &entry.PlayerCount, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		entry.Port = uint16(port)
		matches = append(matches, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}

	return matches, nil
}
