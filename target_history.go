package onlineplayers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// HistoryTarget records every cycle and each player's join and leave times in
// a SQLite database.
type HistoryTarget struct {
	path string
	db   *sql.DB
	log  *zap.Logger
}

// Session is one continuous stretch a player was seen online.
type Session struct {
	PlayerID string
	Name     string
	JoinedAt time.Time
	LeftAt   *time.Time
}

// OpenHistory opens (creating if needed) the history database at path.
func OpenHistory(path string, log *zap.Logger) (*HistoryTarget, error) {
	if path == "" {
		return nil, fmt.Errorf("empty history db path")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initHistoryPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initHistorySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &HistoryTarget{path: path, db: db, log: log}, nil
}

func initHistoryPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initHistorySchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			online INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			player_id TEXT NOT NULL,
			name TEXT NOT NULL,
			joined_at TEXT NOT NULL,
			left_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_open ON sessions(player_id) WHERE left_at IS NULL;`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Name implements Target.
func (t *HistoryTarget) Name() string {
	return fmt.Sprintf("HistoryTarget(%s)", t.path)
}

// Update implements Target. Players missing from the frame have their open
// session closed; newly seen players get a new session.
func (t *HistoryTarget) Update(ctx context.Context, frame *Frame) error {
	if frame == nil {
		return fmt.Errorf("no frame to record")
	}
	at := frame.RenderedAt.UTC().Format(time.RFC3339Nano)

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO cycles(at, online) VALUES(?, ?)`, at, len(frame.Players)); err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}

	open := make(map[string]bool)
	rows, err := tx.QueryContext(ctx, `SELECT player_id FROM sessions WHERE left_at IS NULL`)
	if err != nil {
		return fmt.Errorf("open sessions: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		open[id] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}

	online := make(map[string]bool, len(frame.Players))
	for _, p := range frame.Players {
		online[p.ID] = true
		if open[p.ID] {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions(player_id, name, joined_at) VALUES(?, ?, ?)`,
			p.ID, p.Name, at,
		); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		// a sample may repeat an id, e.g. anonymised players
		open[p.ID] = true
		t.log.Debug("player joined", zap.String("id", p.ID), zap.String("name", p.Name))
	}
	for id := range open {
		if online[id] {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET left_at = ? WHERE player_id = ? AND left_at IS NULL`,
			at, id,
		); err != nil {
			return fmt.Errorf("close session: %w", err)
		}
		t.log.Debug("player left", zap.String("id", id))
	}

	return tx.Commit()
}

// Sessions returns every recorded session for playerID, oldest first.
func (t *HistoryTarget) Sessions(ctx context.Context, playerID string) ([]Session, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT player_id, name, joined_at, left_at FROM sessions WHERE player_id = ? ORDER BY id`,
		playerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			s      Session
			joined string
			left   sql.NullString
		)
		if err := rows.Scan(&s.PlayerID, &s.Name, &joined, &left); err != nil {
			return nil, err
		}
		if s.JoinedAt, err = time.Parse(time.RFC3339Nano, joined); err != nil {
			return nil, fmt.Errorf("joined_at: %w", err)
		}
		if left.Valid {
			lt, err := time.Parse(time.RFC3339Nano, left.String)
			if err != nil {
				return nil, fmt.Errorf("left_at: %w", err)
			}
			s.LeftAt = &lt
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CycleCount returns the number of recorded cycles.
func (t *HistoryTarget) CycleCount(ctx context.Context) (int, error) {
	var n int
	err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cycles`).Scan(&n)
	return n, err
}

// Close implements Target.
func (t *HistoryTarget) Close() error {
	return t.db.Close()
}
