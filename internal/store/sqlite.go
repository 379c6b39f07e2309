package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/spigell/panel-interview/internal/domain"
)

const schemaVersion = 1

var schema = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS panels (
		id TEXT PRIMARY KEY,
		jd_text TEXT NOT NULL,
		embedding TEXT NOT NULL,
		agents TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS interviews (
		id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
}

// SQLite stores panels and interviews in a single SQLite file.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path. The path
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite supports a single writer; one connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLite{db: db, logger: logger, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("database ready", zap.String("path", path), zap.Int("schema_version", schemaVersion))
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

func (s *SQLite) CreatePanel(ctx context.Context, panel *domain.PanelRecord) error {
	if panel == nil || panel.ID == "" {
		return errors.New("create panel: id is required")
	}

	embedding, err := json.Marshal(panel.Embedding)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	agents, err := json.Marshal(panel.Agents)
	if err != nil {
		return fmt.Errorf("encode agents: %w", err)
	}

	now := s.now().UTC()
	created := panel.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO panels (id, jd_text, embedding, agents, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		panel.ID, panel.JobDescription, string(embedding), string(agents), formatTime(created), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert panel %s: %w", panel.ID, err)
	}
	return nil
}

func (s *SQLite) UpdatePanel(ctx context.Context, panel *domain.PanelRecord) error {
	if panel == nil {
		return errors.New("update panel: nil panel")
	}

	agents, err := json.Marshal(panel.Agents)
	if err != nil {
		return fmt.Errorf("encode agents: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE panels SET agents = ?, updated_at = ? WHERE id = ?`,
		string(agents), formatTime(s.now().UTC()), panel.ID,
	)
	if err != nil {
		return fmt.Errorf("update panel %s: %w", panel.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update panel %s: %w", panel.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLite) GetPanel(ctx context.Context, id string) (*domain.PanelRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, jd_text, embedding, agents, created_at, updated_at FROM panels WHERE id = ?`, id)

	panel, err := scanPanel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("panel %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return panel, nil
}

func (s *SQLite) FindMostSimilar(ctx context.Context, embedding []float64) (*domain.PanelRecord, float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, jd_text, embedding, agents, created_at, updated_at FROM panels ORDER BY created_at, id`)
	if err != nil {
		return nil, 0, fmt.Errorf("query panels: %w", err)
	}
	defer rows.Close()

	var candidates []*domain.PanelRecord
	for rows.Next() {
		panel, err := scanPanel(rows)
		if err != nil {
			return nil, 0, err
		}
		candidates = append(candidates, panel)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate panels: %w", err)
	}

	best, score := mostSimilar(candidates, embedding)
	s.logger.Debug("similarity scan", zap.Int("candidates", len(candidates)), zap.Float64("best_score", score))
	return best, score, nil
}

func (s *SQLite) SaveInterview(ctx context.Context, id string, doc []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interviews (id, document, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		id, string(doc), formatTime(s.now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("save interview %s: %w", id, err)
	}
	return nil
}

func (s *SQLite) LoadInterview(ctx context.Context, id string) ([]byte, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM interviews WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("interview %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load interview %s: %w", id, err)
	}
	return []byte(doc), nil
}

func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPanel(row scanner) (*domain.PanelRecord, error) {
	var (
		panel                domain.PanelRecord
		embedding, agents    string
		createdAt, updatedAt string
	)
	if err := row.Scan(&panel.ID, &panel.JobDescription, &embedding, &agents, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan panel: %w", err)
	}
	if err := json.Unmarshal([]byte(embedding), &panel.Embedding); err != nil {
		return nil, fmt.Errorf("decode embedding of panel %s: %w", panel.ID, err)
	}
	if err := json.Unmarshal([]byte(agents), &panel.Agents); err != nil {
		return nil, fmt.Errorf("decode agents of panel %s: %w", panel.ID, err)
	}
	panel.CreatedAt = parseTime(createdAt)
	panel.UpdatedAt = parseTime(updatedAt)
	return &panel, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
