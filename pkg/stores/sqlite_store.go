package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/CrazyDubya/Loop/pkg/loop"
	"github.com/CrazyDubya/Loop/pkg/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db      *sql.DB
	cfg     Config
	classMu sync.Mutex
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: opens a separate database.
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = -1
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	if s.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const loopColumns = `id, parent_id, epoch, key_choices, outcome_hash, knowledge_id, mood_id,
	tags, decision_trace, created_at, notes, class_id`

func scanLoop(row rowScanner) (*loop.Loop, error) {
	var (
		l                 loop.Loop
		parentID, classID sql.NullString
		keyChoices        int64
		tags, trace       string
		createdAt         int64
	)
	err := row.Scan(
		&l.ID,
		&parentID,
		&l.Epoch,
		&keyChoices,
		&l.OutcomeHash,
		&l.KnowledgeID,
		&l.MoodID,
		&tags,
		&trace,
		&createdAt,
		&l.Notes,
		&classID,
	)
	if err != nil {
		return nil, err
	}

	l.ParentID = parentID.String
	l.ClassID = classID.String
	l.KeyChoices = uint64(keyChoices)
	l.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := decodeList(tags, &l.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags of loop %s: %w", l.ID, err)
	}
	if err := decodeList(trace, &l.DecisionTrace); err != nil {
		return nil, fmt.Errorf("failed to decode decision trace of loop %s: %w", l.ID, err)
	}
	return &l, nil
}

// CreateLoop stores a new loop and returns its id.
func (s *SQLiteStore) CreateLoop(ctx context.Context, l *loop.Loop) (string, error) {
	err := telemetry.RecordStoreOperation(ctx, BackendSQLite, "create_loop", func(ctx context.Context) error {
		query := `
			INSERT INTO loops (` + loopColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := s.db.ExecContext(ctx, query,
			l.ID,
			nullString(l.ParentID),
			l.Epoch,
			int64(l.KeyChoices),
			l.OutcomeHash,
			l.KnowledgeID,
			l.MoodID,
			encodeList(l.Tags),
			encodeList(l.DecisionTrace),
			l.CreatedAt.UnixNano(),
			l.Notes,
			nullString(l.ClassID),
		)
		if isUniqueViolation(err) {
			return alreadyExists("loop", l.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to create loop: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	announceLoop(ctx, l)
	return l.ID, nil
}

// GetLoop retrieves a loop by ID
func (s *SQLiteStore) GetLoop(ctx context.Context, id string) (*loop.Loop, error) {
	var l *loop.Loop
	err := telemetry.RecordStoreOperation(ctx, BackendSQLite, "get_loop", func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx, `SELECT `+loopColumns+` FROM loops WHERE id = ?`, id)
		var err error
		l, err = scanLoop(row)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("loop", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get loop: %w", err)
		}
		return nil
	})
	return l, err
}

// UpdateLoop replaces the mutable fields of a stored loop.
func (s *SQLiteStore) UpdateLoop(ctx context.Context, l *loop.Loop) error {
	return telemetry.RecordStoreOperation(ctx, BackendSQLite, "update_loop", func(ctx context.Context) error {
		query := `
			UPDATE loops
			SET parent_id = ?, epoch = ?, key_choices = ?, outcome_hash = ?, knowledge_id = ?,
				mood_id = ?, tags = ?, decision_trace = ?, notes = ?, class_id = ?
			WHERE id = ?
		`
		result, err := s.db.ExecContext(ctx, query,
			nullString(l.ParentID),
			l.Epoch,
			int64(l.KeyChoices),
			l.OutcomeHash,
			l.KnowledgeID,
			l.MoodID,
			encodeList(l.Tags),
			encodeList(l.DecisionTrace),
			l.Notes,
			nullString(l.ClassID),
			l.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update loop: %w", err)
		}
		return requireAffected(result, "loop", l.ID)
	})
}

// DeleteLoop deletes a loop and its sub-loops.
func (s *SQLiteStore) DeleteLoop(ctx context.Context, id string) error {
	return telemetry.RecordStoreOperation(ctx, BackendSQLite, "delete_loop", func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM loops WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete loop: %w", err)
		}
		return requireAffected(result, "loop", id)
	})
}

const loopFilterClause = `
	WHERE (? IS NULL OR epoch = ?)
	  AND (? IS NULL OR outcome_hash = ?)
	  AND (? IS NULL OR knowledge_id = ?)
	  AND (? IS NULL OR class_id = ?)
	  AND (? IS NULL OR parent_id = ?)
`

func loopFilterArgs(f LoopFilter) []any {
	var args []any
	for _, v := range []string{string(f.Epoch), f.OutcomeHash, f.KnowledgeID, f.ClassID, f.ParentID} {
		n := nullString(v)
		args = append(args, n, n)
	}
	return args
}

// ListLoops lists loops matching filter, oldest first.
func (s *SQLiteStore) ListLoops(ctx context.Context, filter LoopFilter) ([]*loop.Loop, error) {
	loops := []*loop.Loop{}
	err := telemetry.RecordStoreOperation(ctx, BackendSQLite, "list_loops", func(ctx context.Context) error {
		query := `SELECT ` + loopColumns + ` FROM loops` + loopFilterClause + `
			ORDER BY created_at ASC, id ASC
			LIMIT ? OFFSET ?`
		args := append(loopFilterArgs(filter), filter.limit(), filter.Offset)

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to list loops: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			l, err := scanLoop(rows)
			if err != nil {
				return fmt.Errorf("failed to scan loop: %w", err)
			}
			loops = append(loops, l)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating loops: %w", err)
		}
		return nil
	})
	return loops, err
}

// CountLoops counts loops matching filter. Limit and Offset are ignored.
func (s *SQLiteStore) CountLoops(ctx context.Context, filter LoopFilter) (int, error) {
	var count int
	err := telemetry.RecordStoreOperation(ctx, BackendSQLite, "count_loops", func(ctx context.Context) error {
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM loops`+loopFilterClause, loopFilterArgs(filter)...).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to count loops: %w", err)
		}
		return nil
	})
	return count, err
}

// Lineage returns the ancestry of id, oldest ancestor first.
func (s *SQLiteStore) Lineage(ctx context.Context, id string) ([]*loop.Loop, error) {
	return lineage(ctx, s, id)
}

const subLoopColumns = `id, parent_loop_id, start_time, end_time, attempts_count,
	best_outcome_hash, knowledge_gained, emotional_effect`

func scanSubLoop(row rowScanner) (*loop.SubLoop, error) {
	var (
		sub       loop.SubLoop
		knowledge string
	)
	err := row.Scan(
		&sub.ID,
		&sub.ParentLoopID,
		&sub.StartTime,
		&sub.EndTime,
		&sub.AttemptsCount,
		&sub.BestOutcomeHash,
		&knowledge,
		&sub.EmotionalEffect,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeList(knowledge, &sub.KnowledgeGained); err != nil {
		return nil, fmt.Errorf("failed to decode knowledge of sub-loop %s: %w", sub.ID, err)
	}
	return &sub, nil
}

// CreateSubLoop stores a sub-loop. The parent loop must exist.
func (s *SQLiteStore) CreateSubLoop(ctx context.Context, sub *loop.SubLoop) error {
	if sub.EndTime <= sub.StartTime {
		return fmt.Errorf("sub-loop %s: %w", sub.ID, loop.ErrInvalidWindow)
	}
	return telemetry.RecordStoreOperation(ctx, BackendSQLite, "create_subloop", func(ctx context.Context) error {
		query := `INSERT INTO sub_loops (` + subLoopColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := s.db.ExecContext(ctx, query,
			sub.ID,
			sub.ParentLoopID,
			sub.StartTime,
			sub.EndTime,
			sub.AttemptsCount,
			sub.BestOutcomeHash,
			encodeList(sub.KnowledgeGained),
			sub.EmotionalEffect,
		)
		switch {
		case isUniqueViolation(err):
			return alreadyExists("sub-loop", sub.ID)
		case isForeignKeyViolation(err):
			return notFound("loop", sub.ParentLoopID)
		case err != nil:
			return fmt.Errorf("failed to create sub-loop: %w", err)
		}
		return nil
	})
}

// GetSubLoop retrieves a sub-loop by ID
func (s *SQLiteStore) GetSubLoop(ctx context.Context, id string) (*loop.SubLoop, error) {
	var sub *loop.SubLoop
	err := telemetry.RecordStoreOperation(ctx, BackendSQLite, "get_subloop", func(ctx context.Context) error {
		var err error
		sub, err = scanSubLoop(s.db.QueryRowContext(ctx, `SELECT `+subLoopColumns+` FROM sub_loops WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("sub-loop", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get sub-loop: %w", err)
		}
		return nil
	})
	return sub, err
}

// ListSubLoops lists the sub-loops of a loop ordered by start time.
func (s *SQLiteStore) ListSubLoops(ctx context.Context, loopID string) ([]*loop.SubLoop, error) {
	subs := []*loop.SubLoop{}
	err := telemetry.RecordStoreOperation(ctx, BackendSQLite, "list_subloops", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+subLoopColumns+` FROM sub_loops WHERE parent_loop_id = ? ORDER BY start_time ASC, id ASC`, loopID)
		if err != nil {
			return fmt.Errorf("failed to list sub-loops: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			sub, err := scanSubLoop(rows)
			if err != nil {
				return fmt.Errorf("failed to scan sub-loop: %w", err)
			}
			subs = append(subs, sub)
		}
		return rows.Err()
	})
	return subs, err
}

// DeleteSubLoop deletes a sub-loop.
func (s *SQLiteStore) DeleteSubLoop(ctx context.Context, id string) error {
	return telemetry.RecordStoreOperation(ctx, BackendSQLite, "delete_subloop", func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM sub_loops WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete sub-loop: %w", err)
		}
		return requireAffected(result, "sub-loop", id)
	})
}

const classColumns = `id, outcome_hash, knowledge_id, knowledge_delta, mood_delta, count,
	representative_id, sample_ids, created_at, notes`

func scanClass(row rowScanner) (*loop.Class, error) {
	var (
		c              loop.Class
		representative sql.NullString
		delta, samples string
		createdAt      int64
	)
	err := row.Scan(
		&c.ID,
		&c.OutcomeHash,
		&c.KnowledgeID,
		&delta,
		&c.MoodDelta,
		&c.Count,
		&representative,
		&samples,
		&createdAt,
		&c.Notes,
	)
	if err != nil {
		return nil, err
	}

	c.RepresentativeID = representative.String
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := decodeList(delta, &c.KnowledgeDelta); err != nil {
		return nil, fmt.Errorf("failed to decode knowledge delta of class %s: %w", c.ID, err)
	}
	if err := decodeList(samples, &c.SampleIDs); err != nil {
		return nil, fmt.Errorf("failed to decode samples of class %s: %w", c.ID, err)
	}
	return &c, nil
}

// CreateClass stores a new equivalence class.
func (s *SQLiteStore) CreateClass(ctx context.Context, c *loop.Class) error {
	err := telemetry.RecordStoreOperation(ctx, BackendSQLite, "create_class", func(ctx context.Context) error {
		query := `INSERT INTO loop_classes (` + classColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := s.db.ExecContext(ctx, query,
			c.ID,
			c.OutcomeHash,
			c.KnowledgeID,
			encodeList(c.KnowledgeDelta),
			c.MoodDelta,
			c.Count,
			nullString(c.RepresentativeID),
			encodeList(c.SampleIDs),
			c.CreatedAt.UnixNano(),
			c.Notes,
		)
		if isUniqueViolation(err) {
			return alreadyExists("class", c.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to create class: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	announceClass(ctx, c)
	return nil
}

// GetClass retrieves an equivalence class by ID
func (s *SQLiteStore) GetClass(ctx context.Context, id string) (*loop.Class, error) {
	return s.queryClass(ctx, "get_class", `WHERE id = ?`, "class", id, id)
}

// FindClass retrieves the class with the given equivalence key.
func (s *SQLiteStore) FindClass(ctx context.Context, outcomeHash, knowledgeID string) (*loop.Class, error) {
	return s.queryClass(ctx, "find_class", `WHERE outcome_hash = ? AND knowledge_id = ?`,
		"class for", outcomeHash+"/"+knowledgeID, outcomeHash, knowledgeID)
}

func (s *SQLiteStore) queryClass(ctx context.Context, op, where, kind, subject string, args ...any) (*loop.Class, error) {
	var c *loop.Class
	err := telemetry.RecordStoreOperation(ctx, BackendSQLite, op, func(ctx context.Context) error {
		var err error
		c, err = scanClass(s.db.QueryRowContext(ctx, `SELECT `+classColumns+` FROM loop_classes `+where, args...))
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(kind, subject)
		}
		if err != nil {
			return fmt.Errorf("failed to get class: %w", err)
		}
		return nil
	})
	return c, err
}

// UpdateClass replaces the mutable fields of a stored class.
func (s *SQLiteStore) UpdateClass(ctx context.Context, c *loop.Class) error {
	return telemetry.RecordStoreOperation(ctx, BackendSQLite, "update_class", func(ctx context.Context) error {
		query := `
			UPDATE loop_classes
			SET knowledge_delta = ?, mood_delta = ?, count = ?, representative_id = ?, sample_ids = ?, notes = ?
			WHERE id = ?
		`
		result, err := s.db.ExecContext(ctx, query,
			encodeList(c.KnowledgeDelta),
			c.MoodDelta,
			c.Count,
			nullString(c.RepresentativeID),
			encodeList(c.SampleIDs),
			c.Notes,
			c.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update class: %w", err)
		}
		return requireAffected(result, "class", c.ID)
	})
}

// DeleteClass unassigns the class's loops and deletes it.
func (s *SQLiteStore) DeleteClass(ctx context.Context, id string) error {
	return telemetry.RecordStoreOperation(ctx, BackendSQLite, "delete_class", func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `UPDATE loops SET class_id = NULL WHERE class_id = ?`, id); err != nil {
			return fmt.Errorf("failed to unassign class: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM loop_classes WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete class: %w", err)
		}
		if err := requireAffected(result, "class", id); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// ListClasses lists classes, largest first.
func (s *SQLiteStore) ListClasses(ctx context.Context) ([]*loop.Class, error) {
	classes := []*loop.Class{}
	err := telemetry.RecordStoreOperation(ctx, BackendSQLite, "list_classes", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `SELECT `+classColumns+` FROM loop_classes ORDER BY count DESC, created_at ASC`)
		if err != nil {
			return fmt.Errorf("failed to list classes: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanClass(rows)
			if err != nil {
				return fmt.Errorf("failed to scan class: %w", err)
			}
			classes = append(classes, c)
		}
		return rows.Err()
	})
	return classes, err
}

// AssignClass adds l to the class sharing its equivalence key, creating the
// class when none exists, and records the assignment on the loop.
func (s *SQLiteStore) AssignClass(ctx context.Context, l *loop.Loop) (*loop.Class, error) {
	s.classMu.Lock()
	defer s.classMu.Unlock()
	return assignClass(ctx, s, l)
}

// Stats returns record counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{LoopsByEpoch: map[string]int{}}
	err := telemetry.RecordStoreOperation(ctx, BackendSQLite, "stats", func(ctx context.Context) error {
		counts := []struct {
			query string
			dest  *int
		}{
			{`SELECT COUNT(*) FROM loops`, &stats.TotalLoops},
			{`SELECT COUNT(*) FROM loop_classes`, &stats.TotalClasses},
			{`SELECT COUNT(*) FROM sub_loops`, &stats.TotalSubLoops},
		}
		for _, c := range counts {
			if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
				return fmt.Errorf("failed to count records: %w", err)
			}
		}

		rows, err := s.db.QueryContext(ctx, `SELECT epoch, COUNT(*) FROM loops GROUP BY epoch`)
		if err != nil {
			return fmt.Errorf("failed to count loops by epoch: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				epoch string
				n     int
			)
			if err := rows.Scan(&epoch, &n); err != nil {
				return fmt.Errorf("failed to scan epoch count: %w", err)
			}
			stats.LoopsByEpoch[epoch] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	stats.CompressionRatio = compressionRatio(stats.TotalLoops, stats.TotalClasses)
	return stats, nil
}

// Clear deletes every record.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	return telemetry.RecordStoreOperation(ctx, BackendSQLite, "clear", func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for _, table := range []string{"sub_loops", "loops", "loop_classes"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return tx.Commit()
	})
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func encodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, _ := json.Marshal(items)
	return string(data)
}

func decodeList(data string, dest *[]string) error {
	*dest = []string{}
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), dest)
}

func requireAffected(result sql.Result, kind, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound(kind, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
