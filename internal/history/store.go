package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/Barrhann/notebook-analyzer-v2-sub000/internal/errors"
)

const (
	dialectSQLite   = "sqlite3"
	dialectPostgres = "pgx"

	// PostgresDSNEnv switches the store to Postgres when set.
	PostgresDSNEnv = "NOTEBOOK_ANALYZER_PG_DSN"

	sqliteFileName = "notebook_analyzer.db"
)

// Store owns the run-history database connection. SQLite under a local data
// directory is the default backend; a DSN in NOTEBOOK_ANALYZER_PG_DSN
// switches it to Postgres without changing callers.
type Store struct {
	db       *sql.DB
	dialect  string
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex

	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// Open creates or opens the SQLite history database under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, apperrors.NewIOError("failed to create data directory", dataDir, err)
	}

	dbPath := filepath.Join(dataDir, sqliteFileName)
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sql.Open(dialectSQLite, connStr)
	if err != nil {
		return nil, apperrors.NewIOError("failed to open history database", dbPath, err)
	}
	if err := db.Ping(); err != nil {
		return nil, apperrors.NewIOError("failed to ping history database", dbPath, err)
	}

	return newStore(db, dialectSQLite)
}

// OpenPostgres connects the store to Postgres through the pgx stdlib driver.
func OpenPostgres(dsn string) (*Store, error) {
	db, err := sql.Open(dialectPostgres, strings.TrimSpace(dsn))
	if err != nil {
		return nil, apperrors.NewConfigurationError("failed to open postgres history database", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, apperrors.NewConfigurationError("failed to ping postgres history database", err)
	}

	return newStore(db, dialectPostgres)
}

// OpenFromEnv picks the backend: Postgres when NOTEBOOK_ANALYZER_PG_DSN is
// set, SQLite under dataDir otherwise. A set but unreachable DSN is an error
// rather than a silent fallback.
func OpenFromEnv(dataDir string) (*Store, error) {
	if dsn := strings.TrimSpace(os.Getenv(PostgresDSNEnv)); dsn != "" {
		return OpenPostgres(dsn)
	}
	return Open(dataDir)
}

func newStore(db *sql.DB, dialect string) (*Store, error) {
	store := &Store{
		db:           db,
		dialect:      dialect,
		prepared:     make(map[string]*sql.Stmt),
		maxOpenConns: 25,
		maxIdleConns: 5,
		maxLifetime:  5 * time.Minute,
	}

	db.SetMaxOpenConns(store.maxOpenConns)
	db.SetMaxIdleConns(store.maxIdleConns)
	db.SetConnMaxLifetime(store.maxLifetime)

	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.initPreparedStatements(); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Info("history store initialized",
		"dialect", dialect,
		"max_open_conns", store.maxOpenConns,
		"max_idle_conns", store.maxIdleConns)

	return store, nil
}

// migrate creates the runs table and its indexes.
func (s *Store) migrate() error {
	scoreType := "REAL"
	timeType := "DATETIME"
	if s.dialect == dialectPostgres {
		scoreType = "DOUBLE PRECISION"
		timeType = "TIMESTAMPTZ"
	}

	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			notebook_path TEXT NOT NULL,
			overall_score %[1]s NOT NULL,
			quality_score %[1]s NOT NULL,
			presentation_score %[1]s NOT NULL,
			analyzer_count INTEGER NOT NULL,
			error_count INTEGER NOT NULL,
			duration_ms BIGINT NOT NULL,
			report TEXT NOT NULL,
			created_at %[2]s NOT NULL
		)`, scoreType, timeType),

		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_notebook ON runs(notebook_path)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_score ON runs(overall_score DESC)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return apperrors.NewInternalError("failed to run history migration", err)
		}
	}

	return nil
}

// initPreparedStatements prepares the statements behind every repository
// operation once, at open time.
func (s *Store) initPreparedStatements() error {
	statements := map[string]string{
		"insert_run": `INSERT INTO runs (
			id, notebook_path, overall_score, quality_score, presentation_score,
			analyzer_count, error_count, duration_ms, report, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,

		"get_run": `SELECT id, notebook_path, overall_score, quality_score, presentation_score,
			analyzer_count, error_count, duration_ms, report, created_at
			FROM runs WHERE id = ?`,

		"list_runs": `SELECT id, notebook_path, overall_score, quality_score, presentation_score,
			analyzer_count, error_count, duration_ms, created_at
			FROM runs ORDER BY created_at DESC LIMIT ?`,

		"list_scores": `SELECT id, overall_score, created_at
			FROM runs ORDER BY created_at DESC LIMIT ?`,

		"count_runs": `SELECT COUNT(*) FROM runs`,
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for name, query := range statements {
		stmt, err := s.db.Prepare(s.rebind(query))
		if err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("failed to prepare statement %s", name), err)
		}
		s.prepared[name] = stmt
	}

	return nil
}

// rebind rewrites ? placeholders to $1..$n for the Postgres dialect.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) stmt(name string) (*sql.Stmt, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stmt, ok := s.prepared[name]
	if !ok {
		return nil, apperrors.NewInternalError(fmt.Sprintf("prepared statement %s not found", name), nil)
	}
	return stmt, nil
}

// PoolStats returns connection pool statistics for the health payload.
func (s *Store) PoolStats() map[string]interface{} {
	stats := s.db.Stats()

	return map[string]interface{}{
		"dialect":              s.dialect,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": s.maxOpenConns,
		"max_idle_connections": s.maxIdleConns,
		"max_lifetime_seconds": s.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// Close closes the prepared statements and the underlying connection.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for name, stmt := range s.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("failed to close prepared statement", "name", name, "error", err)
		}
	}
	s.prepared = make(map[string]*sql.Stmt)

	return s.db.Close()
}
