package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pershin-daniil/PrayerPipeline/pkg/metrics"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

//go:embed migrations
var migrations embed.FS

const retries = 3

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type Store struct {
	log *logrus.Entry
	db  *sqlx.DB
	ext sqlx.ExtContext
	tx  bool
}

// PersistenceError wraps a failed database call. Not-found conditions are
// reported with the models sentinels instead.
type PersistenceError struct {
	Method string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("err %s: %v", e.Method, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func NewStore(ctx context.Context, log *logrus.Logger, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &Store{
		log: log.WithField("component", "pgstore"),
		db:  db,
		ext: db,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(direction migrate.MigrationDirection) error {
	assetDir := func() func(string) ([]string, error) {
		return func(path string) ([]string, error) {
			dirEntry, er := migrations.ReadDir(path)
			if er != nil {
				return nil, er
			}
			entries := make([]string, 0)
			for _, e := range dirEntry {
				entries = append(entries, e.Name())
			}

			return entries, nil
		}
	}()
	asset := migrate.AssetMigrationSource{
		Asset:    migrations.ReadFile,
		AssetDir: assetDir,
		Dir:      "migrations",
	}
	n, err := migrate.Exec(s.db.DB, "postgres", asset, direction)
	if err != nil {
		return err
	}
	s.log.Infof("applied %d migrations", n)
	return nil
}

// InTx runs fn against a copy of the store bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.tx {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &PersistenceError{Method: "begin tx", Err: err}
	}
	txStore := &Store{log: s.log, db: s.db, ext: tx, tx: true}
	if err = fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Warnf("err during rollback: %v", rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return &PersistenceError{Method: "commit tx", Err: err}
	}
	return nil
}

// read retries fn on transient failures. Inside a transaction a failed
// statement aborts the transaction, so it runs once.
func (s *Store) read(ctx context.Context, method string, fn func() error) error {
	attempts := retries
	if s.tx {
		attempts = 1
	}
	start := time.Now()
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !retryable(ctx, err) {
			break
		}
		s.log.Debugf("retrying %s after: %v", method, err)
	}
	return s.done(method, start, err)
}

func (s *Store) write(method string, fn func() error) error {
	start := time.Now()
	return s.done(method, start, fn())
}

func (s *Store) done(method string, start time.Time, err error) error {
	metrics.PgDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	metrics.PgErrCount.WithLabelValues(method).Inc()
	return &PersistenceError{Method: method, Err: err}
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, sql.ErrNoRows) {
		return false
	}
	var pgErr *pgconn.PgError
	// constraint and syntax errors will fail the same way again
	return !errors.As(err, &pgErr)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func (s *Store) ResetTables(ctx context.Context, tables []string) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE TABLE `+strings.Join(tables, `, `)+` CASCADE`); err != nil {
		return err
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`ALTER SEQUENCE IF EXISTS %s_id_seq RESTART`, table)); err != nil {
			return err
		}
	}
	return nil
}
