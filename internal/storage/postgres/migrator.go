package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Миграции лежат рядом с кодом и встраиваются в бинарник.
//
//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

const (
	migrationsDir    = "sql/migrations"
	// advisory lock не даёт двум репликам мигрировать одновременно.
	migrationLockKey = int64(59000183)

	schemaMigrationsDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    BIGINT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var migrationFileRe = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

var errStoreNotInitialized = errors.New("postgres store is not initialized")

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// Label — имя миграции в виде 0001_catalog.
func (m migration) Label() string {
	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}

// MigrateUp применяет up-миграции; steps=0 применяет все доступные.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.withMigrationSession(ctx, func(sess *migrationSession) error {
		for _, m := range sess.pending() {
			if err := sess.apply(ctx, m); err != nil {
				return err
			}
			if steps--; steps == 0 {
				break
			}
		}
		return nil
	})
}

// MigrateDown откатывает steps последних миграций, минимум одну.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.withMigrationSession(ctx, func(sess *migrationSession) error {
		for i := len(sess.applied) - 1; i >= 0 && steps > 0; i, steps = i-1, steps-1 {
			m, ok := sess.byVersion[sess.applied[i]]
			if !ok {
				return fmt.Errorf("cannot rollback unknown migration version %d", sess.applied[i])
			}
			if err := sess.revert(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// MigrationStatus возвращает текущую версию и количество применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	var (
		version int64
		count   int
	)
	err := s.withMigrationSession(ctx, func(sess *migrationSession) error {
		count = len(sess.applied)
		if count > 0 {
			version = sess.applied[count-1]
		}
		return nil
	})
	return version, count, err
}

// PendingMigrations возвращает имена ещё не применённых миграций в порядке применения.
func (s *Store) PendingMigrations(ctx context.Context) ([]string, error) {
	var names []string
	err := s.withMigrationSession(ctx, func(sess *migrationSession) error {
		names = make([]string, 0)
		for _, m := range sess.pending() {
			names = append(names, m.Label())
		}
		return nil
	})
	return names, err
}

// migrationSession — одно подключение под advisory lock со снимком применённых версий.
type migrationSession struct {
	conn       *sql.Conn
	migrations []migration
	byVersion  map[int64]migration
	applied    []int64
	logger     *log.Entry
}

func (s *Store) withMigrationSession(ctx context.Context, fn func(*migrationSession) error) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	migrations, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, schemaMigrationsDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return err
	}

	sess := &migrationSession{
		conn:       conn,
		migrations: migrations,
		byVersion:  make(map[int64]migration, len(migrations)),
		applied:    applied,
		logger:     s.logger,
	}
	if sess.logger == nil {
		sess.logger = log.WithField("component", "postgres")
	}
	for _, m := range migrations {
		sess.byVersion[m.Version] = m
	}
	return fn(sess)
}

func (sess *migrationSession) pending() []migration {
	done := make(map[int64]bool, len(sess.applied))
	for _, v := range sess.applied {
		done[v] = true
	}
	var out []migration
	for _, m := range sess.migrations {
		if !done[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

func (sess *migrationSession) apply(ctx context.Context, m migration) error {
	err := sess.step(ctx, m.UpSQL,
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
	if err != nil {
		return fmt.Errorf("up migration %s: %w", m.Label(), err)
	}
	sess.logger.WithField("migration", m.Label()).Info("migration applied")
	return nil
}

func (sess *migrationSession) revert(ctx context.Context, m migration) error {
	err := sess.step(ctx, m.DownSQL,
		`DELETE FROM schema_migrations WHERE version = $1`, m.Version)
	if err != nil {
		return fmt.Errorf("down migration %s: %w", m.Label(), err)
	}
	sess.logger.WithField("migration", m.Label()).Info("migration rolled back")
	return nil
}

// step выполняет тело миграции и запись в schema_migrations одной транзакцией.
func (sess *migrationSession) step(ctx context.Context, body, bookkeeping string, args ...any) error {
	tx, err := sess.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute: %w", err)
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("bookkeeping: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// appliedVersions возвращает применённые версии по возрастанию.
func appliedVersions(ctx context.Context, conn *sql.Conn) ([]int64, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// loadMigrationsFromFS собирает пары up/down из каталога миграций и сортирует их по версии.
func loadMigrationsFromFS(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	byVersion := make(map[int64]*migration)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		parts := migrationFileRe.FindStringSubmatch(entry.Name())
		if parts == nil {
			return nil, fmt.Errorf("invalid migration file name: %s", entry.Name())
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version %s: %w", entry.Name(), err)
		}
		raw, err := fs.ReadFile(fsys, path.Join(migrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", entry.Name())
		}

		m, ok := byVersion[version]
		if !ok {
			m = &migration{Version: version, Name: parts[2]}
			byVersion[version] = m
		}
		if m.Name != parts[2] {
			return nil, fmt.Errorf("migration %d has conflicting names %s and %s", version, m.Name, parts[2])
		}
		target := &m.UpSQL
		if parts[3] == "down" {
			target = &m.DownSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", parts[3], version)
		}
		*target = body
	}
	if len(byVersion) == 0 {
		return nil, errors.New("no migration files found")
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" || m.DownSQL == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", m.Label())
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}
