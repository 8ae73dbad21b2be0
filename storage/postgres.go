package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the tree in a single table of JSON documents. Each row
// holds the subtree rooted at its path; a write lands in the closest row at or
// above the target path, or starts a new row there. Timestamps come from the
// database clock.
type PostgresStore struct {
	pool *pgxpool.Pool
	ids  *PushIDGenerator
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool, ids: NewPushIDGenerator(nil)}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tree_nodes (
			path TEXT PRIMARY KEY,
			value JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

type treeRow struct {
	path  string
	value interface{}
}

func (s *PostgresStore) Get(ctx context.Context, path string, dest interface{}) (bool, error) {
	parts := splitPath(path)
	found, err := subtree(ctx, s.pool, parts, false)
	if err != nil {
		return false, unavailable("get", path, err)
	}

	node := assembleRead(found, parts)
	if node == nil {
		return false, nil
	}
	if err := decodeInto(node, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func (s *PostgresStore) Set(ctx context.Context, path string, value interface{}) error {
	return s.write(ctx, "set", path, map[string]interface{}{"": value})
}

func (s *PostgresStore) Push(ctx context.Context, path string, value interface{}) (string, error) {
	key := s.ids.Next()
	if err := s.write(ctx, "push", cleanPath(path)+"/"+key, map[string]interface{}{"": value}); err != nil {
		return "", err
	}
	return key, nil
}

func (s *PostgresStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	return s.write(ctx, "update", path, fields)
}

func (s *PostgresStore) Delete(ctx context.Context, path string) error {
	return s.write(ctx, "delete", path, map[string]interface{}{"": nil})
}

// write applies fields (relative path -> value, "" being path itself) inside
// one transaction.
func (s *PostgresStore) write(ctx context.Context, op, path string, fields map[string]interface{}) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable(op, path, err)
	}
	defer tx.Rollback(ctx)

	var now int64
	if err := tx.QueryRow(ctx, `SELECT (EXTRACT(EPOCH FROM clock_timestamp()) * 1000)::BIGINT`).Scan(&now); err != nil {
		return unavailable(op, path, err)
	}

	prepared := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		p, err := prepare(v, now)
		if err != nil {
			return err
		}
		prepared[k] = p
	}

	parts := splitPath(path)
	found, err := subtree(ctx, tx, parts, true)
	if err != nil {
		return unavailable(op, path, err)
	}

	plan := planWrite(found, parts, prepared)
	for _, p := range plan.absorbed {
		if _, err := tx.Exec(ctx, `DELETE FROM tree_nodes WHERE path = $1`, p); err != nil {
			return unavailable(op, path, err)
		}
	}

	if plan.doc == nil {
		if _, err := tx.Exec(ctx, `DELETE FROM tree_nodes WHERE path = $1`, plan.path); err != nil {
			return unavailable(op, path, err)
		}
	} else {
		data, err := json.Marshal(plan.doc)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO tree_nodes (path, value, updated_at)
			VALUES ($1, $2::jsonb, NOW())
			ON CONFLICT (path) DO UPDATE SET
				value = EXCLUDED.value,
				updated_at = NOW()`,
			plan.path, string(data))
		if err != nil {
			return unavailable(op, path, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return unavailable(op, path, err)
	}
	return nil
}

// writePlan is the row change a write makes: the row at path is replaced by
// doc (or removed when doc is nil) and the absorbed rows are removed.
type writePlan struct {
	path     string
	doc      interface{}
	absorbed []string
}

// planWrite works out the row change for writing fields (relative path ->
// value, "" being the target itself) at parts, given the rows found at,
// above and below it. Rows never nest: the closest row at or above the
// target owns the write, otherwise the target becomes a new row that
// absorbs any rows below it.
func planWrite(found []treeRow, parts []string, fields map[string]interface{}) writePlan {
	plan := writePlan{path: strings.Join(parts, "/")}
	owner := ""
	for _, r := range found {
		if r.path == plan.path || strings.HasPrefix(plan.path, r.path+"/") {
			if len(r.path) >= len(owner) {
				owner, plan.doc = r.path, r.value
			}
		}
	}

	var rel []string
	if owner != "" {
		plan.path = owner
		rel = parts[len(splitPath(owner)):]
	} else {
		for _, r := range found {
			plan.doc = setIn(plan.doc, splitPath(r.path)[len(parts):], r.value)
			plan.absorbed = append(plan.absorbed, r.path)
		}
	}

	for _, k := range sortedFieldKeys(fields) {
		target := append(append([]string(nil), rel...), splitPath(k)...)
		plan.doc = setIn(plan.doc, target, fields[k])
	}
	return plan
}

// assembleRead rebuilds the node at parts from the rows found around it.
func assembleRead(found []treeRow, parts []string) interface{} {
	var root interface{}
	for _, r := range found {
		root = setIn(root, splitPath(r.path), r.value)
	}
	return getIn(root, parts)
}

// sortedFieldKeys orders keys so parent paths are written before children.
func sortedFieldKeys(fields map[string]interface{}) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// subtree loads the rows at, above and below parts, shortest path first.
func subtree(ctx context.Context, q querier, parts []string, lock bool) ([]treeRow, error) {
	query := `SELECT path, value FROM tree_nodes`
	var args []any
	if len(parts) > 0 {
		query += ` WHERE path = ANY($1::text[]) OR starts_with(path, $2::text)`
		args = append(args, ancestors(parts), strings.Join(parts, "/")+"/")
	}
	query += ` ORDER BY length(path)`
	if lock {
		query += ` FOR UPDATE`
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []treeRow
	for rows.Next() {
		var path string
		var raw []byte
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, err
		}
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode row %s: %w", path, err)
		}
		out = append(out, treeRow{path: path, value: v})
	}
	return out, rows.Err()
}

// ancestors lists path and every path above it, nearest last.
func ancestors(parts []string) []string {
	out := make([]string, 0, len(parts))
	for i := 1; i <= len(parts); i++ {
		out = append(out, strings.Join(parts[:i], "/"))
	}
	return out
}
