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

var postgresCollections = map[string]bool{
	CollectionProfiles:     true,
	CollectionProperties:   true,
	CollectionDetails:      true,
	CollectionFeatures:     true,
	CollectionEnhancements: true,
	CollectionInspections:  true,
	CollectionPaymentLogs:  true,
}

// PostgresGateway implements Gateway directly against the listing database.
// It bypasses row level security and is meant for the webhook and scheduler.
type PostgresGateway struct {
	pool *pgxpool.Pool
}

func NewPostgresGateway(ctx context.Context, connString string) (*PostgresGateway, error) {
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

	return &PostgresGateway{pool: pool}, nil
}

func (g *PostgresGateway) Close() {
	g.pool.Close()
}

func (g *PostgresGateway) Pool() *pgxpool.Pool {
	return g.pool
}

func (g *PostgresGateway) Insert(ctx context.Context, collection string, records ...Record) ([]Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	query, args, err := BuildInsert(collection, records)
	if err != nil {
		return nil, err
	}
	return g.queryRecords(ctx, query, args...)
}

func (g *PostgresGateway) Update(ctx context.Context, collection string, filter Filter, patch Record) ([]Record, error) {
	query, args, err := BuildUpdate(collection, filter, patch)
	if err != nil {
		return nil, err
	}
	return g.queryRecords(ctx, query, args...)
}

func (g *PostgresGateway) Delete(ctx context.Context, collection string, filter Filter) error {
	query, args, err := BuildDelete(collection, filter)
	if err != nil {
		return err
	}
	_, err = g.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", collection, err)
	}
	return nil
}

func (g *PostgresGateway) Select(ctx context.Context, collection string, filter Filter, order ...Order) ([]Record, error) {
	query, args, err := BuildSelect(collection, filter, order)
	if err != nil {
		return nil, err
	}
	return g.queryRecords(ctx, query, args...)
}

func (g *PostgresGateway) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := g.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// =============================================================================
// Query building
// =============================================================================

func table(collection string) (string, error) {
	if !postgresCollections[collection] {
		return "", fmt.Errorf("unknown collection %q", collection)
	}
	return pgx.Identifier{collection}.Sanitize(), nil
}

func ident(column string) string {
	return pgx.Identifier{column}.Sanitize()
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// pgValue adapts decoded JSON values for pgx: nested lists and objects are
// sent as JSON text so they land in jsonb columns unchanged.
func pgValue(v any) any {
	switch v.(type) {
	case []any, map[string]any, []Record, Record:
		data, _ := json.Marshal(v)
		return string(data)
	}
	return v
}

func whereClause(filter Filter, args []any) (string, []any) {
	if len(filter) == 0 {
		return "", args
	}
	parts := make([]string, 0, len(filter))
	for _, c := range filter {
		switch c.Op {
		case "in":
			args = append(args, c.Values)
			parts = append(parts, fmt.Sprintf("%s = ANY($%d)", ident(c.Column), len(args)))
		default:
			if c.Value == nil {
				parts = append(parts, ident(c.Column)+" IS NULL")
				continue
			}
			args = append(args, pgValue(c.Value))
			parts = append(parts, fmt.Sprintf("%s = $%d", ident(c.Column), len(args)))
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func BuildSelect(collection string, filter Filter, order []Order) (string, []any, error) {
	tbl, err := table(collection)
	if err != nil {
		return "", nil, err
	}
	where, args := whereClause(filter, nil)
	query := "SELECT to_jsonb(t.*) FROM " + tbl + " t" + where
	if len(order) > 0 {
		parts := make([]string, len(order))
		for i, o := range order {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts[i] = ident(o.Column) + " " + dir
		}
		query += " ORDER BY " + strings.Join(parts, ", ")
	}
	return query, args, nil
}

func BuildInsert(collection string, records []Record) (string, []any, error) {
	tbl, err := table(collection)
	if err != nil {
		return "", nil, err
	}

	colSet := make(map[string]bool)
	for _, r := range records {
		for k := range r {
			colSet[k] = true
		}
	}
	cols := sortedKeys(colSet)
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("insert %s: empty record", collection)
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = ident(c)
	}

	var args []any
	rows := make([]string, len(records))
	for i, r := range records {
		vals := make([]string, len(cols))
		for j, c := range cols {
			v, ok := r[c]
			if !ok {
				vals[j] = "DEFAULT"
				continue
			}
			args = append(args, pgValue(v))
			vals[j] = fmt.Sprintf("$%d", len(args))
		}
		rows[i] = "(" + strings.Join(vals, ", ") + ")"
	}

	query := "WITH ins AS (INSERT INTO " + tbl + " (" + strings.Join(quoted, ", ") + ") VALUES " +
		strings.Join(rows, ", ") + " RETURNING *) SELECT to_jsonb(ins.*) FROM ins"
	return query, args, nil
}

func BuildUpdate(collection string, filter Filter, patch Record) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, ErrUnfilteredMutation
	}
	tbl, err := table(collection)
	if err != nil {
		return "", nil, err
	}
	if len(patch) == 0 {
		return "", nil, fmt.Errorf("update %s: empty patch", collection)
	}

	var args []any
	sets := make([]string, 0, len(patch))
	for _, c := range sortedKeys(patch) {
		args = append(args, pgValue(patch[c]))
		sets = append(sets, fmt.Sprintf("%s = $%d", ident(c), len(args)))
	}
	where, args := whereClause(filter, args)

	query := "WITH upd AS (UPDATE " + tbl + " SET " + strings.Join(sets, ", ") + where +
		" RETURNING *) SELECT to_jsonb(upd.*) FROM upd"
	return query, args, nil
}

func BuildDelete(collection string, filter Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, ErrUnfilteredMutation
	}
	tbl, err := table(collection)
	if err != nil {
		return "", nil, err
	}
	where, args := whereClause(filter, nil)
	return "DELETE FROM " + tbl + where, args, nil
}
