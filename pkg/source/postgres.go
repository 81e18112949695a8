package source

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuemby/subnet-watchdog/pkg/types"
)

const (
	// DefaultTable holds one row per deployed blockchain
	DefaultTable = "blockchains_lancer"

	columnID        = "id"
	columnName      = "blockchain_name"
	columnSubnetID  = "subnet_id"
	columnVMID      = "vm_id"
	defaultMaxConns = 4
)

// PostgresSource reads subnet bindings from a Postgres table
type PostgresSource struct {
	db    *pgxpool.Pool
	table string
}

// NewPostgresSource connects to the database at dsn and pings it
func NewPostgresSource(ctx context.Context, dsn, table string) (*PostgresSource, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database url is required")
	}
	if table == "" {
		table = DefaultTable
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}
	if cfg.MaxConns > defaultMaxConns {
		cfg.MaxConns = defaultMaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresSource{db: pool, table: table}, nil
}

// Close releases the connection pool
func (s *PostgresSource) Close() {
	s.db.Close()
}

// FetchAll returns bindings newest first, skipping rows without a subnet ID
func (s *PostgresSource) FetchAll(ctx context.Context) ([]types.SubnetBinding, error) {
	sql, args, err := selectBindings(s.table).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to create db request: %w", err)
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	result := make([]types.SubnetBinding, 0, 32)
	for rows.Next() {
		var b types.SubnetBinding
		if err := rows.Scan(&b.SubnetID, &b.VMID); err != nil {
			return nil, fmt.Errorf("failed to scan binding: %w", err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bindings: %w", err)
	}
	return result, nil
}

// Insert adds one row per entry and returns how many were written
func (s *PostgresSource) Insert(ctx context.Context, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	sql, args, err := insertEntries(s.table, entries).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to create db request: %w", err)
	}

	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert subnets: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func selectBindings(table string) squirrel.SelectBuilder {
	return squirrel.Select(columnSubnetID, columnVMID).
		From(table).
		Where(squirrel.NotEq{columnSubnetID: nil}).
		OrderBy(columnID + " DESC").
		PlaceholderFormat(squirrel.Dollar)
}

func insertEntries(table string, entries []Entry) squirrel.InsertBuilder {
	q := squirrel.Insert(table).
		Columns(columnName, columnSubnetID, columnVMID).
		PlaceholderFormat(squirrel.Dollar)
	for _, e := range entries {
		q = q.Values(e.Name, e.SubnetID, e.VMID)
	}
	return q
}
