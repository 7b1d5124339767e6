package dbgateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/jordigilh/glance/internal/errors"
)

// PostgresGateway is the v1 production Gateway backend: a pgx/v5
// connection pool against a live PostgreSQL server.
type PostgresGateway struct {
	pool *pgxpool.Pool
}

func NewPostgresGateway() *PostgresGateway {
	return &PostgresGateway{}
}

func (g *PostgresGateway) Connect(ctx context.Context, cfg ConnectConfig) error {
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, sslmode)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return apperrors.ConnectionError("parse connection string", err)
	}
	if cfg.PoolSize > 0 {
		poolCfg.MaxConns = int32(cfg.PoolSize)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return apperrors.ConnectionError("connect to postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return apperrors.ConnectionError("ping postgres", err)
	}
	g.pool = pool
	return nil
}

func (g *PostgresGateway) Close(ctx context.Context) error {
	if g.pool != nil {
		g.pool.Close()
		g.pool = nil
	}
	return nil
}

func (g *PostgresGateway) Execute(ctx context.Context, sql string, timeout time.Duration) (*Result, error) {
	if g.pool == nil {
		return nil, apperrors.ConnectionError("execute", errors.New("not connected"))
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	rows, err := g.pool.Query(execCtx, sql)
	if err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.New(apperrors.KindQuery, "query timed out").WithDetails(timeout.String())
		}
		return nil, apperrors.QueryError("execute sql", err)
	}
	defer rows.Close()

	result := &Result{}
	for _, fd := range rows.FieldDescriptions() {
		result.Columns = append(result.Columns, ColumnDescriptor{
			Name: string(fd.Name),
			Type: oidTypeName(fd.DataTypeOID),
		})
	}

	for rows.Next() {
		if len(result.Rows) >= MaxRows {
			result.Truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, apperrors.QueryError("scan row", err)
		}
		row := make([]Cell, len(values))
		for i, v := range values {
			row[i] = toCell(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.New(apperrors.KindQuery, "query timed out").WithDetails(timeout.String())
		}
		return nil, apperrors.QueryError("iterate rows", err)
	}

	result.Elapsed = time.Since(start)
	if tag := rows.CommandTag(); tag.RowsAffected() >= 0 {
		n := tag.RowsAffected()
		result.RowsAffected = &n
	}
	return result, nil
}

func (g *PostgresGateway) IntrospectSchema(ctx context.Context) (*Schema, error) {
	if g.pool == nil {
		return nil, apperrors.ConnectionError("introspect schema", errors.New("not connected"))
	}

	schema := &Schema{}
	tableRows, err := g.pool.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, apperrors.QueryError("list tables", err)
	}
	var tableNames []string
	for tableRows.Next() {
		var name string
		if err := tableRows.Scan(&name); err != nil {
			tableRows.Close()
			return nil, apperrors.QueryError("scan table name", err)
		}
		tableNames = append(tableNames, name)
	}
	tableRows.Close()

	for _, name := range tableNames {
		t := Table{Name: name}

		colRows, err := g.pool.Query(ctx, `
			SELECT column_name, data_type, is_nullable, COALESCE(column_default, '')
			FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = $1
			ORDER BY ordinal_position`, name)
		if err != nil {
			return nil, apperrors.QueryError("list columns", err)
		}
		for colRows.Next() {
			var colName, dataType, nullable, def string
			if err := colRows.Scan(&colName, &dataType, &nullable, &def); err != nil {
				colRows.Close()
				return nil, apperrors.QueryError("scan column", err)
			}
			t.Columns = append(t.Columns, Column{
				Name:     colName,
				Type:     dataType,
				Nullable: nullable == "YES",
				Default:  def,
			})
		}
		colRows.Close()

		pkRows, err := g.pool.Query(ctx, `
			SELECT a.attname
			FROM pg_index i
			JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
			WHERE i.indrelid = $1::regclass AND i.indisprimary`, name)
		if err == nil {
			for pkRows.Next() {
				var col string
				if pkRows.Scan(&col) == nil {
					t.PrimaryKey = append(t.PrimaryKey, col)
				}
			}
			pkRows.Close()
		}

		schema.Tables = append(schema.Tables, t)
	}
	return schema, nil
}

func oidTypeName(oid uint32) string {
	switch oid {
	case pgtypeInt4, pgtypeInt8, pgtypeInt2:
		return "integer"
	case pgtypeFloat4, pgtypeFloat8, pgtypeNumeric:
		return "numeric"
	case pgtypeBool:
		return "boolean"
	case pgtypeTimestamp, pgtypeTimestamptz, pgtypeDate:
		return "timestamp"
	case pgtypeBytea:
		return "bytea"
	default:
		return "text"
	}
}

// pgx/v5's pgtype registry exposes these as typed constants, but the
// OIDs themselves are wire-stable; mirroring them here avoids pulling
// in pgtype just for a handful of comparisons.
const (
	pgtypeBool        = 16
	pgtypeBytea       = 17
	pgtypeInt8        = 20
	pgtypeInt2        = 21
	pgtypeInt4        = 23
	pgtypeTimestamp   = 1114
	pgtypeTimestamptz = 1184
	pgtypeDate        = 1082
	pgtypeFloat4      = 700
	pgtypeFloat8      = 701
	pgtypeNumeric     = 1700
)

func toCell(v interface{}) Cell {
	switch val := v.(type) {
	case nil:
		return Cell{Kind: CellNull}
	case int64:
		return Cell{Kind: CellInt64, Int: val}
	case int32:
		return Cell{Kind: CellInt64, Int: int64(val)}
	case float64:
		return Cell{Kind: CellFloat64, Float: val}
	case float32:
		return Cell{Kind: CellFloat64, Float: float64(val)}
	case bool:
		return Cell{Kind: CellBool, Bool: val}
	case time.Time:
		return Cell{Kind: CellTime, Time: val}
	case []byte:
		return Cell{Kind: CellBytes, Bytes: val}
	case string:
		return Cell{Kind: CellText, Text: val}
	case pgconn.CommandTag:
		return Cell{Kind: CellText, Text: val.String()}
	default:
		return Cell{Kind: CellText, Text: fmt.Sprintf("%v", val)}
	}
}
