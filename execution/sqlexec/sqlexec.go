// Package sqlexec executes source-db queries over database/sql.
package sqlexec

import (
	"context"
	"database/sql"
	"io"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/rulego/dlquery/dataset"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/execution"
	"github.com/rulego/dlquery/logger"
	"github.com/rulego/dlquery/translation"
	"github.com/rulego/dlquery/utils/cast"
)

// Executor runs translated queries on one database.
type Executor struct {
	db        *sql.DB
	chunkSize int
	logger    logger.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithChunkSize sets the number of rows per chunk.
func WithChunkSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New wraps an open database.
func New(db *sql.DB, opts ...Option) *Executor {
	e := &Executor{db: db, chunkSize: execution.DefaultChunkSize}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logger.OrDefault(e.logger)
	return e
}

// Open opens and pings a database with a registered driver ("sqlite3" or
// "mysql").
func Open(driver, dsn string, opts ...Option) (*Executor, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", driver)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connect to %s database", driver)
	}
	if driver == "sqlite3" {
		// 内存库每个连接各自独立
		db.SetMaxOpenConns(1)
	}
	return New(db, opts...), nil
}

// MySQLConfig describes a MySQL connection.
type MySQLConfig struct {
	User     string        `json:"user" yaml:"user"`
	Password string        `json:"password" yaml:"password"`
	Addr     string        `json:"addr" yaml:"addr"`
	Database string        `json:"database" yaml:"database"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

// DSN renders the driver DSN, times are parsed into time.Time.
func (c MySQLConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = c.Addr
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Timeout = c.Timeout
	return cfg.FormatDSN()
}

// DB returns the underlying database.
func (e *Executor) DB() *sql.DB { return e.db }

// Close closes the database.
func (e *Executor) Close() error { return e.db.Close() }

// Execute runs q and streams its rows typed by q.Columns.
func (e *Executor) Execute(ctx context.Context, q *translation.TranslatedQuery) (execution.Stream, error) {
	rows, err := e.db.QueryContext(ctx, q.SQL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, exc.ErrExecutionCancelled.Wrap(ctx.Err())
		}
		return nil, exc.ErrSourceQuery.Wrap(errors.Wrap(err, "execute"), q.ID).With("sql", q.SQL)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, exc.ErrSourceQuery.Wrap(errors.Wrap(err, "read columns"), q.ID)
	}
	if len(cols) != len(q.Columns) {
		rows.Close()
		return nil, exc.ErrSourceQuery.Wrap(errors.Errorf("got %d columns, expected %d", len(cols), len(q.Columns)), q.ID)
	}
	return &rowStream{id: q.ID, rows: rows, schema: q.Columns, chunkSize: e.chunkSize}, nil
}

type rowStream struct {
	id        string
	rows      *sql.Rows
	schema    dataset.Schema
	chunkSize int
	done      bool
}

func (s *rowStream) Schema() dataset.Schema { return s.schema }

func (s *rowStream) Next(ctx context.Context) (execution.Chunk, error) {
	if s.done {
		return nil, io.EOF
	}
	chunk := make(execution.Chunk, 0, s.chunkSize)
	for len(chunk) < s.chunkSize {
		if err := ctx.Err(); err != nil {
			s.Close()
			return nil, exc.ErrExecutionCancelled.Wrap(err)
		}
		if !s.rows.Next() {
			s.done = true
			if err := s.rows.Err(); err != nil {
				return nil, exc.ErrSourceQuery.Wrap(errors.Wrap(err, "read rows"), s.id)
			}
			break
		}
		values := make([]interface{}, len(s.schema))
		ptrs := make([]interface{}, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := s.rows.Scan(ptrs...); err != nil {
			return nil, exc.ErrSourceQuery.Wrap(errors.Wrap(err, "scan row"), s.id)
		}
		row := make(dataset.Row, len(values))
		for i, v := range values {
			typed, err := cast.Coerce(v, s.schema[i].DataType)
			if err != nil {
				return nil, exc.ErrSourceQuery.Wrap(errors.Wrapf(err, "column %s", s.schema[i].Name), s.id)
			}
			row[i] = typed
		}
		chunk = append(chunk, row)
	}
	if len(chunk) == 0 {
		return nil, io.EOF
	}
	return chunk, nil
}

func (s *rowStream) Close() error {
	s.done = true
	return s.rows.Close()
}
