/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package execution runs translated multi-queries: source-db queries through
// an Executor, compeng queries in memory.
package execution

import (
	"context"
	"io"

	"github.com/rulego/dlquery/dataset"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/translation"
)

// DefaultChunkSize 默认每批行数
const DefaultChunkSize = 1000

// Chunk is a bounded batch of rows.
type Chunk []dataset.Row

// Stream is a finite single-pass row stream. Next returns io.EOF after the
// last chunk. Close may be called at any time and more than once.
type Stream interface {
	Schema() dataset.Schema
	Next(ctx context.Context) (Chunk, error)
	Close() error
}

// Executor runs one source-db query.
type Executor interface {
	Execute(ctx context.Context, q *translation.TranslatedQuery) (Stream, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, q *translation.TranslatedQuery) (Stream, error)

func (f ExecutorFunc) Execute(ctx context.Context, q *translation.TranslatedQuery) (Stream, error) {
	return f(ctx, q)
}

// SliceStream streams rows held in memory.
type SliceStream struct {
	schema    dataset.Schema
	rows      []dataset.Row
	chunkSize int
	pos       int
	closed    bool
}

// NewSliceStream creates a stream over rows, chunkSize <= 0 uses the default.
func NewSliceStream(schema dataset.Schema, rows []dataset.Row, chunkSize int) *SliceStream {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &SliceStream{schema: schema, rows: rows, chunkSize: chunkSize}
}

// RowsStream streams a row set.
func RowsStream(rows *dataset.Rows) *SliceStream {
	return NewSliceStream(rows.Schema, rows.Rows, 0)
}

func (s *SliceStream) Schema() dataset.Schema { return s.schema }

func (s *SliceStream) Next(ctx context.Context) (Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, exc.ErrExecutionCancelled.Wrap(err)
	}
	if s.closed || s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	end := s.pos + s.chunkSize
	if end > len(s.rows) {
		end = len(s.rows)
	}
	chunk := Chunk(s.rows[s.pos:end])
	s.pos = end
	return chunk, nil
}

func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

// LimitStream fails with ERR.DS_API.ROW_COUNT_LIMIT at the first row past
// Limit. Rows within the limit are still delivered, the chunk holding the
// offending row is cut right before it.
type LimitStream struct {
	Stream
	Limit    int
	seen     int
	exceeded bool
}

// NewLimitStream wraps s, a nil limit returns s unchanged.
func NewLimitStream(s Stream, limit *int) Stream {
	if limit == nil {
		return s
	}
	return &LimitStream{Stream: s, Limit: *limit}
}

func (s *LimitStream) Next(ctx context.Context) (Chunk, error) {
	if s.exceeded {
		return nil, exc.ErrResultRowCountLimitExceeded.New(s.Limit)
	}
	chunk, err := s.Stream.Next(ctx)
	if err != nil {
		return nil, err
	}
	room := s.Limit - s.seen
	if len(chunk) <= room {
		s.seen += len(chunk)
		return chunk, nil
	}
	// 超限后不再读取底层流
	s.exceeded = true
	s.seen = s.Limit
	_ = s.Stream.Close()
	if room > 0 {
		return chunk[:room], nil
	}
	return nil, exc.ErrResultRowCountLimitExceeded.New(s.Limit)
}

// ReadAll drains and closes s.
func ReadAll(ctx context.Context, s Stream) (*dataset.Rows, error) {
	defer s.Close()
	out := dataset.NewRows(s.Schema())
	for {
		chunk, err := s.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out.Rows = append(out.Rows, chunk...)
	}
}
