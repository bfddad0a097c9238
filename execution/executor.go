package execution

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"golang.org/x/sync/errgroup"

	"github.com/rulego/dlquery/dataset"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/execution/compeng"
	"github.com/rulego/dlquery/logger"
	"github.com/rulego/dlquery/translation"
)

// DefaultParallelism bounds concurrently running source queries.
const DefaultParallelism = 4

// Observer is notified once per executed query.
type Observer func(q *translation.TranslatedQuery, rows int, elapsed time.Duration, err error)

// QueryExecutor executes every query of a translated multi-query. Source-db
// queries run concurrently, compeng queries follow in dependency order.
type QueryExecutor struct {
	Executor    Executor
	Evaluator   *compeng.Evaluator
	Parallelism int
	Logger      logger.Logger
	Observer    Observer
}

// Results holds the rows of every executed query.
type Results map[string]*dataset.Rows

// Execute runs tmq. On error or cancellation every open stream is closed and
// no result is returned.
func (e *QueryExecutor) Execute(ctx context.Context, tmq *translation.TranslatedMultiQuery) (Results, error) {
	log := logger.OrDefault(e.Logger)
	parallelism := e.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	results := make(Results, len(tmq.Queries))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, q := range tmq.Queries {
		if q.IsCompeng() {
			continue
		}
		q := q
		g.Go(func() error {
			rows, err := e.runSource(gctx, q)
			if err != nil {
				return err
			}
			mu.Lock()
			results[q.ID] = rows
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, e.cancelled(ctx, err)
	}

	for _, q := range tmq.Queries {
		if !q.IsCompeng() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, exc.ErrExecutionCancelled.Wrap(err)
		}
		rows, err := e.runCompeng(ctx, q, results)
		if err != nil {
			return nil, e.cancelled(ctx, err)
		}
		results[q.ID] = rows
	}
	log.Debug("executed %d queries", len(results))
	return results, nil
}

func (e *QueryExecutor) runSource(ctx context.Context, q *translation.TranslatedQuery) (rows *dataset.Rows, err error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "execution.source")
	span.SetTag("query", q.ID)
	span.SetTag("dialect", q.Dialect.String())
	start := time.Now()
	defer func() {
		if err != nil {
			span.SetTag("error", true)
		}
		span.Finish()
		e.observe(q, rows, start, err)
	}()

	logger.OrDefault(e.Logger).Debug("query %s:\n%s", q.ID, q.SQL)
	stream, err := e.Executor.Execute(ctx, q)
	if err != nil {
		return nil, err
	}
	return ReadAll(ctx, NewLimitStream(stream, q.RowCountHardLimit))
}

func (e *QueryExecutor) runCompeng(ctx context.Context, q *translation.TranslatedQuery, results Results) (rows *dataset.Rows, err error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "execution.compeng")
	span.SetTag("query", q.ID)
	start := time.Now()
	defer func() {
		span.Finish()
		e.observe(q, rows, start, err)
	}()

	if e.Evaluator == nil {
		return nil, exc.ErrCompeng.New("no in-memory evaluator configured for query " + q.ID)
	}
	inputs := make(map[string]*dataset.Rows, len(q.DependsOn))
	for _, id := range q.DependsOn {
		r, ok := results[id]
		if !ok {
			return nil, exc.ErrPlanningDependency.New("query " + q.ID + " reads " + id + " which was not executed")
		}
		inputs[id] = r
	}
	out, err := e.Evaluator.Evaluate(ctx, q, inputs)
	if err != nil {
		return nil, err
	}
	if q.RowCountHardLimit != nil && out.Len() > *q.RowCountHardLimit {
		return nil, exc.ErrResultRowCountLimitExceeded.New(*q.RowCountHardLimit)
	}
	return out, nil
}

func (e *QueryExecutor) observe(q *translation.TranslatedQuery, rows *dataset.Rows, start time.Time, err error) {
	if e.Observer == nil {
		return
	}
	n := 0
	if rows != nil {
		n = rows.Len()
	}
	e.Observer(q, n, time.Since(start), err)
}

// cancelled reports a caller cancellation instead of the error it caused.
func (e *QueryExecutor) cancelled(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !exc.ErrExecutionCancelled.Is(err) {
		return exc.ErrExecutionCancelled.Wrap(ctxErr)
	}
	return err
}
