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

package dlquery

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"golang.org/x/text/language"

	"github.com/rulego/dlquery/cache"
	"github.com/rulego/dlquery/compilation"
	"github.com/rulego/dlquery/connectors"
	"github.com/rulego/dlquery/connectors/all"
	"github.com/rulego/dlquery/dataset"
	"github.com/rulego/dlquery/dialect"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/execution"
	"github.com/rulego/dlquery/execution/compeng"
	"github.com/rulego/dlquery/execution/sqlexec"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/functions"
	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/logger"
	"github.com/rulego/dlquery/merging"
	"github.com/rulego/dlquery/metrics"
	"github.com/rulego/dlquery/multiquery"
	"github.com/rulego/dlquery/pagination"
	"github.com/rulego/dlquery/pivot"
	"github.com/rulego/dlquery/translation"
	"github.com/rulego/dlquery/types"
)

// Engine 是 dlquery 查询管道的入口。
// 它把块图例编译为多查询，拆分出内存计算部分，翻译成源库方言的 SQL，
// 执行后合并各块的结果，并按需分页和透视。
//
// 使用示例:
//
//	engine, err := dlquery.New(dlquery.WithConfig(types.DefaultConfig()))
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//	resp, err := engine.Execute(ctx, &dlquery.Request{Dataset: ds, Legend: bl})
type Engine struct {
	config   types.Config
	logger   logger.Logger
	registry *functions.Registry
	conns    *connectors.Set
	dialect  dialect.DialectCombo

	executor execution.Executor
	closer   io.Closer

	cache   *cache.ResultCache
	metrics *metrics.Metrics
	tracer  opentracing.Tracer

	// 选项设置的值在 New 中处理
	cacheSize int
}

// Request is one data request.
type Request struct {
	Dataset *dataset.Dataset
	Legend  *legend.BlockLegend
	// Pivot, when set, turns the merged stream into a pivot table.
	Pivot *legend.PivotLegend
}

// Response is the result of a request.
type Response struct {
	RequestID string
	Stream    *merging.MergedQueryDataStream
	Pivot     *pivot.DataFrame
	// Cached is set when the stream came from the result cache. A cached
	// stream is shared and must not be modified.
	Cached bool
}

// Plan is a translated request, ready to run.
type Plan struct {
	Legend     *legend.BlockLegend
	MultiQuery *translation.TranslatedMultiQuery
}

// New 创建查询引擎。
// 未指定执行器时按配置打开源数据库。
func New(options ...Option) (*Engine, error) {
	e := &Engine{config: types.DefaultConfig()}
	for _, option := range options {
		option(e)
	}
	if err := e.config.Validate(); err != nil {
		return nil, err
	}
	if e.logger == nil {
		e.logger = newConfiguredLogger(e.config.Logging)
	}

	d, err := dialect.ParseDialect(e.config.Dialect)
	if err != nil {
		return nil, err
	}
	if !d.IsSingle() {
		d = dialect.Latest(d.Backend())
	}
	e.dialect = d

	if e.conns == nil {
		if e.conns, err = all.Set(); err != nil {
			return nil, err
		}
	}
	if e.registry == nil {
		if e.registry, err = e.conns.BuildRegistry(); err != nil {
			return nil, err
		}
	}
	if _, err := e.conns.ForDialect(d); err != nil {
		return nil, err
	}

	if e.metrics == nil {
		e.metrics = metrics.New(nil)
	}
	if e.config.Cache.Enabled && e.cache == nil {
		size := e.config.Cache.Size
		if e.cacheSize > 0 {
			size = e.cacheSize
		}
		if e.cache, err = cache.NewResultCache(size); err != nil {
			return nil, err
		}
	}

	if e.executor == nil {
		src := e.config.Source
		driver := src.Driver
		if driver == "" {
			driver = defaultDriver(d.Backend())
		}
		sx, err := sqlexec.Open(driver, src.DSN,
			sqlexec.WithChunkSize(e.config.Execution.ChunkSize),
			sqlexec.WithLogger(e.logger))
		if err != nil {
			return nil, exc.ErrInvalidConfig.Wrap(err, "source")
		}
		e.executor, e.closer = sx, sx
	}
	e.logger.Debug("dlquery engine ready, dialect %s", d)
	return e, nil
}

func defaultDriver(b dialect.Backend) string {
	if b == dialect.BackendMySQL {
		return "mysql"
	}
	return "sqlite3"
}

func newConfiguredLogger(c types.LoggingConfig) logger.Logger {
	level, _ := logger.ParseLevel(c.Level)
	if c.Format == "json" {
		return logger.NewJSONLogger(level, os.Stderr)
	}
	return logger.NewLogger(level, os.Stderr)
}

// Close releases the source database opened by New.
func (e *Engine) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

// Dialect returns the source dialect queries are translated to.
func (e *Engine) Dialect() dialect.DialectCombo { return e.dialect }

// Registry returns the function registry.
func (e *Engine) Registry() *functions.Registry { return e.registry }

// Plan compiles, splits and translates a request without running it.
func (e *Engine) Plan(req *Request) (*Plan, error) {
	return e.plan(req, e.logger)
}

func (e *Engine) plan(req *Request, log logger.Logger) (p *Plan, err error) {
	start := time.Now()
	defer func() { e.metrics.ObserveCompile(time.Since(start), err) }()

	if req == nil || req.Dataset == nil || req.Legend == nil {
		return nil, exc.ErrInvalidRequest.New("request needs a dataset and a block legend")
	}
	bl := pagination.PrePaginate(req.Legend)
	if bl.Meta.RowCountHardLimit == nil && e.config.Execution.RowCountHardLimit > 0 {
		limit := e.config.Execution.RowCountHardLimit
		bl.Meta.RowCountHardLimit = &limit
	}

	compiler := compilation.NewCompiler(req.Dataset, e.registry, compilation.WithLogger(log))
	mq, err := compiler.Compile(bl)
	if err != nil {
		return nil, err
	}

	conn, err := e.conns.ForDialect(e.dialect)
	if err != nil {
		return nil, err
	}
	kind := conn.FactoryFor(e.dialect)
	if !e.config.Planning.NativeWindows {
		kind = connectors.FactoryCompeng
	}
	factory, err := multiquery.FactoryFor(kind)
	if err != nil {
		return nil, err
	}
	mutator := factory.NewMutator(compiler.Env(),
		multiquery.WithMaxIterations(e.config.Planning.MaxIterations),
		multiquery.WithLogger(log))
	if mq, err = mutator.Mutate(mq); err != nil {
		return nil, err
	}

	tmq, err := translation.TranslateMultiQuery(mq, e.registry, e.dialect, sourceTypes(req.Dataset))
	if err != nil {
		return nil, err
	}
	log.Debug("planned %d queries for %d blocks", len(tmq.Queries), len(tmq.Blocks))
	return &Plan{Legend: bl, MultiQuery: tmq}, nil
}

// sourceTypes types the source table columns by their direct fields.
func sourceTypes(ds *dataset.Dataset) map[string]formula.DataType {
	out := make(map[string]formula.DataType, len(ds.Fields))
	for _, f := range ds.Fields {
		if f.CalcMode == dataset.CalcDirect {
			out[f.Source] = f.DataType
		}
	}
	return out
}

// startSpan starts a span with the configured tracer, or the global one,
// as a child of the span carried by ctx.
func (e *Engine) startSpan(ctx context.Context, name string) (opentracing.Span, context.Context) {
	tracer := e.tracer
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}
	var opts []opentracing.StartSpanOption
	if parent := opentracing.SpanFromContext(ctx); parent != nil {
		opts = append(opts, opentracing.ChildOf(parent.Context()))
	}
	span := tracer.StartSpan(name, opts...)
	return span, opentracing.ContextWithSpan(ctx, span)
}

// Execute runs a request end to end. Any failing query fails the whole
// request, partial results are never returned.
func (e *Engine) Execute(ctx context.Context, req *Request) (resp *Response, err error) {
	requestID := uuid.NewString()
	log := e.logger.WithFields(logger.Fields{"request_id": requestID})

	span, ctx := e.startSpan(ctx, "dlquery.execute")
	span.SetTag("request_id", requestID)
	defer func() {
		if err != nil {
			ext.Error.Set(span, true)
			span.LogKV("error", err.Error(), "code", exc.Code(err))
		}
		span.Finish()
	}()

	if e.config.Execution.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Execution.QueryTimeout)
		defer cancel()
	}

	p, err := e.plan(req, log)
	if err != nil {
		log.Warn("planning failed: %v", err)
		return nil, err
	}

	var key *cache.LocalKeyRepresentation
	if e.cache != nil {
		key = e.cacheKey(p)
		if s, ok := e.cache.Get(key); ok {
			e.metrics.CacheHit(true)
			log.Debug("result cache hit")
			return e.respond(requestID, s, req.Pivot, true)
		}
		e.metrics.CacheHit(false)
	}

	s, err := e.run(ctx, p, log)
	if err != nil {
		log.Warn("execution failed: %v", err)
		return nil, err
	}
	if key != nil {
		if err := e.cache.Add(key, s); err != nil {
			log.Warn("result not cached: %v", err)
		}
	}
	return e.respond(requestID, s, req.Pivot, false)
}

// run executes a plan and merges the block results.
func (e *Engine) run(ctx context.Context, p *Plan, log logger.Logger) (*merging.MergedQueryDataStream, error) {
	qe := &execution.QueryExecutor{
		Executor:    e.executor,
		Evaluator:   compeng.NewEvaluator(e.registry, log),
		Parallelism: e.config.Execution.Parallelism,
		Logger:      log,
		Observer:    e.metrics.Observer(),
	}
	results, err := qe.Execute(ctx, p.MultiQuery)
	if err != nil {
		return nil, err
	}
	union, err := merging.Collect(p.MultiQuery, results, p.Legend.Meta, e.config.Source.ConnectionID)
	if err != nil {
		return nil, err
	}
	s, err := merging.NewMerger(log).Merge(union)
	if err != nil {
		return nil, err
	}
	return pagination.PostPaginate(s), nil
}

func (e *Engine) respond(requestID string, s *merging.MergedQueryDataStream, pl *legend.PivotLegend, cached bool) (*Response, error) {
	resp := &Response{RequestID: requestID, Stream: s, Cached: cached}
	if pl == nil {
		return resp, nil
	}
	df, err := e.pivotTransformer(pl).Pivot(s)
	if err != nil {
		return nil, err
	}
	resp.Pivot = df
	return resp, nil
}

func (e *Engine) pivotTransformer(pl *legend.PivotLegend) *pivot.Transformer {
	opts := []pivot.Option{pivot.WithLogger(e.logger)}
	if tag, err := language.Parse(e.config.Pivot.Language); err == nil {
		opts = append(opts, pivot.WithLanguage(tag))
	}
	if e.config.Pivot.NaturalOrder {
		opts = append(opts, pivot.WithNaturalOrder())
	}
	return pivot.NewTransformer(pl, opts...)
}

// cacheKey 结果缓存键：查询本身加上合并后的分页
func (e *Engine) cacheKey(p *Plan) *cache.LocalKeyRepresentation {
	key := cache.QueryKey(e.config.Source.ConnectionID, p.MultiQuery)
	meta := p.Legend.Meta
	return key.Extend("pagination", fmt.Sprintf("%s/%s", intString(meta.Offset), intString(meta.Limit)))
}

func intString(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}
