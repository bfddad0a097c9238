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
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rulego/dlquery/connectors"
	"github.com/rulego/dlquery/execution"
	"github.com/rulego/dlquery/functions"
	"github.com/rulego/dlquery/logger"
	"github.com/rulego/dlquery/metrics"
	"github.com/rulego/dlquery/types"
)

// Option 表示对 Engine 默认行为的修改配置。
type Option func(*Engine)

// WithConfig 使用完整配置替换默认配置。
//
// 示例:
//
//	config, err := types.LoadConfig("dlquery.yaml")
//	engine, err := dlquery.New(dlquery.WithConfig(config))
func WithConfig(config types.Config) Option {
	return func(e *Engine) {
		e.config = config
	}
}

// WithLogger 设置自定义日志记录器，忽略配置中的日志设置。
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		e.logger = log
	}
}

// WithLogLevel 设置日志级别。
//
// 示例:
//
//	engine, err := dlquery.New(dlquery.WithLogLevel(logger.DEBUG))
func WithLogLevel(level logger.Level) Option {
	return func(e *Engine) {
		e.config.Logging.Level = level.String()
	}
}

// WithLogOutput 日志输出到 output
func WithLogOutput(output io.Writer, level logger.Level) Option {
	return func(e *Engine) {
		e.logger = logger.NewLogger(level, output)
	}
}

// WithDiscardLog 禁用所有日志输出。
func WithDiscardLog() Option {
	return func(e *Engine) {
		e.logger = logger.NewDiscardLogger()
	}
}

// WithConnectors 替换内置连接器。函数注册表由这些连接器构建。
func WithConnectors(conns *connectors.Set) Option {
	return func(e *Engine) {
		e.conns = conns
	}
}

// WithRegistry 使用已构建的函数注册表。
func WithRegistry(reg *functions.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithExecutor 设置源查询执行器，此时不会打开配置中的数据库。
// 执行器由调用方负责关闭。
func WithExecutor(exec execution.Executor) Option {
	return func(e *Engine) {
		e.executor = exec
	}
}

// WithCacheSize 启用结果缓存并设置容量。
func WithCacheSize(size int) Option {
	return func(e *Engine) {
		e.config.Cache.Enabled = true
		e.cacheSize = size
	}
}

// WithoutCache 关闭结果缓存
func WithoutCache() Option {
	return func(e *Engine) {
		e.config.Cache.Enabled = false
	}
}

// WithMetrics 把管道指标注册到 r。
//
// 示例:
//
//	reg := prometheus.NewRegistry()
//	engine, err := dlquery.New(dlquery.WithMetrics(reg))
func WithMetrics(r prometheus.Registerer) Option {
	return func(e *Engine) {
		e.metrics = metrics.New(r)
	}
}

// WithTracer 使用指定的 tracer 代替全局 tracer。
func WithTracer(tracer opentracing.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}
