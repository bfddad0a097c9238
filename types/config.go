package types

import (
	"bytes"
	"errors"
	"io"
	"os"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/rulego/dlquery/dialect"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/logger"
)

// Config 查询管道配置
type Config struct {
	// 源数据库方言，例如 "SQLITE_3"、"MYSQL_8_0_12"
	Dialect string `json:"dialect" yaml:"dialect"`

	Source    SourceConfig    `json:"source" yaml:"source"`
	Planning  PlanningConfig  `json:"planning" yaml:"planning"`
	Execution ExecutionConfig `json:"execution" yaml:"execution"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Pivot     PivotConfig     `json:"pivot" yaml:"pivot"`
}

// SourceConfig 源数据库连接配置
type SourceConfig struct {
	Driver       string `json:"driver" yaml:"driver"` // database/sql 驱动名: sqlite3 或 mysql
	DSN          string `json:"dsn" yaml:"dsn"`
	ConnectionID string `json:"connectionId" yaml:"connectionId"` // 写入结果元信息和缓存键
}

// PlanningConfig 多查询拆分配置
type PlanningConfig struct {
	MaxIterations int  `json:"maxIterations" yaml:"maxIterations"`
	NativeWindows bool `json:"nativeWindows" yaml:"nativeWindows"` // 源库支持窗口函数时不拆分窗口
}

// ExecutionConfig 执行配置
type ExecutionConfig struct {
	Parallelism       int           `json:"parallelism" yaml:"parallelism"` // 同时执行的源查询数
	ChunkSize         int           `json:"chunkSize" yaml:"chunkSize"`
	QueryTimeout      time.Duration `json:"queryTimeout" yaml:"queryTimeout"`
	RowCountHardLimit int           `json:"rowCountHardLimit" yaml:"rowCountHardLimit"` // 0 表示不限制
}

// CacheConfig 结果缓存配置
type CacheConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Size    int  `json:"size" yaml:"size"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // text 或 json
}

// PivotConfig 透视表排序配置
type PivotConfig struct {
	Language     string `json:"language" yaml:"language"` // BCP 47 语言标签，决定字符串排序规则
	NaturalOrder bool   `json:"naturalOrder" yaml:"naturalOrder"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Dialect: "SQLITE_3",
		Source: SourceConfig{
			Driver:       "sqlite3",
			DSN:          ":memory:",
			ConnectionID: "default",
		},
		Planning: PlanningConfig{
			MaxIterations: 100,
		},
		Execution: ExecutionConfig{
			Parallelism:       4,
			ChunkSize:         1000,
			QueryTimeout:      30 * time.Second,
			RowCountHardLimit: 100000,
		},
		Cache: CacheConfig{
			Enabled: true,
			Size:    256,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
		Pivot: PivotConfig{
			Language: "en",
		},
	}
}

// DevelopmentConfig 开发调试配置：关闭缓存，输出调试日志
func DevelopmentConfig() Config {
	config := DefaultConfig()
	config.Cache.Enabled = false
	config.Logging.Level = "DEBUG"
	config.Execution.QueryTimeout = 0
	return config
}

// LoadConfig reads a YAML file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, exc.ErrInvalidConfig.Wrap(err, path)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
// Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, exc.ErrInvalidConfig.Wrap(err, "yaml")
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate 校验配置
func (c Config) Validate() error {
	if _, err := dialect.ParseDialect(c.Dialect); err != nil {
		return exc.ErrInvalidConfig.Wrap(err, "dialect")
	}
	switch c.Source.Driver {
	case "", "sqlite3", "mysql":
	default:
		return exc.ErrInvalidConfig.New("unsupported driver " + c.Source.Driver)
	}
	if c.Planning.MaxIterations <= 0 {
		return exc.ErrInvalidConfig.New("planning.maxIterations must be positive")
	}
	if c.Execution.Parallelism <= 0 {
		return exc.ErrInvalidConfig.New("execution.parallelism must be positive")
	}
	if c.Execution.ChunkSize <= 0 {
		return exc.ErrInvalidConfig.New("execution.chunkSize must be positive")
	}
	if c.Execution.QueryTimeout < 0 || c.Execution.RowCountHardLimit < 0 {
		return exc.ErrInvalidConfig.New("execution limits must not be negative")
	}
	if c.Cache.Enabled && c.Cache.Size <= 0 {
		return exc.ErrInvalidConfig.New("cache.size must be positive")
	}
	if _, ok := logger.ParseLevel(c.Logging.Level); !ok {
		return exc.ErrInvalidConfig.New("unknown log level " + c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return exc.ErrInvalidConfig.New("logging.format must be text or json")
	}
	if c.Pivot.Language != "" {
		if _, err := language.Parse(c.Pivot.Language); err != nil {
			return exc.ErrInvalidConfig.Wrap(err, "pivot.language")
		}
	}
	return nil
}
