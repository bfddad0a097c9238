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

package types

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/dlquery/exc"
)

// TestDefaultConfig 测试默认配置
func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())
	assert.Equal(t, "SQLITE_3", config.Dialect)
	assert.Equal(t, 100, config.Planning.MaxIterations)
	assert.Equal(t, 30*time.Second, config.Execution.QueryTimeout)
	assert.True(t, config.Cache.Enabled)
	assert.Equal(t, "text", config.Logging.Format)
}

func TestDevelopmentConfig(t *testing.T) {
	config := DevelopmentConfig()
	require.NoError(t, config.Validate())
	assert.False(t, config.Cache.Enabled)
	assert.Equal(t, "DEBUG", config.Logging.Level)
}

// TestParseConfig 测试YAML覆盖默认值
func TestParseConfig(t *testing.T) {
	data := []byte(`
dialect: MYSQL_8_0_12
source:
  driver: mysql
  dsn: "user:pass@tcp(localhost:3306)/db"
execution:
  queryTimeout: 5s
  rowCountHardLimit: 20
logging:
  level: debug
  format: json
pivot:
  language: ru
  naturalOrder: true
`)
	config, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, "MYSQL_8_0_12", config.Dialect)
	assert.Equal(t, "mysql", config.Source.Driver)
	assert.Equal(t, "default", config.Source.ConnectionID)
	assert.Equal(t, 5*time.Second, config.Execution.QueryTimeout)
	assert.Equal(t, 20, config.Execution.RowCountHardLimit)
	assert.Equal(t, 1000, config.Execution.ChunkSize)
	assert.Equal(t, "json", config.Logging.Format)
	assert.True(t, config.Pivot.NaturalOrder)
}

func TestParseEmptyConfig(t *testing.T) {
	config, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

// TestParseConfigErrors 测试非法配置
func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "dialekt: SQLITE_3"},
		{"bad yaml", "source: ["},
		{"unknown dialect", "dialect: ORACLE"},
		{"unknown driver", "source:\n  driver: oracle"},
		{"bad level", "logging:\n  level: LOUD"},
		{"bad format", "logging:\n  format: xml"},
		{"zero parallelism", "execution:\n  parallelism: 0"},
		{"negative limit", "execution:\n  rowCountHardLimit: -1"},
		{"empty cache", "cache:\n  size: 0"},
		{"bad language", "pivot:\n  language: \"123456789\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, exc.ErrInvalidConfig.Is(err), err.Error())
			assert.Equal(t, "ERR.DS_API.CONFIG.INVALID", exc.Code(err))
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlquery.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  enabled: false\n  size: 0\n"), 0o644))
	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, config.Cache.Enabled)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, exc.ErrInvalidConfig.Is(err))
}
