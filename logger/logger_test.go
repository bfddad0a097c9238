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

package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLevel_String 测试日志级别的字符串表示
func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
		{OFF, "OFF"},
		{Level(999), "UNKNOWN"},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, test.level.String())
	}
}

func TestParseLevel(t *testing.T) {
	l, ok := ParseLevel("warning")
	assert.True(t, ok)
	assert.Equal(t, WARN, l)
	l, ok = ParseLevel("Debug")
	assert.True(t, ok)
	assert.Equal(t, DEBUG, l)
	_, ok = ParseLevel("loud")
	assert.False(t, ok)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(INFO, &buf)
	log.Info("info message with %d number", 42)

	out := buf.String()
	assert.Contains(t, out, "level=info")
	assert.Contains(t, out, "info message with 42 number")
}

// TestLevelFiltering 测试日志级别过滤
func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		loggerLevel  Level
		messageLevel Level
		shouldLog    bool
	}{
		{DEBUG, DEBUG, true},
		{DEBUG, ERROR, true},
		{INFO, DEBUG, false},
		{INFO, WARN, true},
		{WARN, INFO, false},
		{WARN, WARN, true},
		{ERROR, WARN, false},
		{ERROR, ERROR, true},
		{OFF, ERROR, false},
	}
	for _, test := range tests {
		var buf bytes.Buffer
		log := NewLogger(test.loggerLevel, &buf)
		switch test.messageLevel {
		case DEBUG:
			log.Debug("test message")
		case INFO:
			log.Info("test message")
		case WARN:
			log.Warn("test message")
		case ERROR:
			log.Error("test message")
		}
		assert.Equal(t, test.shouldLog, buf.Len() > 0, "logger %s message %s", test.loggerLevel, test.messageLevel)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(DEBUG, &buf)
	log.SetLevel(ERROR)
	log.Warn("hidden")
	assert.Zero(t, buf.Len())
	log.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(DEBUG, &buf)
	log.WithFields(Fields{"query_id": "q1"}).WithFields(Fields{"level": "compeng"}).Debug("running %s", "window")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "q1", record["query_id"])
	assert.Equal(t, "running window", record["msg"])
	// logrus 会把与内置键冲突的字段改名
	assert.Equal(t, "compeng", record["fields.level"])
}

func TestDiscardLogger(t *testing.T) {
	log := NewDiscardLogger()
	log.SetLevel(DEBUG)
	log.WithFields(Fields{"a": 1}).Error("nothing")
}

func TestGlobalLogger(t *testing.T) {
	original := GetDefault()
	defer SetDefault(original)

	var buf bytes.Buffer
	SetDefault(NewLogger(DEBUG, &buf))
	Debug("global debug message")
	Info("global info message")
	Warn("global warn message")
	Error("global error message")

	for _, msg := range []string{"global debug message", "global info message", "global warn message", "global error message"} {
		assert.Contains(t, buf.String(), msg)
	}
	assert.Equal(t, GetDefault(), OrDefault(nil))
}

// TestConcurrentLogging 测试并发日志记录
func TestConcurrentLogging(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(INFO, &buf)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			log.WithFields(Fields{"worker": id}).Info("concurrent message")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, strings.Count(buf.String(), "concurrent message"))
}
