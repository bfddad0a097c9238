package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/execution/sqlexec"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseCommand(t *testing.T) {
	out, err := run(t, "parse", "sum([a]) + [b]")
	require.NoError(t, err)
	assert.Contains(t, out, "SUM([a])")
	assert.Contains(t, out, "fields: a, b")

	out, err = run(t, "parse", "--format", "json", "[a]")
	require.NoError(t, err)
	var res parseResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"a"}, res.Fields)

	_, err = run(t, "parse", "SUM([a]")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(exc.Code(err), "ERR.DS_API.FORMULA.PARSE"), exc.Code(err))

	_, err = run(t, "parse", "--format", "xml", "[a]")
	assert.Error(t, err)
}

func TestInspectCommand(t *testing.T) {
	out, err := run(t, "inspect", "--format", "json", "--field", "a=integer", "SUM([a])")
	require.NoError(t, err)
	var res inspectResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Aggregate)
	assert.False(t, res.Window)
	assert.False(t, res.Constant)

	_, err = run(t, "inspect", "--field", "a", "[a]")
	assert.Error(t, err)
}

func TestTranslateCommand(t *testing.T) {
	out, err := run(t, "translate", "-d", "SQLITE_3", "[a] > 1")
	require.NoError(t, err)
	assert.Equal(t, "(\"a\" > 1)\n", out)

	out, err = run(t, "translate", "-d", "MYSQL", "LEN([a])")
	require.NoError(t, err)
	assert.Contains(t, out, "CHAR_LENGTH(`a`)")

	_, err = run(t, "translate", "-d", "ORACLE", "[a]")
	assert.True(t, exc.ErrInvalidConfig.Is(err))
}

func TestDialectsCommand(t *testing.T) {
	out, err := run(t, "dialects")
	require.NoError(t, err)
	assert.Contains(t, out, "SQLITE_3\n")
	assert.Contains(t, out, "MYSQL_8_0_12\n")
}

// writeFixtures 创建 sqlite 文件库、数据集和配置
func writeFixtures(t *testing.T) (datasetPath, configPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sales.db")
	sx, err := sqlexec.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = sx.DB().Exec(`CREATE TABLE sales (city TEXT, amount INTEGER)`)
	require.NoError(t, err)
	_, err = sx.DB().Exec(`INSERT INTO sales VALUES ('Moscow', 10), ('Paris', 20), ('Moscow', 5), ('Rome', 1)`)
	require.NoError(t, err)
	require.NoError(t, sx.Close())

	datasetPath = filepath.Join(dir, "sales.yaml")
	require.NoError(t, os.WriteFile(datasetPath, []byte(`
id: sales
source_table: sales
fields:
  - id: city
    title: City
    type: string
  - id: amount
    title: Amount
    type: integer
    aggregation: sum
`), 0o644))

	configPath = filepath.Join(dir, "dlquery.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf(`
dialect: SQLITE_3
source:
  driver: sqlite3
  dsn: %q
`, dbPath)), 0o644))
	return datasetPath, configPath
}

func TestPlanCommand(t *testing.T) {
	ds, _ := writeFixtures(t)
	out, err := run(t, "plan", "--dataset", ds, "--row", "city", "--measure", "amount")
	require.NoError(t, err)
	assert.Contains(t, out, "(source_db, SQLITE_3)")
	assert.Contains(t, out, "GROUP BY")

	out, err = run(t, "plan", "--format", "json", "-d", "MYSQL", "--dataset", ds, "--row", "city", "--measure", "amount")
	require.NoError(t, err)
	var queries []plannedQuery
	require.NoError(t, json.Unmarshal([]byte(out), &queries))
	require.NotEmpty(t, queries)
	source := queries[len(queries)-1]
	for _, q := range queries {
		if q.Level == "source_db" {
			source = q
		}
	}
	assert.Equal(t, "MYSQL_8_0_12", source.Dialect)
	assert.Contains(t, source.SQL, "`sales`")

	_, err = run(t, "plan", "--dataset", ds)
	assert.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	ds, config := writeFixtures(t)
	out, err := run(t, "run", "-c", config, "--dataset", ds,
		"--row", "city", "--measure", "amount", "--order", "amount:desc", "--totals")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 9)
	assert.Contains(t, lines[1], "city")
	assert.Contains(t, lines[1], "total amount")
	assert.Contains(t, lines[3], "Paris")
	assert.Contains(t, lines[4], "Moscow")
	assert.Contains(t, lines[5], "Rome")
	assert.Contains(t, lines[6], "36")
	assert.Equal(t, "(4 rows)", lines[8])
}
