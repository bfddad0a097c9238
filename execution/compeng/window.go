package compeng

import (
	"sort"
	"strings"

	spfcast "github.com/spf13/cast"

	"github.com/rulego/dlquery/dataset"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/inspect"
	"github.com/rulego/dlquery/utils/cast"
)

// 累计/滑动窗口函数对应的聚合
var (
	runningBase = map[string]string{"rsum": "sum", "rcount": "count", "rmin": "min", "rmax": "max", "ravg": "avg"}
	movingBase  = map[string]string{"msum": "sum", "mcount": "count", "mmin": "min", "mmax": "max", "mavg": "avg"}
)

// windowSlot is a window call computed into a synthetic column.
type windowSlot struct {
	call      *formula.WindowFuncCall
	class     inspect.FunctionClass
	slot      int
	args      []*scalar
	partition []*scalar
	order     []*scalar
	desc      []bool
}

// compute fills the slot of every row. Partitions come from WITHIN dims,
// TOTAL puts all rows into one partition.
func (w *windowSlot) compute(rows []dataset.Row, vars []string) error {
	args := make([][]interface{}, len(rows))
	keys := make([]string, len(rows))
	orders := make([][]interface{}, len(rows))
	for i, row := range rows {
		env := rowEnv(vars, row)
		var err error
		if args[i], err = evalAll(w.args, env); err != nil {
			return err
		}
		parts, err := evalAll(w.partition, env)
		if err != nil {
			return err
		}
		keys[i] = groupKey(parts)
		if orders[i], err = evalAll(w.order, env); err != nil {
			return err
		}
	}

	var partitionOrder []string
	partitions := make(map[string][]int)
	for i, k := range keys {
		if _, ok := partitions[k]; !ok {
			partitionOrder = append(partitionOrder, k)
		}
		partitions[k] = append(partitions[k], i)
	}
	for _, k := range partitionOrder {
		idx := partitions[k]
		if len(w.order) > 0 {
			sort.SliceStable(idx, func(a, b int) bool {
				return compareTuples(orders[idx[a]], orders[idx[b]], w.desc) < 0
			})
		}
		values := make([][]interface{}, len(idx))
		for j, i := range idx {
			values[j] = args[i]
		}
		results, err := w.evaluate(values)
		if err != nil {
			return err
		}
		for j, i := range idx {
			rows[i][w.slot] = results[j]
		}
	}
	return nil
}

// evaluate computes the window over one ordered partition.
func (w *windowSlot) evaluate(values [][]interface{}) ([]interface{}, error) {
	name := w.call.Name
	out := make([]interface{}, len(values))
	if len(values) == 0 {
		return out, nil
	}
	if w.class == inspect.ClassAggregate {
		spec, err := LookupAggregation(name, len(values[0]))
		if err != nil {
			return nil, err
		}
		agg := spec.Aggregator
		for _, v := range values {
			spec.Feed(agg, v)
		}
		result := agg.Result()
		for j := range out {
			out[j] = result
		}
		return out, nil
	}
	if base, ok := runningBase[name]; ok {
		spec, err := LookupAggregation(base, 1)
		if err != nil {
			return nil, err
		}
		agg := spec.Aggregator
		for j, v := range values {
			spec.Feed(agg, v[:1])
			out[j] = agg.Result()
		}
		return out, nil
	}
	if base, ok := movingBase[name]; ok {
		return moving(base, values)
	}
	switch name {
	case "rank", "rank_dense", "rank_unique", "rank_percentile":
		return rank(name, values), nil
	case "lag":
		offset := 1
		if len(values[0]) > 1 {
			offset = spfcast.ToInt(values[0][1])
		}
		for j := range values {
			if src := j - offset; src >= 0 && src < len(values) {
				out[j] = values[src][0]
			}
		}
		return out, nil
	case "first", "last":
		v := values[0][0]
		if name == "last" {
			v = values[len(values)-1][0]
		}
		for j := range out {
			out[j] = v
		}
		return out, nil
	}
	return nil, exc.ErrCompeng.New("window function " + strings.ToUpper(name) + " is not supported in memory")
}

// moving aggregates the rows between the current one and n rows before it,
// or -n rows after it when n is negative.
func moving(base string, values [][]interface{}) ([]interface{}, error) {
	out := make([]interface{}, len(values))
	n := spfcast.ToInt(values[0][1])
	for j := range values {
		lo, hi := j-n, j
		if n < 0 {
			lo, hi = j, j-n
		}
		if lo < 0 {
			lo = 0
		}
		if hi > len(values)-1 {
			hi = len(values) - 1
		}
		spec, err := LookupAggregation(base, 1)
		if err != nil {
			return nil, err
		}
		agg := spec.Aggregator
		for k := lo; k <= hi; k++ {
			spec.Feed(agg, values[k][:1])
		}
		out[j] = agg.Result()
	}
	return out, nil
}

// rank orders the partition by the first argument, descending unless the
// second argument is "asc".
func rank(name string, values [][]interface{}) []interface{} {
	desc := true
	if len(values[0]) > 1 && strings.EqualFold(cast.ToString(values[0][1]), "asc") {
		desc = false
	}
	pos := make([]int, len(values))
	for i := range pos {
		pos[i] = i
	}
	sort.SliceStable(pos, func(a, b int) bool {
		c := cast.Compare(values[pos[a]][0], values[pos[b]][0])
		if desc {
			c = -c
		}
		return c < 0
	})
	out := make([]interface{}, len(values))
	var current, dense int64
	for k, p := range pos {
		changed := k == 0 || cast.Compare(values[p][0], values[pos[k-1]][0]) != 0
		if changed {
			current = int64(k + 1)
			dense++
		}
		switch name {
		case "rank":
			out[p] = current
		case "rank_dense":
			out[p] = dense
		case "rank_unique":
			out[p] = int64(k + 1)
		default:
			if len(values) == 1 {
				out[p] = 0.0
			} else {
				out[p] = float64(current-1) / float64(len(values)-1)
			}
		}
	}
	return out
}

func compareTuples(a, b []interface{}, desc []bool) int {
	for i := range a {
		c := cast.Compare(a[i], b[i])
		if i < len(desc) && desc[i] {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func groupKey(values []interface{}) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = valueKey(v)
	}
	return strings.Join(parts, "\x1f")
}
