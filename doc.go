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

/*
Package dlquery 把 DataLens 风格的图表请求编译、执行为 SQL。

一次请求由数据集（字段与公式）和块图例（行、度量、过滤、排序等图例项）组成。
Engine 按以下顺序处理：

 1. 预分页：单块请求把全局 LIMIT/OFFSET 下推到块
 2. 编译：解析公式，展开字段引用，校验聚合与窗口，得到每块一个顶层查询
 3. 拆分：把源库不能计算的部分（窗口函数、LOD 聚合）拆成 compeng 内存查询
 4. 翻译：按源库方言生成 SQL，compeng 查询保留公式树
 5. 执行：源查询并发运行，compeng 查询按依赖顺序在内存计算
 6. 合并：按块的放置方式把各块结果合并为一个数据流
 7. 后分页与透视

# 入门示例

	ds, _ := dataset.New("sales", "sales",
		&dataset.Field{ID: "city", Title: "City", TypeName: "string"},
		&dataset.Field{ID: "amount", Title: "Amount", TypeName: "integer", Aggregation: dataset.AggSum},
	)
	bl := &legend.BlockLegend{Blocks: []*legend.BlockSpec{{
		BlockID:   0,
		Placement: &legend.RootPlacement{},
		Legend: legend.New(
			&legend.Item{LegendItemID: 0, ID: "city", Role: legend.RoleRow},
			&legend.Item{LegendItemID: 1, ID: "amount", Role: legend.RoleMeasure},
		),
	}}}

	engine, err := dlquery.New(dlquery.WithConfig(config))
	if err != nil {
		panic(err)
	}
	defer engine.Close()
	resp, err := engine.Execute(ctx, &dlquery.Request{Dataset: ds, Legend: bl})

# 配置

配置见 types 包，可以从 YAML 文件加载。选项在配置之后生效：

	engine, err := dlquery.New(
		dlquery.WithConfig(config),
		dlquery.WithMetrics(prometheus.DefaultRegisterer),
		dlquery.WithDiscardLog(),
	)

# 错误

所有错误都带有 exc 包中的错误码，例如 ERR.DS_API.FORMULA.PARSE、
ERR.DS_API.ROW_COUNT_LIMIT。用 exc.Code(err) 读取。
任一查询失败时整个请求失败，不返回部分结果。
*/
package dlquery
