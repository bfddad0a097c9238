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
Package functions 定义公式函数和运算符，以及它们在各个方言下的翻译。

每个操作由 OperationDefinition 描述：名称、类型（标量、聚合、窗口、查找、运算符）、
参数签名以及按方言划分的翻译变体。变体的方言越具体优先级越高，与注册顺序无关。

# 注册

Builder 收集定义和方言的 SQL 风格，Build 之后得到只读的 Registry：

	b := functions.NewBuilder()
	b.MustRegister(
		functions.Def("upper", functions.KindScalar,
			functions.Sigs(functions.Sig(functions.Returns(formula.TypeString), functions.String)),
			functions.V(dialect.SQLite|dialect.PostgreSQL, functions.Fn("UPPER")),
		),
	)
	reg, err := b.Build()

Build 之后再注册会返回 ErrRegistryFrozen。同一方言下两个同样具体的变体返回
ErrAmbiguousVariant。

# 翻译辅助

Fn、Tmpl、BinOp、Chain、Over、Running、Moving 等构造 TranslateFunc，
模板中 {0}、{1} 引用已翻译的参数。

# 内置定义

BaseDefinitions 和 OperatorDefinitions 给出通用的函数和运算符集合，
连接器在此基础上补充各自方言的变体。
*/
package functions
