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
Package formula provides the parser and the immutable expression tree of the
DataLens formula language.

Formula text is tokenized and parsed into a tree of Node values. Nodes never
change after construction: every rewrite produces a new tree that shares the
unchanged subtrees with the original one.

# Core Features

• Recursive descent parser - Operator precedence, IF and CASE blocks, function calls with trailing clauses
• Window function syntax - TOTAL, WITHIN and AMONG groupings, ORDER BY and BEFORE FILTER BY
• Level of detail - FIXED, INCLUDE and EXCLUDE dimension specifiers on aggregations
• Positioned errors - ParseError with line, column, token and expected tokens
• Canonical rendering - Render prints a tree back as normalized formula text
• Explicit stack traversal - Walk and Transform never recurse on the Go call stack
• Structural identity - Extract, Hash, Equal and NodeSet ignore source positions

# Supported Syntax

	[Field Name]                          - field reference, \] and \\ escape
	'text' "text"                         - string literals
	1  2.5  TRUE  NULL  #2020-01-01#       - literals
	a OR b, a AND b, NOT a                - logical operators
	a = b, a != b, a <> b, a < b ...       - comparison
	a IS [NOT] NULL|TRUE|FALSE             - postfix tests
	a [NOT] IN (x, y), a [NOT] LIKE 'p%'   - membership and patterns
	a [NOT] BETWEEN x AND y                - ranges
	a + b, a - b, a * b, a / b, a % b, a ^ b
	IF c THEN x ELSEIF d THEN y ELSE z END
	CASE v WHEN 1 THEN 'a' ELSE 'b' END

Function calls accept clauses after the arguments:

	SUM([Sales] FIXED [City])
	AVG(SUM([Sales] INCLUDE [Date]))
	RSUM(SUM([Sales]) WITHIN [Region] ORDER BY [Date] DESC)
	SUM(SUM([Sales]) TOTAL BEFORE FILTER BY [Date])
	AGO(SUM([Sales]), [Date] IGNORE DIMENSIONS [Region])

A call is a window call when the function is window only (RSUM, MAVG, RANK,
LAG, FIRST...) or when a TOTAL, WITHIN or AMONG clause is present.

# Usage

	node, err := formula.Parse("SUM([Sales]) / COUNTD([City])")
	if err != nil {
		var perr *formula.ParseError
		if errors.As(err, &perr) {
			fmt.Println(perr.Line, perr.Column, perr.Code())
		}
	}
	fmt.Println(formula.Render(node))
*/
package formula
