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
Package types holds the configuration of the dlquery pipeline.

A configuration is a YAML document decoded over DefaultConfig, so every
key is optional:

	dialect: MYSQL_8_0_12
	source:
	  driver: mysql
	  dsn: "user:pass@tcp(localhost:3306)/db"
	  connectionId: sales
	planning:
	  maxIterations: 100
	  nativeWindows: true
	execution:
	  parallelism: 4
	  chunkSize: 1000
	  queryTimeout: 30s
	  rowCountHardLimit: 100000
	cache:
	  enabled: true
	  size: 256
	logging:
	  level: INFO
	  format: json
	pivot:
	  language: en
	  naturalOrder: false

Unknown keys and invalid values fail with exc.ErrInvalidConfig.

# Presets

	DefaultConfig()     // production defaults
	DevelopmentConfig() // no cache, DEBUG logging, no query timeout
*/
package types
