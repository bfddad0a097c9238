// Package all bundles every built-in connector.
package all

import (
	"github.com/rulego/dlquery/connectors"
	"github.com/rulego/dlquery/connectors/clickhouse"
	"github.com/rulego/dlquery/connectors/compeng"
	"github.com/rulego/dlquery/connectors/mysql"
	"github.com/rulego/dlquery/connectors/postgresql"
	"github.com/rulego/dlquery/connectors/sqlite"
	"github.com/rulego/dlquery/functions"
)

// Connectors returns fresh records of the built-in connectors.
func Connectors() []*connectors.Connector {
	return []*connectors.Connector{
		clickhouse.Connector(),
		postgresql.Connector(),
		mysql.Connector(),
		sqlite.Connector(),
		compeng.Connector(),
	}
}

// Set indexes the built-in connectors.
func Set() (*connectors.Set, error) {
	return connectors.NewSet(Connectors()...)
}

// Registry builds a registry with every built-in connector.
func Registry() (*functions.Registry, error) {
	return connectors.BuildRegistry(Connectors()...)
}
