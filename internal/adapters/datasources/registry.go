package datasources

import (
	"fmt"
	"sort"

	"github.com/architeacher/nocoflo/internal/config"
	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/logger"
)

// Registry is a fixed set of plugins keyed by backend kind. It is built once
// at start-up and never mutated.
type Registry struct {
	plugins map[model.DatasourceType]ports.Datasource
}

var _ ports.DatasourceRegistry = (*Registry)(nil)

func NewRegistry(plugins ...ports.Datasource) *Registry {
	r := &Registry{plugins: make(map[model.DatasourceType]ports.Datasource, len(plugins))}

	for _, plugin := range plugins {
		r.plugins[plugin.Kind()] = plugin
	}

	return r
}

// NewDefaultRegistry registers the SQLite, PostgreSQL and MySQL plugins.
func NewDefaultRegistry(poolCfg config.Pool, log logger.Logger) *Registry {
	scanner := NewScanyScanner()

	return NewRegistry(
		NewSQLitePlugin(scanner, log),
		NewPostgresPlugin(NewPgxPoolFactory(poolCfg), scanner, log),
		NewMySQLPlugin(poolCfg, scanner, log),
	)
}

func (r *Registry) Get(kind model.DatasourceType) (ports.Datasource, error) {
	plugin, ok := r.plugins[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownDatasource, kind)
	}

	return plugin, nil
}

func (r *Registry) Kinds() []model.DatasourceType {
	kinds := make([]model.DatasourceType, 0, len(r.plugins))
	for kind := range r.plugins {
		kinds = append(kinds, kind)
	}

	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	return kinds
}
