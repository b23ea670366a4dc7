package ports

import (
	"context"

	"github.com/architeacher/nocoflo/internal/domain/model"
)

type (
	// Connection is an open handle to an external database. Table identity is
	// never stored on it; every spec names its own table.
	Connection interface {
		Close() error
	}

	// Datasource is the capability set every backend plugin implements.
	Datasource interface {
		Kind() model.DatasourceType

		// Connect opens and verifies a connection described by cfg.
		Connect(ctx context.Context, cfg model.DatasourceConfig) (Connection, error)

		// Read runs a select and returns a column-labelled result, with
		// labels present even when no row matched.
		Read(ctx context.Context, conn Connection, spec model.QuerySpec) (*model.Table, error)

		// Insert writes one row and returns the number of rows written.
		Insert(ctx context.Context, conn Connection, spec model.InsertSpec) (int64, error)

		// Update returns the number of rows changed. Zero is not an error.
		Update(ctx context.Context, conn Connection, spec model.UpdateSpec) (int64, error)

		// Delete returns the number of rows removed. Zero is not an error.
		Delete(ctx context.Context, conn Connection, spec model.DeleteSpec) (int64, error)

		// GetSchema introspects the columns of table.
		GetSchema(ctx context.Context, conn Connection, table string) (model.Schema, error)

		// TestConnection connects, pings and closes.
		TestConnection(ctx context.Context, cfg model.DatasourceConfig) error
	}

	// DatasourceRegistry resolves a plugin by its backend kind.
	DatasourceRegistry interface {
		Get(kind model.DatasourceType) (Datasource, error)
		Kinds() []model.DatasourceType
	}
)
