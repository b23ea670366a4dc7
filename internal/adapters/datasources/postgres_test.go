package datasources

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

var pgConfig = model.DatasourceConfig{
	Type:     model.DatasourcePostgreSQL,
	Host:     "db",
	Port:     5432,
	Database: "app",
	User:     "app",
}

func runPostgresTest(
	t *testing.T,
	setupMock func(pgxmock.PgxPoolIface),
	testFn func(*testing.T, *PostgresPlugin, *PgConnection),
) {
	t.Helper()
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	setupMock(mock)

	plugin := NewPostgresPlugin(
		func(context.Context, model.DatasourceConfig) (PoolOps, error) { return mock, nil },
		NewScanyScanner(),
		logger.NewTestLogger(),
	)

	conn, err := plugin.Connect(context.Background(), pgConfig)
	require.NoError(t, err)

	testFn(t, plugin, conn.(*PgConnection))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPlugin_Read(t *testing.T) {
	runPostgresTest(t,
		func(mock pgxmock.PgxPoolIface) {
			mock.ExpectQuery(regexp.QuoteMeta(
				`SELECT * FROM people WHERE (age > $1) AND (city IN ($2,$3)) ORDER BY id ASC LIMIT 5`,
			)).
				WithArgs(25, "NYC", "LA").
				WillReturnRows(
					pgxmock.NewRows([]string{"id", "age", "city"}).
						AddRow(int32(2), int32(30), "LA"),
				)
		},
		func(t *testing.T, plugin *PostgresPlugin, conn *PgConnection) {
			older, err := model.Gt("age", 25)
			require.NoError(t, err)

			cities, err := model.In("city", "NYC", "LA")
			require.NoError(t, err)

			filter, err := model.And(older, cities)
			require.NoError(t, err)

			spec, err := model.NewQuery("people").Where(filter).OrderBy("id", true).Limit(5).Build()
			require.NoError(t, err)

			table, err := plugin.Read(context.Background(), conn, spec)
			require.NoError(t, err)

			require.Equal(t, []string{"id", "age", "city"}, table.Columns)
			require.Equal(t, []model.Row{{"id": int64(2), "age": int64(30), "city": "LA"}}, table.Rows)
		},
	)
}

func TestPostgresPlugin_ReadEmptyKeepsColumns(t *testing.T) {
	runPostgresTest(t,
		func(mock pgxmock.PgxPoolIface) {
			mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM people`)).
				WillReturnRows(pgxmock.NewRows([]string{"id", "age"}))
		},
		func(t *testing.T, plugin *PostgresPlugin, conn *PgConnection) {
			spec, err := model.NewQuery("people").Build()
			require.NoError(t, err)

			table, err := plugin.Read(context.Background(), conn, spec)
			require.NoError(t, err)
			require.Equal(t, []string{"id", "age"}, table.Columns)
			require.Empty(t, table.Rows)
		},
	)
}

func TestPostgresPlugin_Mutations(t *testing.T) {
	cases := []struct {
		name      string
		setupMock func(pgxmock.PgxPoolIface)
		run       func(*PostgresPlugin, *PgConnection) (int64, error)
		expected  int64
		expectErr error
	}{
		{
			name: "insert",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO people (age,city) VALUES ($1,$2)`)).
					WithArgs(20, "Oslo").
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
			run: func(p *PostgresPlugin, c *PgConnection) (int64, error) {
				spec, _ := model.NewInsertSpec("people", map[string]any{"city": "Oslo", "age": 20})

				return p.Insert(context.Background(), c, spec)
			},
			expected: 1,
		},
		{
			name: "update reports affected rows",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE people SET city = $1 WHERE age < $2`)).
					WithArgs("Young", 25).
					WillReturnResult(pgxmock.NewResult("UPDATE", 2))
			},
			run: func(p *PostgresPlugin, c *PgConnection) (int64, error) {
				filter, _ := model.Lt("age", 25)
				spec, _ := model.NewUpdateSpec("people", filter, map[string]any{"city": "Young"})

				return p.Update(context.Background(), c, spec)
			},
			expected: 2,
		},
		{
			name: "delete of nothing is not an error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM people WHERE id = $1`)).
					WithArgs(99).
					WillReturnResult(pgxmock.NewResult("DELETE", 0))
			},
			run: func(p *PostgresPlugin, c *PgConnection) (int64, error) {
				filter, _ := model.Eq("id", 99)
				spec, _ := model.NewDeleteSpec("people", filter)

				return p.Delete(context.Background(), c, spec)
			},
			expected: 0,
		},
		{
			name: "driver errors are execution errors",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM people WHERE id = $1`)).
					WithArgs(1).
					WillReturnError(errors.New("permission denied for table people"))
			},
			run: func(p *PostgresPlugin, c *PgConnection) (int64, error) {
				filter, _ := model.Eq("id", 1)
				spec, _ := model.NewDeleteSpec("people", filter)

				return p.Delete(context.Background(), c, spec)
			},
			expectErr: model.ErrExecution,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runPostgresTest(t, tc.setupMock, func(t *testing.T, plugin *PostgresPlugin, conn *PgConnection) {
				affected, err := tc.run(plugin, conn)
				if tc.expectErr != nil {
					require.ErrorIs(t, err, tc.expectErr)

					return
				}

				require.NoError(t, err)
				require.Equal(t, tc.expected, affected)
			})
		})
	}
}

func TestPostgresPlugin_GetSchema(t *testing.T) {
	runPostgresTest(t,
		func(mock pgxmock.PgxPoolIface) {
			dflt := "nextval('people_id_seq'::regclass)"

			mock.ExpectQuery(regexp.QuoteMeta(postgresSchemaQuery)).
				WithArgs("people").
				WillReturnRows(
					pgxmock.NewRows([]string{"name", "type", "notnull", "dflt", "pk"}).
						AddRow("id", "integer", true, &dflt, true).
						AddRow("city", "text", false, (*string)(nil), false),
				)
		},
		func(t *testing.T, plugin *PostgresPlugin, conn *PgConnection) {
			schema, err := plugin.GetSchema(context.Background(), conn, "people")
			require.NoError(t, err)

			require.Equal(t, []string{"id", "city"}, schema.Names())
			require.Equal(t, "id", schema.PrimaryKey())
			require.True(t, schema[0].NotNull)
			require.NotNil(t, schema[0].Default)
			require.Nil(t, schema[1].Default)
		},
	)
}

func TestPostgresPlugin_GetSchemaUnknownTable(t *testing.T) {
	runPostgresTest(t,
		func(mock pgxmock.PgxPoolIface) {
			mock.ExpectQuery(regexp.QuoteMeta(postgresSchemaQuery)).
				WithArgs("ghost").
				WillReturnRows(pgxmock.NewRows([]string{"name", "type", "notnull", "dflt", "pk"}))
		},
		func(t *testing.T, plugin *PostgresPlugin, conn *PgConnection) {
			_, err := plugin.GetSchema(context.Background(), conn, "ghost")
			require.ErrorIs(t, err, model.ErrTableNotFound)
		},
	)
}

func TestPostgresPlugin_Connect(t *testing.T) {
	t.Parallel()

	failing := NewPostgresPlugin(
		func(context.Context, model.DatasourceConfig) (PoolOps, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
		NewScanyScanner(),
		logger.NewTestLogger(),
	)

	_, err := failing.Connect(context.Background(), pgConfig)
	require.ErrorIs(t, err, model.ErrConnection)

	_, err = failing.Connect(context.Background(), model.DatasourceConfig{Host: "db"})
	require.ErrorIs(t, err, model.ErrConnection)

	err = failing.TestConnection(context.Background(), pgConfig)
	require.ErrorIs(t, err, model.ErrConnection)
}

func TestPostgresPlugin_TestConnection(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	mock.ExpectPing()
	mock.ExpectClose()

	plugin := NewPostgresPlugin(
		func(context.Context, model.DatasourceConfig) (PoolOps, error) { return mock, nil },
		NewScanyScanner(),
		logger.NewTestLogger(),
	)

	require.NoError(t, plugin.TestConnection(context.Background(), pgConfig))
	require.NoError(t, mock.ExpectationsWereMet())
}
