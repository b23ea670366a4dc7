package postgres

import (
	"net/url"
	"testing"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func TestConnString(t *testing.T) {
	t.Run("defaults sslmode to disable", func(t *testing.T) {
		got := ConnString(model.DatasourceConfig{
			Host:     "db",
			Port:     5433,
			Database: "app",
			User:     "alice",
			Password: "p@ss word",
		})

		u, err := url.Parse(got)
		require.NoError(t, err)
		require.Equal(t, "db:5433", u.Host)
		require.Equal(t, "/app", u.Path)
		require.Equal(t, "alice", u.User.Username())

		password, _ := u.User.Password()
		require.Equal(t, "p@ss word", password)
		require.Equal(t, "disable", u.Query().Get("sslmode"))
	})

	t.Run("keeps extra params and sslmode", func(t *testing.T) {
		got := ConnString(model.DatasourceConfig{
			Host:     "db",
			Port:     5432,
			Database: "app",
			SSLMode:  "require",
			Params:   url.Values{"application_name": {"nocoflo"}},
		})

		u, err := url.Parse(got)
		require.NoError(t, err)
		require.Equal(t, "require", u.Query().Get("sslmode"))
		require.Equal(t, "nocoflo", u.Query().Get("application_name"))
	})
}
