package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	inboundhttp "github.com/architeacher/nocoflo/internal/adapters/inbound/http"
	"github.com/architeacher/nocoflo/internal/config"
	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/internal/usecases"
	"github.com/architeacher/nocoflo/pkg/decorator"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/architeacher/nocoflo/pkg/metrics/noop"
	"github.com/stretchr/testify/suite"
)

type (
	fakeUsers struct {
		ports.UsersService
	}

	fakeCatalog struct {
		ports.CatalogService
	}

	fakeAccess struct {
		ports.AccessService

		mu      sync.Mutex
		granted model.Level
	}

	fakeAudit struct {
		ports.AuditService

		mu   sync.Mutex
		page model.Page
	}

	fakeRows struct {
		ports.RowsService

		mu     sync.Mutex
		query  model.QuerySpec
		filter model.Filter
		rowPK  string
		value  any
		err    error
	}
)

func (f *fakeUsers) ResolveActor(_ context.Context, userID int64) (model.Actor, error) {
	switch userID {
	case 1:
		return model.Actor{UserID: 1, Role: model.RoleAdmin}, nil
	case 2:
		return model.Actor{UserID: 2, Role: model.RoleUser}, nil
	}

	return model.Actor{}, model.ErrUserNotFound
}

func (f *fakeUsers) Authenticate(_ context.Context, email, password string) (model.User, error) {
	if email == "ann@example.com" && password == "secret1" {
		return model.User{ID: 2, Name: "Ann", Email: email, PasswordHash: "hash", Role: model.RoleUser}, nil
	}

	return model.User{}, model.ErrInvalidCredentials
}

func (f *fakeCatalog) ListAccessibleTables(_ context.Context, actor model.Actor) ([]model.TableRef, error) {
	if actor.UserID != 2 {
		return []model.TableRef{}, nil
	}

	return []model.TableRef{{TableMeta: model.TableMeta{ID: 5, TableName: "people", DBID: 1}, DBName: "crm", ConStr: "sqlite:///tmp/crm.db"}}, nil
}

func (f *fakeAccess) GrantPermission(_ context.Context, _ model.Actor, _, _ int64, level model.Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.granted = level

	return nil
}

func (f *fakeAudit) GetChangelog(_ context.Context, _ model.Actor, _ int64, page model.Page) ([]model.ChangelogView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.page = page

	return []model.ChangelogView{}, nil
}

func (f *fakeRows) ReadRows(_ context.Context, _ model.Actor, tableID int64, query model.QuerySpec) (*model.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.query = query

	switch tableID {
	case 404:
		return nil, model.ErrTableNotFound
	case 422:
		return nil, model.ErrExecution
	case 500:
		return nil, errors.New("disk on fire")
	}

	table := model.NewTable([]string{"id", "name"})
	table.Rows = append(table.Rows, model.Row{"id": int64(1), "name": "Ann"})

	return table, nil
}

func (f *fakeRows) UpdateRows(_ context.Context, _ model.Actor, _ int64, filter model.Filter, _ map[string]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.filter = filter

	return 2, f.err
}

func (f *fakeRows) EditCell(_ context.Context, _ model.Actor, _ int64, rowPK, _ string, value any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rowPK = rowPK
	f.value = value

	return 1, nil
}

func (f *fakeRows) LockRow(_ context.Context, actor model.Actor, _ int64, _ string) error {
	if actor.UserID != 2 {
		return model.ErrLockConflict
	}

	return nil
}

func (f *fakeRows) UnlockRow(context.Context, model.Actor, int64, string) error {
	return nil
}

type RouterTestSuite struct {
	suite.Suite

	rows   *fakeRows
	access *fakeAccess
	audit  *fakeAudit
	router http.Handler
}

func TestRouterTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(RouterTestSuite))
}

func (s *RouterTestSuite) SetupTest() {
	s.rows = &fakeRows{}
	s.access = &fakeAccess{}
	s.audit = &fakeAudit{}

	log := logger.NewTestLogger()

	app := usecases.NewApplication(
		usecases.Services{
			Access:  s.access,
			Audit:   s.audit,
			Catalog: &fakeCatalog{},
			Rows:    s.rows,
			Users:   &fakeUsers{},
		},
		nil,
		decorator.CacheConfig{},
		nil,
		log,
		nil,
		noop.NewMetricsClient(),
	)

	cfg := &config.ServiceConfig{}
	cfg.App.APIVersion = "v1"
	cfg.HTTPServer.WriteTimeout = 5 * time.Second
	cfg.Logging.AccessLog.Enabled = true
	cfg.Compression.Enabled = true
	cfg.Compression.Level = 5

	s.router = inboundhttp.NewRouter(inboundhttp.RouterConfig{
		App:           app,
		Logger:        log,
		MetricsClient: noop.NewMetricsClient(),
		Config:        cfg,
	})
}

func (s *RouterTestSuite) do(method, path, userID, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	return rec
}

func (s *RouterTestSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))

	return body
}

func (s *RouterTestSuite) TestStatusMapping() {
	cases := []struct {
		name           string
		method         string
		path           string
		userID         string
		body           string
		expectedStatus int
		expectedCode   string
	}{
		{name: "no identity", method: http.MethodGet, path: "/v1/tables", expectedStatus: http.StatusUnauthorized, expectedCode: "UNAUTHORIZED"},
		{name: "unknown identity", method: http.MethodGet, path: "/v1/tables", userID: "77", expectedStatus: http.StatusUnauthorized, expectedCode: "UNAUTHORIZED"},
		{name: "list tables", method: http.MethodGet, path: "/v1/tables", userID: "2", expectedStatus: http.StatusOK},
		{name: "bad table id", method: http.MethodPost, path: "/v1/tables/abc/rows/query", userID: "2", expectedStatus: http.StatusBadRequest, expectedCode: "INVALID_ID"},
		{name: "malformed body", method: http.MethodPatch, path: "/v1/tables/5/rows", userID: "2", body: "{", expectedStatus: http.StatusBadRequest, expectedCode: "INVALID_JSON"},
		{name: "unknown operator", method: http.MethodPatch, path: "/v1/tables/5/rows", userID: "2", body: `{"filter":{"field":"age","op":"~","value":1},"values":{"city":"SEA"}}`, expectedStatus: http.StatusBadRequest, expectedCode: "VALIDATION_FAILED"},
		{name: "table not found", method: http.MethodPost, path: "/v1/tables/404/rows/query", userID: "2", expectedStatus: http.StatusNotFound, expectedCode: "NOT_FOUND"},
		{name: "datasource rejected", method: http.MethodPost, path: "/v1/tables/422/rows/query", userID: "2", expectedStatus: http.StatusUnprocessableEntity, expectedCode: "DATASOURCE_REJECTED"},
		{name: "unexpected failure", method: http.MethodPost, path: "/v1/tables/500/rows/query", userID: "2", expectedStatus: http.StatusInternalServerError, expectedCode: "INTERNAL_ERROR"},
		{name: "lock taken", method: http.MethodPut, path: "/v1/tables/5/rows/7/lock", userID: "1", expectedStatus: http.StatusConflict, expectedCode: "ROW_LOCKED"},
		{name: "lock acquired", method: http.MethodPut, path: "/v1/tables/5/rows/7/lock", userID: "2", expectedStatus: http.StatusNoContent},
		{name: "lock released", method: http.MethodDelete, path: "/v1/tables/5/rows/7/lock", userID: "2", expectedStatus: http.StatusNoContent},
		{name: "bad level", method: http.MethodPut, path: "/v1/tables/5/permissions/3", userID: "1", body: `{"level":"god"}`, expectedStatus: http.StatusBadRequest, expectedCode: "VALIDATION_FAILED"},
		{name: "bad login", method: http.MethodPost, path: "/v1/login", body: `{"email":"ann@example.com","password":"nope"}`, expectedStatus: http.StatusUnauthorized, expectedCode: "UNAUTHORIZED"},
		{name: "health", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			rec := s.do(tc.method, tc.path, tc.userID, tc.body)

			s.Require().Equal(tc.expectedStatus, rec.Code, rec.Body.String())

			if tc.expectedCode != "" {
				s.Require().Equal(tc.expectedCode, s.decode(rec)["code"])
			}
		})
	}
}

func (s *RouterTestSuite) TestInternalErrorsAreNotLeaked() {
	rec := s.do(http.MethodPost, "/v1/tables/500/rows/query", "2", "")

	s.Require().Equal(http.StatusInternalServerError, rec.Code)
	s.Require().NotContains(rec.Body.String(), "disk on fire")
}

func (s *RouterTestSuite) TestListTablesEnvelope() {
	rec := s.do(http.MethodGet, "/v1/tables", "2", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	body := s.decode(rec)

	meta := body["meta"].(map[string]any)
	s.Require().NotEmpty(meta["requestId"])
	s.Require().Equal("v1", meta["apiVersion"])

	tables := body["data"].([]any)
	s.Require().Len(tables, 1)
	s.Require().Equal("people", tables[0].(map[string]any)["table_name"])
	s.Require().NotContains(rec.Body.String(), "sqlite:///", "connection strings stay server side")
}

func (s *RouterTestSuite) TestConditionalGet() {
	first := s.do(http.MethodGet, "/v1/tables", "2", "")
	s.Require().Equal(http.StatusOK, first.Code)

	etag := first.Header().Get("ETag")
	s.Require().NotEmpty(etag)

	req := httptest.NewRequest(http.MethodGet, "/v1/tables", nil)
	req.Header.Set("X-User-Id", "2")
	req.Header.Set("If-None-Match", etag)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Require().Equal(http.StatusNotModified, rec.Code)
	s.Require().Empty(rec.Body.Bytes())
	s.Require().Equal(etag, rec.Header().Get("ETag"))

	other := s.do(http.MethodGet, "/v1/tables", "1", "")
	s.Require().Equal(http.StatusOK, other.Code)
	s.Require().NotEqual(etag, other.Header().Get("ETag"), "different payloads, different validators")
}

func (s *RouterTestSuite) TestBrotliEncoding() {
	req := httptest.NewRequest(http.MethodGet, "/v1/tables", nil)
	req.Header.Set("X-User-Id", "2")
	req.Header.Set("Accept-Encoding", "br")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().Equal("br", rec.Header().Get("Content-Encoding"))

	plain, err := io.ReadAll(brotli.NewReader(rec.Body))
	s.Require().NoError(err)

	var body map[string]any
	s.Require().NoError(json.Unmarshal(plain, &body))
	s.Require().Len(body["data"].([]any), 1)
}

func (s *RouterTestSuite) TestQueryRowsDecodesSpec() {
	rec := s.do(http.MethodPost, "/v1/tables/5/rows/query", "2", `{
		"filter": {"mode": "and", "filters": [
			{"field": "age", "op": ">", "value": 25},
			{"field": "city", "op": "in", "value": ["NYC", "LA"]}
		]},
		"limit": 10,
		"offset": 5,
		"order_by": [{"field": "age", "ascending": false}, {"field": "id"}]
	}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	s.rows.mu.Lock()
	query := s.rows.query
	s.rows.mu.Unlock()

	s.Require().NotNil(query.Limit)
	s.Require().Equal(10, *query.Limit)
	s.Require().Equal(5, query.Offset)
	s.Require().Equal([]model.OrderBy{{Field: "age", Ascending: false}, {Field: "id", Ascending: true}}, query.OrderBy)

	s.Require().True(query.Filter.IsComposite())
	s.Require().Equal(model.ModeAnd, query.Filter.Mode())

	children := query.Filter.Children()
	s.Require().Len(children, 2)
	s.Require().Equal(int64(25), children[0].Value(), "integers keep their integer type")
	s.Require().Equal([]any{"NYC", "LA"}, children[1].Value())
}

func (s *RouterTestSuite) TestQueryRowsWithoutBody() {
	rec := s.do(http.MethodPost, "/v1/tables/5/rows/query", "2", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	s.rows.mu.Lock()
	defer s.rows.mu.Unlock()

	s.Require().Nil(s.rows.query.Filter)
	s.Require().Nil(s.rows.query.Limit)
}

func (s *RouterTestSuite) TestUpdateRowsLockConflict() {
	s.rows.err = model.ErrLockConflict

	rec := s.do(http.MethodPatch, "/v1/tables/5/rows", "2", `{"filter":{"field":"age","op":"<","value":25},"values":{"city":"SEA"}}`)

	s.Require().Equal(http.StatusConflict, rec.Code)
	s.Require().Equal("ROW_LOCKED", s.decode(rec)["code"])
}

func (s *RouterTestSuite) TestEditCellUnescapesPrimaryKey() {
	rec := s.do(http.MethodPut, "/v1/tables/5/rows/a%2Fb/cells/name", "2", `{"value":null}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	s.rows.mu.Lock()
	defer s.rows.mu.Unlock()

	s.Require().Equal("a/b", s.rows.rowPK)
	s.Require().Nil(s.rows.value)
}

func (s *RouterTestSuite) TestGrantPermission() {
	rec := s.do(http.MethodPut, "/v1/tables/5/permissions/3", "1", `{"level":"Write"}`)
	s.Require().Equal(http.StatusNoContent, rec.Code)

	s.access.mu.Lock()
	defer s.access.mu.Unlock()

	s.Require().Equal(model.LevelWrite, s.access.granted)
}

func (s *RouterTestSuite) TestChangelogPaging() {
	rec := s.do(http.MethodGet, "/v1/tables/5/changelog?limit=5000&offset=-3", "2", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	s.audit.mu.Lock()
	defer s.audit.mu.Unlock()

	s.Require().Equal(model.Page{Limit: model.MaxPageLimit, Offset: 0}, s.audit.page)
}

func (s *RouterTestSuite) TestLoginHidesPasswordHash() {
	rec := s.do(http.MethodPost, "/v1/login", "", `{"email":"ann@example.com","password":"secret1"}`)
	s.Require().Equal(http.StatusOK, rec.Code)

	data := s.decode(rec)["data"].(map[string]any)
	s.Require().Equal(float64(2), data["id"])
	s.Require().NotContains(rec.Body.String(), "hash")
}
