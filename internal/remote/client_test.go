package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 2*time.Second, fixedNormalizer(false), zap.NewNop())
}

func TestFetchAcceptsResponseShapes(t *testing.T) {
	bodies := map[string]string{
		"bare array":  `[{"id": 1}, {"id": 2}]`,
		"data":        `{"data": [{"id": 1}, {"id": 2}], "meta": {"page": 1}}`,
		"orders":      `{"orders": [{"id": 1}, {"id": 2}]}`,
		"data.orders": `{"data": {"orders": [{"id": 1}, {"id": 2}]}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			res := c.Fetch(context.Background(), "tok", Filters{})
			require.True(t, res.OK(), res.Error)
			require.Len(t, res.Orders, 2)
			assert.Equal(t, int64(1), res.Orders[0].ID)
			assert.Equal(t, int64(2), res.Orders[1].ID)
		})
	}
}

func TestFetchSendsCredentialAndFilters(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(`[]`))
	})

	res := c.Fetch(context.Background(), "secret", Filters{Page: 2, PerPage: 50, StartDate: "2026-05-01"})
	require.True(t, res.OK())
	assert.Empty(t, res.Orders)

	require.NotNil(t, got)
	assert.Equal(t, "/orders", got.URL.Path)
	assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
	assert.Equal(t, "2", got.URL.Query().Get("page"))
	assert.Equal(t, "50", got.URL.Query().Get("per_page"))
	assert.Equal(t, "2026-05-01", got.URL.Query().Get("start_date"))
	assert.Empty(t, got.URL.Query().Get("end_date"))
}

func TestFetchSkipsUnusablePayloads(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id": 1}, {"note": "no id"}, "garbage", {"id": 3}]`))
	})
	res := c.Fetch(context.Background(), "tok", Filters{})
	require.True(t, res.OK())
	assert.Len(t, res.Orders, 2)
	assert.Equal(t, 1, res.Skipped)
}

func TestFetchReportsFailuresAsResult(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   string
	}{
		"unauthorized": {http.StatusUnauthorized, `{}`, "invalid API credential (HTTP 401)"},
		"server error": {http.StatusBadGateway, `oops`, "connection failed: HTTP 502"},
		"bad shape":    {http.StatusOK, `{"result": true}`, "response has no order list"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			res := c.Fetch(context.Background(), "tok", Filters{})
			assert.False(t, res.OK())
			assert.Equal(t, tc.want, res.Error)
			assert.NotNil(t, res.Orders)
			assert.Empty(t, res.Orders)
		})
	}
}

func TestFetchTransportFailure(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second, nil, zap.NewNop())
	res := c.Fetch(context.Background(), "tok", Filters{})
	assert.False(t, res.OK())
	assert.Contains(t, res.Error, "request orders")
}

func TestTestConnection(t *testing.T) {
	var perPage string
	ok := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		perPage = r.URL.Query().Get("per_page")
		_, _ = w.Write([]byte(`{"data": []}`))
	})
	require.NoError(t, ok.TestConnection(context.Background(), "tok"))
	assert.Equal(t, "1", perPage)

	unauthorized := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	assert.ErrorIs(t, unauthorized.TestConnection(context.Background(), "bad"), ErrInvalidCredential)

	forbidden := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	err := forbidden.TestConnection(context.Background(), "tok")
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, http.StatusForbidden, connErr.StatusCode)
}
