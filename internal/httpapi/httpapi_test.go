package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rollupfed/indexer/internal/store"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	st, err := store.Open("", true)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, nil)
}

func TestListTables(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/tables", nil)
	rec := httptest.NewRecorder()
	api.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct{ Tables []string `json:"tables"` }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body.Tables, "bridge_events")
}

func TestQuery_RejectsMutatingKeywords(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/query?q=DELETE+FROM+bridge_events", nil)
	rec := httptest.NewRecorder()
	api.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuery_AllowsSelect(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/query?q=SELECT+1", nil)
	rec := httptest.NewRecorder()
	api.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSync_UnknownRollupReturnsErrorBodyWith200(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/sync/999", nil)
	rec := httptest.NewRecorder()
	api.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "§5: every route but /query reports errors with HTTP 200")
	var body struct{ Error string `json:"error"` }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Error)
}

func TestWrappedBalance_ZeroWhenNoTransfers(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/wrapped_balance?rollup_id=1&token_address=0xabc", nil)
	rec := httptest.NewRecorder()
	api.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct{ Balance string `json:"balance"` }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "0", body.Balance)
}
