package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type appendCall struct {
	path  string
	query map[string]string
	body  map[string]interface{}
}

func newFakeSheets(t *testing.T, status int) (*httptest.Server, *[]appendCall) {
	var calls []appendCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := appendCall{path: r.URL.Path, query: map[string]string{}}
		for k := range r.URL.Query() {
			call.query[k] = r.URL.Query().Get(k)
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call.body))
		calls = append(calls, call)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad range"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1","updates":{"updatedRows":1}}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestAppender(t *testing.T, srv *httptest.Server) *Appender {
	a, err := NewAppenderWithOptions(context.Background(), "sheet-1", "Sheet1!A:H",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return a
}

func TestAppendRow(t *testing.T) {
	srv, calls := newFakeSheets(t, http.StatusOK)
	a := newTestAppender(t, srv)

	row := []interface{}{"2024-03-05 09:30:00", "Aina", "U1 Office", "Pantry", "High", "=SUM(A1)", "", "42"}
	require.NoError(t, a.AppendRow(context.Background(), row))

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.True(t, strings.HasPrefix(call.path, "/v4/spreadsheets/sheet-1/values/"))
	assert.True(t, strings.HasSuffix(call.path, ":append"))
	assert.Equal(t, "RAW", call.query["valueInputOption"])
	assert.Equal(t, "INSERT_ROWS", call.query["insertDataOption"])

	values, ok := call.body["values"].([]interface{})
	require.True(t, ok)
	require.Len(t, values, 1)
	assert.Equal(t, row, values[0])
}

func TestAppendRowError(t *testing.T) {
	srv, _ := newFakeSheets(t, http.StatusBadRequest)
	a := newTestAppender(t, srv)

	err := a.AppendRow(context.Background(), []interface{}{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheet-1")
}

func TestCredentialsJSON(t *testing.T) {
	data, err := CredentialsJSON(`{"type":"service_account"}`, "ignored.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_account"}`, string(data))

	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"file"}`), 0o600))
	data, err = CredentialsJSON("", path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"file"}`, string(data))

	_, err = CredentialsJSON("", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = CredentialsJSON("", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
