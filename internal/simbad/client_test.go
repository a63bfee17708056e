package simbad

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("", 0)
	assert.Equal(t, DefaultBaseURL, c.BaseURL)
	assert.Equal(t, 60*time.Second, c.httpClient.Timeout)
}

func TestQueryIdentifier_Found(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "doQuery", r.Form.Get("request"))
		assert.Equal(t, "adql", r.Form.Get("lang"))
		assert.Equal(t, "json", r.Form.Get("format"))
		gotQuery = r.Form.Get("query")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"metadata": [{"name": "main_id"}, {"name": "otype"}, {"name": "otype_txt"}],
			"data": [["M  31", "G", "Galaxy"]]
		}`))
	}))
	defer server.Close()

	obj, ok, err := NewClient(server.URL, time.Second).QueryIdentifier(context.Background(), "M 31")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Object{MainID: "M  31", OType: "G", OTypeText: "Galaxy"}, obj)
	assert.Contains(t, gotQuery, "WHERE i.id = 'M 31'")
	assert.Contains(t, gotQuery, "TOP 1")
}

func TestQueryIdentifier_FieldsLayoutAndEscaping(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.FormValue("query")
		w.Write([]byte(`{"fields": [{"name": "otype"}, {"name": "main_id"}], "data": [["PN", "NGC  6543"]]}`))
	}))
	defer server.Close()

	obj, ok, err := NewClient(server.URL, time.Second).QueryIdentifier(context.Background(), "Cat's Eye")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "PN", obj.OType)
	assert.Equal(t, "NGC  6543", obj.MainID)
	assert.Empty(t, obj.OTypeText)
	assert.Contains(t, gotQuery, "'Cat''s Eye'")
}

func TestQueryIdentifier_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"metadata": [{"name": "main_id"}], "data": []}`))
	}))
	defer server.Close()

	_, ok, err := NewClient(server.URL, time.Second).QueryIdentifier(context.Background(), "Nothing 1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueryIdentifier_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			},
			wantErr: "status 503",
		},
		{
			name: "html body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>maintenance</html>"))
			},
			wantErr: "failed to decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, _, err := NewClient(server.URL, time.Second).QueryIdentifier(context.Background(), "M 1")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestQueryIdentifier_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, _, err := NewClient(url, time.Second).QueryIdentifier(context.Background(), "NGC 7000")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "failed to query SIMBAD"))
}

func TestConeSearch(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.FormValue("query")
		w.Write([]byte(`{
			"metadata": [{"name": "main_id"}, {"name": "otype"}, {"name": "ra"}, {"name": "dec"}, {"name": "V"}],
			"data": [
				["M  32", "G", 10.6742, 40.8652, 8.08],
				["NGC   206", "As*", 10.1, 40.7, null],
				["broken", "G", null, 40.0, 12.0]
			]
		}`))
	}))
	defer server.Close()

	objs, err := NewClient(server.URL, time.Second).ConeSearch(context.Background(), 10.6847, 41.2690, 1.5, 50)
	require.NoError(t, err)
	require.Len(t, objs, 2)

	assert.Equal(t, "M 32", objs[0].MainID)
	assert.InDelta(t, 8.08, objs[0].Magnitude, 1e-9)
	assert.Equal(t, "NGC 206", objs[1].MainID)
	assert.True(t, math.IsNaN(objs[1].Magnitude))

	assert.Contains(t, gotQuery, "TOP 50")
	assert.Contains(t, gotQuery, "CIRCLE('ICRS', 10.684700, 41.269000, 1.500000)")
}
