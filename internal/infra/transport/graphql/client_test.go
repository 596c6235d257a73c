package graphql

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Query_DecodesData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"data":{"value":42}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	var out struct {
		Value int `json:"value"`
	}
	err := c.Query(context.Background(), "query { value }", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, 42, out.Value)
}

func TestClient_Query_SurfacesGraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"field not found"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	err := c.Query(context.Background(), "query { bogus }", nil, nil)
	assert.ErrorContains(t, err, "field not found")
}

func TestClient_Query_NilOutSkipsDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"anything":true}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	err := c.Query(context.Background(), "query {}", map[string]any{"k": "v"}, nil)
	assert.NoError(t, err)
}
