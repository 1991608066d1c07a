package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscovery_ListsOllamaTagsSorted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/tags", r.URL.Path)
		writeTags(w, "qwen3:8b", "llama3.2:3b", " ", "codellama:7b")
	}))
	defer srv.Close()

	models := NewDiscovery(nil).ListModels(context.Background(), testConfig(srv.URL))
	assert.Equal(t, []string{"codellama:7b", "llama3.2:3b", "qwen3:8b"}, models)
}

func TestDiscovery_ListsOpenRouterModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/models", r.URL.Path)
		assert.Equal(t, "Bearer sk-or-test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"id":"z-ai/glm-4.5-air:free"},{"id":"deepseek/deepseek-r1:free"}]}`))
	}))
	defer srv.Close()

	cfg := ModelConfig{Provider: KindOpenRouter, Endpoint: srv.URL, APIKey: "sk-or-test"}
	models, err := NewDiscovery(nil).Lookup(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"deepseek/deepseek-r1:free", "z-ai/glm-4.5-air:free"}, models)
}

func TestDiscovery_FallsBackWhenListingFails(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"invalid json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>not json</html>`))
		},
		"no models": func(w http.ResponseWriter, r *http.Request) {
			writeTags(w)
		},
	}

	want := append([]string(nil), ollamaFallbackModels...)
	sort.Strings(want)

	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			models := NewDiscovery(nil).ListModels(context.Background(), testConfig(srv.URL))
			assert.Equal(t, want, models)
		})
	}
}

func TestDiscovery_LookupReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewDiscovery(nil).Lookup(context.Background(), testConfig(srv.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestDiscovery_FallbackDoesNotShareState(t *testing.T) {
	d := NewDiscovery(nil)
	first := d.Fallback(KindOllama)
	first[0] = "mutated"
	assert.NotContains(t, d.Fallback(KindOllama), "mutated")
	assert.Nil(t, d.Fallback("bedrock"))
}
