package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("DOCQA_TEST_KEY", "sk-test")
	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "DOCQA_TEST_KEY", Model: "test-embed"})
	require.NoError(t, err)
	return c
}

func TestEmbedRestoresInputOrder(t *testing.T) {
	var got struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"test-embed","usage":{"prompt_tokens":2,"total_tokens":2},"data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}]}`))
	})

	out, err := c.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, got.Input)
	assert.Equal(t, "test-embed", got.Model)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, out)
}

func TestEmbedClassifiesFailures(t *testing.T) {
	cases := []struct {
		status int
		reason domain.Reason
	}{
		{http.StatusTooManyRequests, domain.ReasonQuota},
		{http.StatusBadRequest, domain.ReasonMalformed},
		{http.StatusUnauthorized, domain.ReasonRejected},
		{http.StatusInternalServerError, domain.ReasonUnavailable},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"test"}}`))
		})
		_, err := c.Embed(context.Background(), []string{"x"})
		var ce *domain.CollaboratorError
		require.ErrorAs(t, err, &ce, "status %d", tc.status)
		assert.Equal(t, tc.reason, ce.Reason, "status %d", tc.status)
		assert.Equal(t, domain.KindEmbeddingStore, ce.Kind)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("DOCQA_MISSING_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "DOCQA_MISSING_KEY"})
	assert.Error(t, err)
}
