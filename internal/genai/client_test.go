package genai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Generate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  Velvety warmth, "},{"text":"soulful bites.\n"}]}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", time.Second)
	text, err := c.Generate(context.Background(), Request{Model: "gemini-test", Prompt: "wisdom", SystemInstruction: "mascot"})
	require.NoError(t, err)
	assert.Equal(t, "Velvety warmth, soulful bites.", text)

	require.Len(t, got.Contents, 1)
	assert.Equal(t, "wisdom", got.Contents[0].Parts[0].Text)
	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "mascot", got.SystemInstruction.Parts[0].Text)
}

func TestClient_Errors(t *testing.T) {
	t.Run("no key", func(t *testing.T) {
		_, err := NewClient("http://unused", "", 0).Generate(context.Background(), Request{Model: "m"})
		assert.True(t, errors.Is(err, ErrNoAPIKey))
	})

	t.Run("api error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`))
		}))
		defer srv.Close()
		_, err := NewClient(srv.URL, "bad", time.Second).Generate(context.Background(), Request{Model: "m"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API key not valid")
	})

	t.Run("no candidates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[]}`))
		}))
		defer srv.Close()
		_, err := NewClient(srv.URL, "k", time.Second).Generate(context.Background(), Request{Model: "m"})
		assert.True(t, errors.Is(err, ErrEmptyContent))
	})
}
