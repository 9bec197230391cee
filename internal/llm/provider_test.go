package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_UnknownProvider(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Provider: "mystery", APIKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown llm provider")
}

func TestNewProvider_MissingKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	_, err := NewProvider(context.Background(), Config{Provider: ProviderGroq})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GROQ_API_KEY")
}

func TestNewProvider_Defaults(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "from-env")
	c, err := NewProvider(context.Background(), Config{})
	require.NoError(t, err)
	assert.Equal(t, "groq:llama-3.3-70b-versatile", c.Name())

	c, err = NewProvider(context.Background(), Config{Provider: "Anthropic", APIKey: "k", Model: "claude-x"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic:claude-x", c.Name())
}

func TestAnthropicClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-x",` +
			`"content":[{"type":"text","text":"hello"}],"stop_reason":"end_turn",` +
			`"usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("k", "claude-x", option.WithBaseURL(srv.URL))
	out, err := c.Complete(context.Background(), Request{System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestAnthropicClient_ClassifiesAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("bad", "claude-x", option.WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), Request{System: "s", User: "u"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.True(t, Fatal(err))
}

func TestOpenAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"llama",` +
			`"choices":[{"index":0,"message":{"role":"assistant","content":"hi there"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(ProviderGroq, "k", "llama", srv.URL+"/v1")
	out, err := c.Complete(context.Background(), Request{System: "s", User: "u", Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestOpenAIClient_ClassifiesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(ProviderGroq, "k", "llama", srv.URL+"/v1")
	_, err := c.Complete(context.Background(), Request{System: "s", User: "u"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimit)
	assert.True(t, Retryable(err))
}
