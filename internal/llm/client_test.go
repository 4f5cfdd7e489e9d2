package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-path-tester/internal/config"
	"api-path-tester/internal/testdata"
	"api-path-tester/internal/types"
)

var accountSpec = types.EndpointSpec{
	Name:     "CreateAccount",
	Method:   http.MethodPost,
	Path:     "/accounts",
	Provides: "account_id",
	Requires: []string{"user_id"},
	DataKey:  "account",
}

func TestFixtureAuthor(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		want     map[string]interface{}
		wantErr  bool
	}{
		{
			name:     "plain object",
			response: `{"currency": "USD"}`,
			want:     map[string]interface{}{"currency": "USD"},
		},
		{
			name:     "fenced object",
			response: "```json\n{\"currency\": \"EUR\"}\n```",
			want:     map[string]interface{}{"currency": "EUR"},
		},
		{
			name:     "injected fields removed",
			response: `{"currency": "USD", "user_id": 5}`,
			want:     map[string]interface{}{"currency": "USD"},
		},
		{
			name:     "array reply",
			response: `[{"currency": "USD"}]`,
			wantErr:  true,
		},
		{
			name:     "null reply",
			response: `null`,
			wantErr:  true,
		},
		{
			name:     "empty reply",
			response: "  ",
			wantErr:  true,
		},
		{
			name:    "completer error",
			err:     errors.New("rate limited"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := CompleterFunc(func(ctx context.Context, system, prompt string) (string, error) {
				return tt.response, tt.err
			})
			author := NewFixtureAuthor(completer, nil)

			got, err := author.Author(context.Background(), accountSpec, types.DatasetValid, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	valid, err := buildPrompt(accountSpec, types.DatasetValid, map[string]interface{}{"currency": "USD"})
	require.NoError(t, err)
	assert.Contains(t, valid, "POST /accounts")
	assert.Contains(t, valid, "user_id")
	assert.Contains(t, valid, `"currency": "USD"`)
	assert.Contains(t, valid, "satisfies every validation rule")

	invalid, err := buildPrompt(accountSpec, types.DatasetInvalid, nil)
	require.NoError(t, err)
	assert.Contains(t, invalid, "must reject")
	assert.NotContains(t, invalid, "Example request body")
}

func TestWriteFixtures(t *testing.T) {
	loader := testdata.NewLoader(t.TempDir())
	require.NoError(t, loader.Save("user", types.DatasetValid, map[string]interface{}{"name": "Ann", "email": "ann@example.com"}))

	var mu sync.Mutex
	var prompts []string
	completer := CompleterFunc(func(ctx context.Context, system, prompt string) (string, error) {
		mu.Lock()
		prompts = append(prompts, prompt)
		mu.Unlock()
		if strings.Contains(prompt, "must reject") {
			return `{"name": "Ann", "email": "broken"}`, nil
		}
		return `{"name": "Bob", "email": "bob@example.com"}`, nil
	})

	specs := map[string]types.EndpointSpec{
		"CreateUser": {Name: "CreateUser", Method: http.MethodPost, Path: "/users", Provides: "user_id", DataKey: "user"},
		"UpdateUser": {Name: "UpdateUser", Method: http.MethodPut, Path: "/users", DataKey: "user"},
	}

	written, err := NewFixtureAuthor(completer, nil).WriteFixtures(context.Background(), specs, loader)
	require.NoError(t, err)
	assert.Equal(t, []string{
		loader.FixturePath("user", types.DatasetValid),
		loader.FixturePath("user", types.DatasetInvalid),
	}, written)
	assert.Len(t, prompts, 2, "shared data keys are authored once")
	assert.Contains(t, prompts[0], "ann@example.com", "existing fixture is used as template")

	invalid, err := loader.LoadDataset("user", types.DatasetInvalid)
	require.NoError(t, err)
	assert.Equal(t, "broken", invalid["email"])
}

func TestOpenAIClient(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"currency\":\"USD\"}"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client, err := NewClient(&config.LLMConfig{
		Provider:  "openai",
		APIKey:    "test-key",
		Model:     "gpt-4o-mini",
		BaseURL:   server.URL,
		MaxTokens: 100,
	})
	require.NoError(t, err)

	reply, err := client.Complete(context.Background(), "system", "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"currency":"USD"}`, reply)
	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.Len(t, got["messages"], 2)
}

func TestOpenAIClientNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","choices":[]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(&config.LLMConfig{Provider: "openai", APIKey: "k", Model: "m", BaseURL: server.URL})
	_, err := client.Complete(context.Background(), "system", "prompt")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewClientUnsupportedProvider(t *testing.T) {
	_, err := NewClient(&config.LLMConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}
