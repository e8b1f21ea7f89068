package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "fibre-cost/internal/errors"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    map[string]any
		wantErr bool
	}{
		{"strict", `{"status":"VALID"}`, map[string]any{"status": "VALID"}, false},
		{"fenced", "```json\n{\"status\": \"INVALID\", \"issue\": \"cost too low\"}\n```", map[string]any{"status": "INVALID", "issue": "cost too low"}, false},
		{"prose around", `Sure! Here it is: {"top_risk": "Flooding"} hope that helps`, map[string]any{"top_risk": "Flooding"}, false},
		{"no object", "VALID", nil, true},
		{"broken object", `{"status": }`, nil, true},
		{"reversed braces", `} nope {`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func chatServer(t *testing.T, status int, content string, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte("upstream overloaded"))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIClientJudge(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, http.StatusOK, `{"status":"VALID","issue":""}`, &seen)

	c := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL + "/", APIKey: "test-key", Model: "big", FastModel: "small"})
	got, err := c.Judge(context.Background(), Prompt{Kind: KindValidation, Text: "validate", Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "VALID", got["status"])

	assert.Equal(t, "small", seen.Model)
	require.NotNil(t, seen.ResponseFormat)
	assert.Equal(t, "json_object", seen.ResponseFormat.Type)
	assert.Equal(t, "validate", seen.Messages[0].Content)
}

func TestOpenAIClientNarrateUsesMainModel(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, http.StatusOK, "  Proceed in two phases.  ", &seen)

	c := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "big", FastModel: "small"})
	got, err := c.Narrate(context.Background(), Prompt{Kind: KindStrategy, Text: "note", MaxTokens: 150})
	require.NoError(t, err)
	assert.Equal(t, "Proceed in two phases.", got)
	assert.Equal(t, "big", seen.Model)
	assert.Nil(t, seen.ResponseFormat)
	assert.Equal(t, 150, seen.MaxTokens)
}

func TestOpenAIClientStatusError(t *testing.T) {
	srv := chatServer(t, http.StatusServiceUnavailable, "", nil)

	c := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "m"})
	_, err := c.Judge(context.Background(), Prompt{Kind: KindRisk})
	require.Error(t, err)
	assert.True(t, ferrors.IsType(err, ferrors.TypeOracle))
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "upstream overloaded")
}

func TestOpenAIClientMalformedJudgment(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "I think it is fine", nil)

	c := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "m"})
	_, err := c.Judge(context.Background(), Prompt{Kind: KindValidation})
	assert.True(t, ferrors.IsType(err, ferrors.TypeOracle))
}

func TestOpenAIClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "m", Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := c.Narrate(context.Background(), Prompt{Kind: KindStrategy})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStubQueuesPerKind(t *testing.T) {
	s := NewStub().
		OnJudge(KindValidation,
			Reply{JSON: map[string]any{"status": "INVALID", "issue": "a"}},
			Reply{JSON: map[string]any{"status": "VALID"}},
		).
		OnNarrate(KindStrategy, Reply{Text: "note"})
	ctx := context.Background()

	first, err := s.Judge(ctx, Prompt{Kind: KindValidation, Text: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "INVALID", first["status"])

	second, _ := s.Judge(ctx, Prompt{Kind: KindValidation, Text: "p2"})
	third, _ := s.Judge(ctx, Prompt{Kind: KindValidation, Text: "p3"})
	assert.Equal(t, "VALID", second["status"])
	assert.Equal(t, "VALID", third["status"], "last reply repeats")
	assert.Equal(t, 3, s.Calls(KindValidation))
	assert.Equal(t, "p3", s.LastPrompt(KindValidation))

	text, err := s.Narrate(ctx, Prompt{Kind: KindStrategy})
	require.NoError(t, err)
	assert.Equal(t, "note", text)

	_, err = s.Judge(ctx, Prompt{Kind: KindRisk})
	assert.True(t, ferrors.IsType(err, ferrors.TypeOracle))
	assert.Equal(t, 1, s.Calls(KindRisk))
}

func TestStubScriptedError(t *testing.T) {
	boom := errors.New("boom")
	s := NewStub().OnJudge(KindBuildMethod, Reply{Err: boom})

	_, err := s.Judge(context.Background(), Prompt{Kind: KindBuildMethod})
	assert.ErrorIs(t, err, boom)
}

func TestUnavailable(t *testing.T) {
	var o Oracle = Unavailable{Reason: "GROQ_API_KEY not set"}

	_, err := o.Judge(context.Background(), Prompt{Kind: KindRisk})
	require.Error(t, err)
	assert.True(t, ferrors.IsType(err, ferrors.TypeOracle))
	assert.Contains(t, err.Error(), "GROQ_API_KEY not set")

	_, err = o.Narrate(context.Background(), Prompt{Kind: KindStrategy})
	assert.Error(t, err)
}

func TestInstrumentPassesThrough(t *testing.T) {
	o := Instrument(NewStub().OnNarrate(KindStrategy, Reply{Text: "ok"}))
	got, err := o.Narrate(context.Background(), Prompt{Kind: KindStrategy})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}
