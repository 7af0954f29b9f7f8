package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthmem/hearth/internal/profile"
	"github.com/hearthmem/hearth/server/service/memory"
	"github.com/hearthmem/hearth/store"
	"github.com/hearthmem/hearth/store/db/memdb"
)

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	// Orthogonal-ish deterministic vectors keyed by first byte.
	vector := make([]float32, 4)
	if len(text) > 0 {
		vector[int(text[0])%4] = 1
	}
	return vector, nil
}

func (e fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i], _ = e.Embed(ctx, text)
	}
	return out, nil
}

func (fixedEmbedder) Dimensions() int { return 4 }

type fixedExtractor struct{ facts []string }

func (e fixedExtractor) Extract(context.Context, string) ([]string, error) {
	return e.facts, nil
}

func newTestServer(facts ...string) *Server {
	p := &profile.Profile{
		Mode:         "dev",
		Driver:       "memory",
		DefaultOwner: "default",
		Version:      "test",
		Heat:         profile.DefaultHeatConfig(),
	}
	st := store.New(memdb.NewDB(p), p)
	embedder := fixedEmbedder{}
	heat := memory.NewHeatService(st, p.Heat)
	ingestor := memory.NewIngestor(st, embedder, fixedExtractor{facts: facts}, p.Heat)
	searcher := memory.NewSearcher(st, embedder, heat, 3)
	return NewServer(p, ingestor, searcher, heat)
}

func callReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return result.Content[0].(mcp.TextContent).Text
}

func TestHandleAdd(t *testing.T) {
	srv := newTestServer("likes sailing", "owns a kayak")
	ctx := context.Background()

	result, err := srv.handleAdd(ctx, callReq(map[string]any{
		"content": "we talked about boats",
		"source":  "chat",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload struct {
		IDs          []string `json:"ids"`
		Deduplicated int      `json:"deduplicated"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &payload))
	assert.Len(t, payload.IDs, 2)
	assert.Zero(t, payload.Deduplicated)

	// Second call stores nothing new.
	result, err = srv.handleAdd(ctx, callReq(map[string]any{"content": "boats again"}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &payload))
	assert.Equal(t, 2, payload.Deduplicated)
}

func TestHandleAdd_MissingContent(t *testing.T) {
	srv := newTestServer()

	result, err := srv.handleAdd(context.Background(), callReq(map[string]any{}))
	require.NoError(t, err, "argument errors are tool results, not handler errors")
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "INVALID_ARGUMENT")
}

func TestHandleAddDocumentAndSearch(t *testing.T) {
	srv := newTestServer()
	ctx := context.Background()

	result, err := srv.handleAddDocument(ctx, callReq(map[string]any{
		"content":      "meeting notes from sprint review",
		"content_type": "document",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	searchResult, err := srv.handleSearch(ctx, callReq(map[string]any{
		"query": "meeting notes from sprint review",
		"limit": float64(5),
	}))
	require.NoError(t, err)
	require.False(t, searchResult.IsError)

	var hits []struct {
		Record struct {
			Content     string  `json:"content"`
			Heat        float64 `json:"heat"`
			AccessCount int32   `json:"access_count"`
		} `json:"record"`
		Similarity float64 `json:"similarity"`
		Score      float64 `json:"score"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, searchResult)), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "meeting notes from sprint review", hits[0].Record.Content)
	assert.Equal(t, int32(1), hits[0].Record.AccessCount, "retrieval reinforces the record")
}

func TestHandlePinUnpinAndStats(t *testing.T) {
	srv := newTestServer()
	ctx := context.Background()

	addResult, err := srv.handleAddDocument(ctx, callReq(map[string]any{"content": "anniversary is March 14"}))
	require.NoError(t, err)
	var added struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, addResult)), &added))

	pinResult, err := srv.handlePin(ctx, callReq(map[string]any{"id": added.ID}))
	require.NoError(t, err)
	require.False(t, pinResult.IsError)
	var pinned recordView
	require.NoError(t, json.Unmarshal([]byte(textOf(t, pinResult)), &pinned))
	assert.True(t, pinned.Pinned)
	assert.InDelta(t, 2.0, pinned.Heat, 1e-9)

	statsResult, err := srv.handleStats(ctx, callReq(map[string]any{}))
	require.NoError(t, err)
	var stats struct {
		Total  int64 `json:"total"`
		Pinned int64 `json:"pinned"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, statsResult)), &stats))
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Pinned)

	unpinResult, err := srv.handleUnpin(ctx, callReq(map[string]any{"id": added.ID}))
	require.NoError(t, err)
	var unpinned recordView
	require.NoError(t, json.Unmarshal([]byte(textOf(t, unpinResult)), &unpinned))
	assert.False(t, unpinned.Pinned)

	missing, err := srv.handlePin(ctx, callReq(map[string]any{"id": "no-such-record"}))
	require.NoError(t, err)
	assert.True(t, missing.IsError)
	assert.Contains(t, textOf(t, missing), "RECORD_NOT_FOUND")
}

func TestHandleWhatsHotAndCold(t *testing.T) {
	srv := newTestServer()
	ctx := context.Background()

	_, err := srv.handleAddDocument(ctx, callReq(map[string]any{"content": "fresh and hot"}))
	require.NoError(t, err)

	hotResult, err := srv.handleWhatsHot(ctx, callReq(map[string]any{"limit": float64(5)}))
	require.NoError(t, err)
	var hot []recordView
	require.NoError(t, json.Unmarshal([]byte(textOf(t, hotResult)), &hot))
	require.Len(t, hot, 1)
	assert.Equal(t, "fresh and hot", hot[0].Content)

	coldResult, err := srv.handleWhatsCold(ctx, callReq(map[string]any{}))
	require.NoError(t, err)
	var cold []recordView
	require.NoError(t, json.Unmarshal([]byte(textOf(t, coldResult)), &cold))
	assert.Empty(t, cold, "a fresh record is not cold")
}

func TestHandleBoostMention(t *testing.T) {
	srv := newTestServer()
	ctx := context.Background()

	_, err := srv.handleAddDocument(ctx, callReq(map[string]any{"content": "the Kestrel launch slipped a week"}))
	require.NoError(t, err)
	_, err = srv.handleAddDocument(ctx, callReq(map[string]any{"content": "prefers tea over coffee"}))
	require.NoError(t, err)

	result, err := srv.handleBoostMention(ctx, callReq(map[string]any{"entity": "kestrel"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload struct {
		Boosted int `json:"boosted"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &payload))
	assert.Equal(t, 1, payload.Boosted)

	// The matched record is now the hottest.
	hotResult, err := srv.handleWhatsHot(ctx, callReq(map[string]any{"limit": float64(1)}))
	require.NoError(t, err)
	var hot []recordView
	require.NoError(t, json.Unmarshal([]byte(textOf(t, hotResult)), &hot))
	require.Len(t, hot, 1)
	assert.Contains(t, hot[0].Content, "Kestrel")
	assert.InDelta(t, 1.1, hot[0].Heat, 1e-9)

	missing, err := srv.handleBoostMention(ctx, callReq(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, missing.IsError)
	assert.Contains(t, textOf(t, missing), "INVALID_ARGUMENT")
}

func TestHandleGetContext(t *testing.T) {
	srv := newTestServer()
	ctx := context.Background()

	_, err := srv.handleAddDocument(ctx, callReq(map[string]any{"content": "alpha note"}))
	require.NoError(t, err)

	result, err := srv.handleGetContext(ctx, callReq(map[string]any{"query": "alpha note"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "alpha note", textOf(t, result))
}

func TestArgumentHelpers(t *testing.T) {
	args := map[string]any{
		"float":     float64(7),
		"intstring": "12",
		"garbage":   "not a number",
		"tags":      []any{"a", "", "b", 3},
		"flag":      true,
	}

	assert.Equal(t, 7, intArg(args, "float", 0))
	assert.Equal(t, 12, intArg(args, "intstring", 0))
	assert.Equal(t, 9, intArg(args, "garbage", 9))
	assert.Equal(t, 9, intArg(args, "absent", 9))

	assert.InDelta(t, 7.0, floatArg(args, "float", 0), 1e-9)
	assert.InDelta(t, 0.5, floatArg(args, "absent", 0.5), 1e-9)

	assert.Equal(t, []string{"a", "b"}, stringSliceArg(args, "tags"))
	assert.Nil(t, stringSliceArg(args, "absent"))
	assert.True(t, boolArg(args, "flag"))
	assert.False(t, boolArg(args, "absent"))
}

func TestOwnerDefaulting(t *testing.T) {
	srv := newTestServer()
	assert.Equal(t, "default", srv.owner(map[string]any{}))
	assert.Equal(t, "alice", srv.owner(map[string]any{"owner": "alice"}))
}
