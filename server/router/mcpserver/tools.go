// Package mcpserver exposes the memory engine as MCP tools. The handlers do
// argument validation only and delegate to the ingestion, retrieval and heat
// services.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hearthmem/hearth/internal/profile"
	errs "github.com/hearthmem/hearth/server/internal/errors"
	"github.com/hearthmem/hearth/server/internal/observability"
	"github.com/hearthmem/hearth/server/service/memory"
	"github.com/hearthmem/hearth/store"
)

// Server wires the memory services into an MCP tool surface.
type Server struct {
	mcp      *server.MCPServer
	ingestor *memory.Ingestor
	searcher *memory.Searcher
	heat     *memory.HeatService
	profile  *profile.Profile
}

// NewServer registers all memory tools on a fresh MCP server instance.
func NewServer(p *profile.Profile, ingestor *memory.Ingestor, searcher *memory.Searcher, heat *memory.HeatService) *Server {
	s := &Server{
		mcp: server.NewMCPServer("hearth", p.Version,
			server.WithToolCapabilities(true),
		),
		ingestor: ingestor,
		searcher: searcher,
		heat:     heat,
		profile:  p,
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying server for transport binding.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio blocks serving the MCP protocol over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(buildAddTool(), instrument("memory_add", s.handleAdd))
	s.mcp.AddTool(buildAddDocumentTool(), instrument("memory_add_document", s.handleAddDocument))
	s.mcp.AddTool(buildSearchTool(), instrument("memory_search", s.handleSearch))
	s.mcp.AddTool(buildGetContextTool(), instrument("memory_get_context", s.handleGetContext))
	s.mcp.AddTool(buildWhatsHotTool(), instrument("memory_whats_hot", s.handleWhatsHot))
	s.mcp.AddTool(buildWhatsColdTool(), instrument("memory_whats_cold", s.handleWhatsCold))
	s.mcp.AddTool(buildBoostMentionTool(), instrument("memory_boost_mention", s.handleBoostMention))
	s.mcp.AddTool(buildPinTool(), instrument("memory_pin", s.handlePin))
	s.mcp.AddTool(buildUnpinTool(), instrument("memory_unpin", s.handleUnpin))
	s.mcp.AddTool(buildStatsTool(), instrument("memory_stats", s.handleStats))
}

// instrument records call count, duration and failure for each tool.
func instrument(name string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := handler(ctx, req)
		failed := err != nil || (result != nil && result.IsError)
		observability.GlobalMetrics().Record(name, time.Since(start), failed)
		return result, err
	}
}

// ---------------------------------------------------------------------------
// Tool builders (schema only, no execution logic)
// ---------------------------------------------------------------------------

func buildAddTool() mcp.Tool {
	return mcp.NewTool(
		"memory_add",
		mcp.WithDescription("Distills conversational content into atomic facts and stores each as a memory. Returns the stored record ids; duplicates return the existing id."),
		mcp.WithString("content",
			mcp.Description("Conversational text to distill and remember"),
			mcp.Required(),
		),
		mcp.WithString("owner",
			mcp.Description("Owner scope; defaults to the configured owner"),
		),
		mcp.WithString("source",
			mcp.Description("Free-form source label, e.g. 'chat'"),
		),
		mcp.WithArray("tags",
			mcp.Description("Classification tags (client/project/domain/category)"),
		),
		mcp.WithBoolean("pin",
			mcp.Description("Store pinned at maximum heat, exempt from decay"),
		),
	)
}

func buildAddDocumentTool() mcp.Tool {
	return mcp.NewTool(
		"memory_add_document",
		mcp.WithDescription("Stores the full content verbatim as a single memory, bypassing fact extraction. Use for documents where distillation would lose information."),
		mcp.WithString("content",
			mcp.Description("Document text to store verbatim"),
			mcp.Required(),
		),
		mcp.WithString("owner",
			mcp.Description("Owner scope; defaults to the configured owner"),
		),
		mcp.WithString("source",
			mcp.Description("Free-form source label, e.g. 'upload'"),
		),
		mcp.WithString("content_type",
			mcp.Description("Content type label, e.g. 'document'"),
		),
		mcp.WithArray("tags",
			mcp.Description("Classification tags"),
		),
		mcp.WithBoolean("pin",
			mcp.Description("Store pinned at maximum heat"),
		),
	)
}

func buildSearchTool() mcp.Tool {
	return mcp.NewTool(
		"memory_search",
		mcp.WithDescription("Semantic search re-ranked by recency heat and importance. Returns content, scores and metadata in rank order."),
		mcp.WithString("query",
			mcp.Description("Search query"),
			mcp.Required(),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default 5)"),
		),
		mcp.WithString("owner",
			mcp.Description("Owner scope; defaults to the configured owner"),
		),
	)
}

func buildGetContextTool() mcp.Tool {
	return mcp.NewTool(
		"memory_get_context",
		mcp.WithDescription("Returns the most relevant memories for a query as one concatenated text block, suitable for prompt injection."),
		mcp.WithString("query",
			mcp.Description("Query to gather context for"),
			mcp.Required(),
		),
		mcp.WithString("owner",
			mcp.Description("Owner scope; defaults to the configured owner"),
		),
	)
}

func buildWhatsHotTool() mcp.Tool {
	return mcp.NewTool(
		"memory_whats_hot",
		mcp.WithDescription("Lists the currently hottest memories, ordered by descending heat."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default 10)"),
		),
		mcp.WithString("owner",
			mcp.Description("Owner scope; defaults to the configured owner"),
		),
	)
}

func buildWhatsColdTool() mcp.Tool {
	return mcp.NewTool(
		"memory_whats_cold",
		mcp.WithDescription("Lists neglected memories with heat below a threshold, coldest first."),
		mcp.WithNumber("threshold",
			mcp.Description("Heat threshold (default 0.3)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default 10)"),
		),
		mcp.WithString("owner",
			mcp.Description("Owner scope; defaults to the configured owner"),
		),
	)
}

func buildBoostMentionTool() mcp.Tool {
	return mcp.NewTool(
		"memory_boost_mention",
		mcp.WithDescription("Raises the heat of every memory whose content or tags mention an entity. Use when a topic comes up without a direct retrieval."),
		mcp.WithString("entity",
			mcp.Description("Entity to match by plain containment against content and tags"),
			mcp.Required(),
		),
		mcp.WithString("owner",
			mcp.Description("Owner scope; defaults to the configured owner"),
		),
	)
}

func buildPinTool() mcp.Tool {
	return mcp.NewTool(
		"memory_pin",
		mcp.WithDescription("Pins a memory: holds it at maximum heat, exempt from decay."),
		mcp.WithString("id",
			mcp.Description("Record id to pin"),
			mcp.Required(),
		),
	)
}

func buildUnpinTool() mcp.Tool {
	return mcp.NewTool(
		"memory_unpin",
		mcp.WithDescription("Unpins a memory so it resumes normal decay from its current heat."),
		mcp.WithString("id",
			mcp.Description("Record id to unpin"),
			mcp.Required(),
		),
	)
}

func buildStatsTool() mcp.Tool {
	return mcp.NewTool(
		"memory_stats",
		mcp.WithDescription("Returns aggregate heat statistics: total, hot, cold and pinned counts."),
		mcp.WithString("owner",
			mcp.Description("Owner scope; defaults to the configured owner"),
		),
	)
}

// ---------------------------------------------------------------------------
// Tool handlers
// ---------------------------------------------------------------------------

// recordView is the wire shape of a record in tool results.
type recordView struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Heat        float64  `json:"heat"`
	Importance  float64  `json:"importance"`
	Pinned      bool     `json:"pinned"`
	AccessCount int32    `json:"access_count"`
	Source      string   `json:"source,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	CreatedTs   int64    `json:"created_ts"`
}

func toRecordView(record *store.MemoryRecord, nowTs int64) recordView {
	return recordView{
		ID:          record.ID,
		Content:     record.Content,
		Heat:        store.EffectiveHeat(record, nowTs),
		Importance:  record.Importance,
		Pinned:      record.Pinned,
		AccessCount: record.AccessCount,
		Source:      record.Source,
		ContentType: record.ContentType,
		Tags:        record.Tags,
		CreatedTs:   record.CreatedTs,
	}
}

func (s *Server) handleAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	content, _ := args["content"].(string)
	if content == "" {
		return toolError(errs.InvalidArgument("content parameter is required")), nil
	}

	reqCtx := observability.NewRequestContext(slog.Default(), "memory_add", s.owner(args))
	results, err := s.ingestor.Add(ctx, content, memory.AddOptions{
		OwnerID: s.owner(args),
		Source:  stringArg(args, "source"),
		Tags:    stringSliceArg(args, "tags"),
		Pin:     boolArg(args, "pin"),
	})
	if err != nil {
		reqCtx.Error("add failed", err)
		return toolError(err), nil
	}

	ids := make([]string, 0, len(results))
	deduplicated := 0
	for _, result := range results {
		ids = append(ids, result.Record.ID)
		if result.Deduplicated {
			deduplicated++
		}
	}
	reqCtx.Info("memories added",
		slog.Int("stored", len(ids)-deduplicated),
		slog.Int("deduplicated", deduplicated),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	return toolJSON(map[string]any{"ids": ids, "deduplicated": deduplicated})
}

func (s *Server) handleAddDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	content, _ := args["content"].(string)
	if content == "" {
		return toolError(errs.InvalidArgument("content parameter is required")), nil
	}

	result, err := s.ingestor.AddDocument(ctx, content, memory.AddOptions{
		OwnerID:     s.owner(args),
		Source:      stringArg(args, "source"),
		ContentType: stringArg(args, "content_type"),
		Tags:        stringSliceArg(args, "tags"),
		Pin:         boolArg(args, "pin"),
	})
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(map[string]any{
		"id":           result.Record.ID,
		"deduplicated": result.Deduplicated,
	})
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)
	limit := intArg(args, "limit", 5)

	results, err := s.searcher.Search(ctx, s.owner(args), query, limit)
	if err != nil {
		return toolError(err), nil
	}

	nowTs := nowUnix()
	views := make([]map[string]any, 0, len(results))
	for _, result := range results {
		views = append(views, map[string]any{
			"record":     toRecordView(result.Record, nowTs),
			"similarity": result.Similarity,
			"score":      result.EffectiveScore,
		})
	}
	return toolJSON(views)
}

func (s *Server) handleGetContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)

	block, err := s.searcher.GetContextForQuery(ctx, s.owner(args), query)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(block), nil
}

func (s *Server) handleWhatsHot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	limit := intArg(args, "limit", 10)

	records, err := s.heat.GetHotMemories(ctx, s.owner(args), limit)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(toViews(records))
}

func (s *Server) handleWhatsCold(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	threshold := floatArg(args, "threshold", 0.3)
	limit := intArg(args, "limit", 10)

	records, err := s.heat.GetColdMemories(ctx, s.owner(args), threshold, limit)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(toViews(records))
}

func (s *Server) handleBoostMention(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	entity, _ := args["entity"].(string)
	if entity == "" {
		return toolError(errs.InvalidArgument("entity parameter is required")), nil
	}

	boosted, err := s.heat.BoostMention(ctx, s.owner(args), entity)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(map[string]any{"boosted": boosted})
}

func (s *Server) handlePin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := req.GetArguments()["id"].(string)
	if id == "" {
		return toolError(errs.InvalidArgument("id parameter is required")), nil
	}

	record, err := s.heat.Pin(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(toRecordView(record, nowUnix()))
}

func (s *Server) handleUnpin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := req.GetArguments()["id"].(string)
	if id == "" {
		return toolError(errs.InvalidArgument("id parameter is required")), nil
	}

	record, err := s.heat.Unpin(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(toRecordView(record, nowUnix()))
}

func (s *Server) handleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.heat.GetHeatStats(ctx, s.owner(req.GetArguments()))
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(map[string]any{
		"total":  stats.Total,
		"hot":    stats.Hot,
		"cold":   stats.Cold,
		"pinned": stats.Pinned,
	})
}

// ---------------------------------------------------------------------------
// Argument helpers
// ---------------------------------------------------------------------------

func (s *Server) owner(args map[string]any) string {
	if owner, _ := args["owner"].(string); owner != "" {
		return owner
	}
	return s.profile.DefaultOwner
}

func stringArg(args map[string]any, key string) string {
	value, _ := args[key].(string)
	return value
}

func boolArg(args map[string]any, key string) bool {
	value, _ := args[key].(bool)
	return value
}

// intArg accepts float64 (JSON numbers) or string encodings.
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

func floatArg(args map[string]any, key string, fallback float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f
		}
	}
	return fallback
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func nowUnix() int64 {
	return time.Now().Unix()
}

func toViews(records []*store.MemoryRecord) []recordView {
	nowTs := nowUnix()
	views := make([]recordView, 0, len(records))
	for _, record := range records {
		views = append(views, toRecordView(record, nowTs))
	}
	return views
}

func toolJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError returns the error as a tool result carrying its code, so MCP
// clients can distinguish failure kinds and degrade gracefully.
func toolError(err error) *mcp.CallToolResult {
	code := errs.CodeOf(err)
	if code == "" {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", code, err))
}
