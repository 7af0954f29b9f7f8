package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hearthmem/hearth/store"
)

const recordColumns = "id, owner_id, content, content_hash, embedding, source, content_type, tags, heat, importance, pinned, access_count, last_accessed_ts, created_ts"

// effectiveHeatExpr mirrors the Postgres driver: stored heat, or the
// age-step fallback for legacy rows. Each ? consumes one nowTs argument.
const effectiveHeatExpr = `COALESCE(heat, CASE
	WHEN created_ts >= ? - 21600 THEN 1.0
	WHEN created_ts >= ? - 86400 THEN 0.85
	WHEN created_ts >= ? - 172800 THEN 0.7
	WHEN created_ts >= ? - 604800 THEN 0.5
	ELSE 0.3 END)`

func heatExprArgs(nowTs int64) []any {
	return []any{nowTs, nowTs, nowTs, nowTs}
}

func (d *DB) CreateMemoryRecord(ctx context.Context, create *store.MemoryRecord) (*store.MemoryRecord, error) {
	tagsJSON, err := json.Marshal(create.Tags)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tags")
	}
	embeddingJSON, err := json.Marshal(create.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal embedding")
	}

	stmt := `
		INSERT INTO memory_record (` + recordColumns + `)
		VALUES (` + placeholders(14) + `)
		ON CONFLICT (owner_id, content_hash) DO NOTHING
	`
	result, err := d.db.ExecContext(ctx, stmt,
		create.ID,
		create.OwnerID,
		create.Content,
		create.ContentHash,
		string(embeddingJSON),
		create.Source,
		create.ContentType,
		string(tagsJSON),
		create.Heat,
		create.Importance,
		create.Pinned,
		create.AccessCount,
		create.LastAccessedTs,
		create.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert memory record")
	}

	if rows, _ := result.RowsAffected(); rows > 0 {
		return create, nil
	}

	// Conflict path: return the already-stored record.
	existing, err := d.ListMemoryRecords(ctx, &store.FindMemoryRecord{
		OwnerID:     &create.OwnerID,
		ContentHash: &create.ContentHash,
		Limit:       1,
	})
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, errors.New("conflicting memory record disappeared during insert")
	}
	return existing[0], nil
}

func (d *DB) ListMemoryRecords(ctx context.Context, find *store.FindMemoryRecord) ([]*store.MemoryRecord, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.OwnerID != nil {
		where, args = append(where, "owner_id = ?"), append(args, *find.OwnerID)
	}
	if find.ContentHash != nil {
		where, args = append(where, "content_hash = ?"), append(args, *find.ContentHash)
	}
	if find.Pinned != nil {
		where, args = append(where, "pinned = ?"), append(args, *find.Pinned)
	}
	if find.Entity != nil {
		pattern := "%" + escapeLike(*find.Entity) + "%"
		where = append(where, "(content LIKE ? ESCAPE '\\' OR tags LIKE ? ESCAPE '\\')")
		args = append(args, pattern, pattern)
	}

	nowTs := time.Now().Unix()
	if find.HeatBelow != nil {
		where = append(where, effectiveHeatExpr+" < ?")
		args = append(args, heatExprArgs(nowTs)...)
		args = append(args, *find.HeatBelow)
	}

	orderBy := "created_ts DESC"
	switch find.OrderByHeat {
	case store.HeatOrderDesc:
		orderBy = effectiveHeatExpr + " DESC, last_accessed_ts DESC"
		args = append(args, heatExprArgs(nowTs)...)
	case store.HeatOrderAsc:
		orderBy = effectiveHeatExpr + " ASC, last_accessed_ts ASC"
		args = append(args, heatExprArgs(nowTs)...)
	}

	query := `
		SELECT ` + recordColumns + `
		FROM memory_record
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ` + orderBy

	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
		if find.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list memory records")
	}
	defer rows.Close()

	list := []*store.MemoryRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpdateMemoryRecord(ctx context.Context, update *store.UpdateMemoryRecord) (*store.MemoryRecord, error) {
	set, args := []string{}, []any{}

	if update.Heat != nil {
		set, args = append(set, "heat = ?"), append(args, *update.Heat)
	}
	if update.Importance != nil {
		set, args = append(set, "importance = ?"), append(args, *update.Importance)
	}
	if update.Pinned != nil {
		set, args = append(set, "pinned = ?"), append(args, *update.Pinned)
	}
	if update.AccessCount != nil {
		set, args = append(set, "access_count = ?"), append(args, *update.AccessCount)
	}
	if update.LastAccessedTs != nil {
		set, args = append(set, "last_accessed_ts = ?"), append(args, *update.LastAccessedTs)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}

	args = append(args, update.ID)
	stmt := `UPDATE memory_record SET ` + strings.Join(set, ", ") + ` WHERE id = ?`
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update memory record")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, store.ErrRecordNotFound
	}

	list, err := d.ListMemoryRecords(ctx, &store.FindMemoryRecord{ID: &update.ID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, store.ErrRecordNotFound
	}
	return list[0], nil
}

// VectorSearch computes cosine similarity in-process over the owner's
// corpus. Acceptable for development-sized datasets only.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.RecordWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	candidates, err := d.ListMemoryRecords(ctx, &store.FindMemoryRecord{OwnerID: &opts.OwnerID})
	if err != nil {
		return nil, err
	}

	results := []*store.RecordWithScore{}
	for _, record := range candidates {
		if len(record.Embedding) == 0 {
			continue
		}
		results = append(results, &store.RecordWithScore{
			Record: record,
			Score:  store.CosineSimilarity(opts.Vector, record.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (d *DB) ApplyDecay(ctx context.Context, opts *store.DecayOptions) (int64, error) {
	stmt := `
		UPDATE memory_record
		SET heat = MAX(?, heat * ?)
		WHERE pinned = 0 AND heat IS NOT NULL`

	result, err := d.db.ExecContext(ctx, stmt, opts.MinHeat, opts.Rate)
	if err != nil {
		return 0, errors.Wrap(err, "failed to apply decay")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count decayed rows")
	}
	return rows, nil
}

func (d *DB) GetHeatStats(ctx context.Context, opts *store.HeatStatsOptions) (*store.HeatStats, error) {
	where, args := []string{"1 = 1"}, []any{}

	nowTs := time.Now().Unix()
	hotExpr := "SUM(CASE WHEN " + effectiveHeatExpr + " >= ? THEN 1 ELSE 0 END)"
	coldExpr := "SUM(CASE WHEN " + effectiveHeatExpr + " < ? THEN 1 ELSE 0 END)"

	args = append(args, heatExprArgs(nowTs)...)
	args = append(args, opts.HotThreshold)
	args = append(args, heatExprArgs(nowTs)...)
	args = append(args, opts.ColdThreshold)
	if opts.OwnerID != nil {
		where, args = append(where, "owner_id = ?"), append(args, *opts.OwnerID)
	}

	query := `
		SELECT
			COUNT(*),
			COALESCE(` + hotExpr + `, 0),
			COALESCE(` + coldExpr + `, 0),
			COALESCE(SUM(CASE WHEN pinned = 1 THEN 1 ELSE 0 END), 0)
		FROM memory_record
		WHERE ` + strings.Join(where, " AND ")

	stats := &store.HeatStats{}
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&stats.Total, &stats.Hot, &stats.Cold, &stats.Pinned); err != nil {
		return nil, errors.Wrap(err, "failed to get heat stats")
	}
	return stats, nil
}

func scanRecord(rows *sql.Rows) (*store.MemoryRecord, error) {
	var record store.MemoryRecord
	var tagsJSON, embeddingJSON sql.NullString
	var heat sql.NullFloat64

	err := rows.Scan(
		&record.ID,
		&record.OwnerID,
		&record.Content,
		&record.ContentHash,
		&embeddingJSON,
		&record.Source,
		&record.ContentType,
		&tagsJSON,
		&heat,
		&record.Importance,
		&record.Pinned,
		&record.AccessCount,
		&record.LastAccessedTs,
		&record.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan memory record")
	}

	if heat.Valid {
		record.Heat = &heat.Float64
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &record.Tags); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal tags")
		}
	}
	if embeddingJSON.Valid && embeddingJSON.String != "" {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &record.Embedding); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal embedding")
		}
	}
	return &record, nil
}

// escapeLike escapes LIKE special characters to prevent pattern injection.
// The backslash goes first so literal escapes are not doubled.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	return strings.ReplaceAll(s, "_", "\\_")
}
