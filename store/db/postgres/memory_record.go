package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hearthmem/hearth/store"
)

const recordColumns = "id, owner_id, content, content_hash, source, content_type, tags, heat, importance, pinned, access_count, last_accessed_ts, created_ts"

// effectiveHeatExpr yields the heat used for ordering and filtering: the
// stored value, or the age-step fallback for legacy rows that predate heat
// tracking. The fallback is computed per query and never written back.
func effectiveHeatExpr(nowArg string) string {
	return `COALESCE(heat, CASE
		WHEN created_ts >= ` + nowArg + ` - 21600 THEN 1.0
		WHEN created_ts >= ` + nowArg + ` - 86400 THEN 0.85
		WHEN created_ts >= ` + nowArg + ` - 172800 THEN 0.7
		WHEN created_ts >= ` + nowArg + ` - 604800 THEN 0.5
		ELSE 0.3 END)`
}

// CreateMemoryRecord inserts a record. A conflicting (owner_id, content_hash)
// insert is a no-op that returns the existing row.
func (d *DB) CreateMemoryRecord(ctx context.Context, create *store.MemoryRecord) (*store.MemoryRecord, error) {
	tagsJSON, err := json.Marshal(create.Tags)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tags")
	}

	stmt := `
		INSERT INTO memory_record (id, owner_id, content, content_hash, embedding, source, content_type, tags, heat, importance, pinned, access_count, last_accessed_ts, created_ts)
		VALUES (` + placeholders(14) + `)
		ON CONFLICT (owner_id, content_hash) DO NOTHING
		RETURNING id
	`

	var id string
	err = d.db.QueryRowContext(ctx, stmt,
		create.ID,
		create.OwnerID,
		create.Content,
		create.ContentHash,
		pgvector.NewVector(create.Embedding),
		create.Source,
		create.ContentType,
		tagsJSON,
		create.Heat,
		create.Importance,
		create.Pinned,
		create.AccessCount,
		create.LastAccessedTs,
		create.CreatedTs,
	).Scan(&id)
	if err == nil {
		return create, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, "failed to insert memory record")
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
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.OwnerID != nil {
		where, args = append(where, "owner_id = "+placeholder(len(args)+1)), append(args, *find.OwnerID)
	}
	if find.ContentHash != nil {
		where, args = append(where, "content_hash = "+placeholder(len(args)+1)), append(args, *find.ContentHash)
	}
	if find.Pinned != nil {
		where, args = append(where, "pinned = "+placeholder(len(args)+1)), append(args, *find.Pinned)
	}
	if find.Entity != nil {
		pattern := "%" + escapeLike(*find.Entity) + "%"
		n := len(args) + 1
		where = append(where, fmt.Sprintf("(content ILIKE $%d OR tags::text ILIKE $%d)", n, n))
		args = append(args, pattern)
	}

	nowTs := time.Now().Unix()
	heatExpr := ""
	if find.HeatBelow != nil || find.OrderByHeat != store.HeatOrderNone {
		args = append(args, nowTs)
		heatExpr = effectiveHeatExpr(placeholder(len(args)))
	}
	if find.HeatBelow != nil {
		where, args = append(where, heatExpr+" < "+placeholder(len(args)+1)), append(args, *find.HeatBelow)
	}

	orderBy := "created_ts DESC"
	switch find.OrderByHeat {
	case store.HeatOrderDesc:
		orderBy = heatExpr + " DESC, last_accessed_ts DESC"
	case store.HeatOrderAsc:
		orderBy = heatExpr + " ASC, last_accessed_ts ASC"
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
		set, args = append(set, "heat = "+placeholder(len(args)+1)), append(args, *update.Heat)
	}
	if update.Importance != nil {
		set, args = append(set, "importance = "+placeholder(len(args)+1)), append(args, *update.Importance)
	}
	if update.Pinned != nil {
		set, args = append(set, "pinned = "+placeholder(len(args)+1)), append(args, *update.Pinned)
	}
	if update.AccessCount != nil {
		set, args = append(set, "access_count = "+placeholder(len(args)+1)), append(args, *update.AccessCount)
	}
	if update.LastAccessedTs != nil {
		set, args = append(set, "last_accessed_ts = "+placeholder(len(args)+1)), append(args, *update.LastAccessedTs)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}

	args = append(args, update.ID)
	stmt := `
		UPDATE memory_record
		SET ` + strings.Join(set, ", ") + `
		WHERE id = ` + placeholder(len(args)) + `
		RETURNING ` + recordColumns

	row := d.db.QueryRowContext(ctx, stmt, args...)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRecordNotFound
		}
		return nil, errors.Wrap(err, "failed to update memory record")
	}
	return record, nil
}

// VectorSearch performs cosine similarity search using pgvector. The <=>
// operator computes cosine distance, so similarity is 1 - distance and
// ordering by distance ascending yields most similar first.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.RecordWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT ` + recordColumns + `,
			1 - (embedding <=> $1) AS score
		FROM memory_record
		WHERE owner_id = $2
			AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $3`

	vector := pgvector.NewVector(opts.Vector)
	rows, err := d.db.QueryContext(ctx, query, vector, opts.OwnerID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.RecordWithScore{}
	for rows.Next() {
		record, score, err := scanRecordWithScore(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, &store.RecordWithScore{Record: record, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// ApplyDecay multiplies the heat of every non-pinned record by the decay
// rate, clamped at the floor. Legacy rows with NULL heat are skipped so the
// read-time fallback stays authoritative until a real mutation.
func (d *DB) ApplyDecay(ctx context.Context, opts *store.DecayOptions) (int64, error) {
	stmt := `
		UPDATE memory_record
		SET heat = GREATEST($1, heat * $2)
		WHERE NOT pinned AND heat IS NOT NULL`

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
	if opts.OwnerID != nil {
		where, args = append(where, "owner_id = "+placeholder(len(args)+1)), append(args, *opts.OwnerID)
	}

	args = append(args, time.Now().Unix())
	heatExpr := effectiveHeatExpr(placeholder(len(args)))

	args = append(args, opts.HotThreshold, opts.ColdThreshold)
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE ` + heatExpr + ` >= ` + placeholder(len(args)-1) + `),
			COUNT(*) FILTER (WHERE ` + heatExpr + ` < ` + placeholder(len(args)) + `),
			COUNT(*) FILTER (WHERE pinned)
		FROM memory_record
		WHERE ` + strings.Join(where, " AND ")

	stats := &store.HeatStats{}
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&stats.Total, &stats.Hot, &stats.Cold, &stats.Pinned); err != nil {
		return nil, errors.Wrap(err, "failed to get heat stats")
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*store.MemoryRecord, error) {
	var record store.MemoryRecord
	var tagsJSON []byte
	var heat sql.NullFloat64

	err := row.Scan(
		&record.ID,
		&record.OwnerID,
		&record.Content,
		&record.ContentHash,
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
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan memory record")
	}

	if heat.Valid {
		record.Heat = &heat.Float64
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &record.Tags); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal tags")
		}
	}
	return &record, nil
}

func scanRecordWithScore(rows *sql.Rows) (*store.MemoryRecord, float64, error) {
	var record store.MemoryRecord
	var tagsJSON []byte
	var heat sql.NullFloat64
	var score float64

	err := rows.Scan(
		&record.ID,
		&record.OwnerID,
		&record.Content,
		&record.ContentHash,
		&record.Source,
		&record.ContentType,
		&tagsJSON,
		&heat,
		&record.Importance,
		&record.Pinned,
		&record.AccessCount,
		&record.LastAccessedTs,
		&record.CreatedTs,
		&score,
	)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to scan vector search result")
	}

	if heat.Valid {
		record.Heat = &heat.Float64
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &record.Tags); err != nil {
			return nil, 0, errors.Wrap(err, "failed to unmarshal tags")
		}
	}
	return &record, score, nil
}

// escapeLike escapes LIKE special characters to prevent pattern injection.
// The backslash goes first so literal escapes are not doubled.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	return strings.ReplaceAll(s, "_", "\\_")
}
