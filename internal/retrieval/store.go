// Package retrieval implements the Retriever family: InternalRetriever
// over a pgvector-backed KnowledgeStore, WebRetriever over a
// Serper-shaped search API, and HybridRetriever fanning out to both.
package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"dartreport/internal/domain"
)

// ChunkRow is one row of the internal source-material corpus, joined
// against its owning report and company (§4.2 step 2).
type ChunkRow struct {
	ChunkID       string
	ReportID      string
	CompanyName   string
	SectionPath   string
	ChunkType     domain.ChunkType
	SequenceOrder int
	RawContent    string
	HasMergedMeta bool
	Distance      float64
}

// KnowledgeStore is the read-only SQL client over the DART source
// corpus (§6.1). The ingestion pipeline that populates these tables is
// out of scope; only the query side lives here.
type KnowledgeStore interface {
	// VectorSearch returns the k' nearest chunks to embedding by
	// pgvector cosine distance, excluding noise_merged rows and any
	// url already in excludeURLs.
	VectorSearch(ctx context.Context, embedding []float32, k int, excludeURLs map[string]struct{}) ([]ChunkRow, error)
	// NeighborRows fetches rows sharing reportID with sequence_order
	// in {seq-window, seq+window}, for sliding-window assembly.
	NeighborRows(ctx context.Context, reportID string, seq, window int) ([]ChunkRow, error)
	// VectorDimension reports the stored embedding column's
	// dimensionality, checked against the embedder at startup.
	VectorDimension(ctx context.Context) (int, error)
	// CompanyAliases returns canonical_name -> aliases for the alias
	// registry (§3.1), loaded once at startup.
	CompanyAliases(ctx context.Context) (map[string][]string, error)
	Close() error
}

// PostgresStore is a KnowledgeStore backed by database/sql over the
// pgx/v5/stdlib driver, grounded on
// internal/gateway/repository/projectstore/store.go's sql.Open("pgx", dsn)
// pattern.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool against dsn and verifies it
// with a Ping, exactly as projectstore.NewPostgres does.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("retrieval: open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("retrieval: ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

const chunkColumns = `sm.chunk_id, sm.report_id, c.company_name, sm.section_path,
       sm.chunk_type, sm.sequence_order, sm.raw_content, sm.has_merged_meta`

func scanChunkRow(row rowScanner, withDistance bool) (ChunkRow, error) {
	var r ChunkRow
	var chunkType string
	dest := []any{&r.ChunkID, &r.ReportID, &r.CompanyName, &r.SectionPath,
		&chunkType, &r.SequenceOrder, &r.RawContent, &r.HasMergedMeta}
	if withDistance {
		dest = append(dest, &r.Distance)
	}
	if err := row.Scan(dest...); err != nil {
		return ChunkRow{}, err
	}
	r.ChunkType = domain.ChunkType(chunkType)
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// VectorSearch joins source_materials -> analysis_reports -> companies
// and orders by pgvector cosine distance (§4.2 steps 1-2).
func (s *PostgresStore) VectorSearch(ctx context.Context, embedding []float32, k int, excludeURLs map[string]struct{}) ([]ChunkRow, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("retrieval: empty query embedding")
	}
	if k <= 0 {
		k = 10
	}
	vecLiteral, err := EncodeVectorLiteral(embedding)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT %s, sm.embedding <=> $1::vector AS distance
FROM source_materials sm
JOIN analysis_reports ar ON ar.report_id = sm.report_id
JOIN companies c ON c.company_id = ar.company_id
WHERE sm.chunk_type <> 'noise_merged'
ORDER BY sm.embedding <=> $1::vector
LIMIT $2`, chunkColumns)

	fetchK := k
	if len(excludeURLs) > 0 {
		fetchK = k + len(excludeURLs)
	}
	rows, err := s.db.QueryContext(ctx, query, vecLiteral, fetchK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: vector search: %w", err)
	}
	defer rows.Close()

	out := make([]ChunkRow, 0, k)
	for rows.Next() {
		r, err := scanChunkRow(rows, true)
		if err != nil {
			return nil, fmt.Errorf("retrieval: scan chunk row: %w", err)
		}
		if _, excluded := excludeURLs[ChunkURL(r.ReportID, r.ChunkID)]; excluded {
			continue
		}
		out = append(out, r)
		if len(out) >= k {
			break
		}
	}
	return out, rows.Err()
}

// NeighborRows fetches the prev/next rows for sliding-window assembly
// (§4.2 step 4).
func (s *PostgresStore) NeighborRows(ctx context.Context, reportID string, seq, window int) ([]ChunkRow, error) {
	if window <= 0 {
		window = 1
	}
	query := fmt.Sprintf(`
SELECT %s
FROM source_materials sm
JOIN analysis_reports ar ON ar.report_id = sm.report_id
JOIN companies c ON c.company_id = ar.company_id
WHERE sm.report_id = $1 AND sm.sequence_order IN ($2, $3)`, chunkColumns)

	rows, err := s.db.QueryContext(ctx, query, reportID, seq-window, seq+window)
	if err != nil {
		return nil, fmt.Errorf("retrieval: neighbor rows: %w", err)
	}
	defer rows.Close()

	var out []ChunkRow
	for rows.Next() {
		r, err := scanChunkRow(rows, false)
		if err != nil {
			return nil, fmt.Errorf("retrieval: scan neighbor row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// VectorDimension reads the declared dimensionality of the embedding
// column, used for the fail-fast check in §4.2 step 1 / §7
// EmbeddingDimensionMismatch.
func (s *PostgresStore) VectorDimension(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT atttypmod
FROM pg_attribute
WHERE attrelid = 'source_materials'::regclass AND attname = 'embedding'`)
	var typmod int
	if err := row.Scan(&typmod); err != nil {
		return 0, fmt.Errorf("retrieval: read vector dimension: %w", err)
	}
	return typmod, nil
}

// CompanyAliases loads the canonical_name -> aliases map from a raw
// SQL join over companies/company_aliases (§2.1: not ent-generated —
// see DESIGN.md).
func (s *PostgresStore) CompanyAliases(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT c.company_name, a.alias
FROM companies c
LEFT JOIN company_aliases a ON a.company_id = c.company_id`)
	if err != nil {
		return nil, fmt.Errorf("retrieval: load company aliases: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var name string
		var alias sql.NullString
		if err := rows.Scan(&name, &alias); err != nil {
			return nil, fmt.Errorf("retrieval: scan alias row: %w", err)
		}
		if _, ok := out[name]; !ok {
			out[name] = nil
		}
		if alias.Valid && strings.TrimSpace(alias.String) != "" {
			out[name] = append(out[name], alias.String)
		}
	}
	return out, rows.Err()
}

// ChunkURL derives the stable URL for a chunk (§4.2 step 5):
// "dart_report_{report_id}_chunk_{chunk_id}".
func ChunkURL(reportID, chunkID string) string {
	return "dart_report_" + reportID + "_chunk_" + chunkID
}

// EncodeVectorLiteral renders a float32 vector as pgvector's bracketed
// text literal, grounded on newser's store.encodeVectorLiteral.
func EncodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("retrieval: vector must not be empty")
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String(), nil
}
