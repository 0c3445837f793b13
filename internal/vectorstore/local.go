package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"rag-pipeline/internal/contextutil"
)

// LocalPersistFile is the file name of the local store inside its persist directory.
const LocalPersistFile = "vectors.db"

// ErrDimensionMismatch is returned when a vector does not match its collection's size.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

type localRecord struct {
	vec  []float32
	text string
	meta map[string]any
}

type localCollection struct {
	dimension int
	order     []string
	records   map[string]localRecord
}

func newLocalCollection(dimension int) *localCollection {
	return &localCollection{
		dimension: dimension,
		records:   make(map[string]localRecord),
	}
}

func (c *localCollection) put(id string, rec localRecord) {
	if _, ok := c.records[id]; !ok {
		c.order = append(c.order, id)
	}
	c.records[id] = rec
}

func (c *localCollection) remove(ids []string) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := c.records[id]; ok {
			drop[id] = struct{}{}
			delete(c.records, id)
		}
	}
	if len(drop) == 0 {
		return
	}
	kept := c.order[:0]
	for _, id := range c.order {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	c.order = kept
}

// LocalStore is an in-process VectorStore using brute-force squared Euclidean distance.
// When opened with a persist directory every write is also stored in a sqlite file
// and the file is reloaded on open.
type LocalStore struct {
	mu          sync.RWMutex
	collections map[string]*localCollection
	db          *sql.DB
}

// NewLocalStore creates a LocalStore. An empty persistDir keeps everything in memory.
func NewLocalStore(persistDir string) (*LocalStore, error) {
	s := &LocalStore{collections: make(map[string]*localCollection)}
	if persistDir == "" {
		return s, nil
	}

	if err := os.MkdirAll(persistDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create persist directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.Join(persistDir, LocalPersistFile))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrateLocal(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.db = db

	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func migrateLocal(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			dimension INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS vectors (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			vector BLOB NOT NULL,
			text TEXT NOT NULL,
			meta TEXT NOT NULL,
			UNIQUE(collection, id)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate vector database: %w", err)
		}
	}
	return nil
}

func (s *LocalStore) load() error {
	rows, err := s.db.Query("SELECT name, dimension FROM collections")
	if err != nil {
		return fmt.Errorf("failed to load collections: %w", err)
	}
	for rows.Next() {
		var (
			name      string
			dimension int
		)
		if err := rows.Scan(&name, &dimension); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan collection: %w", err)
		}
		s.collections[name] = newLocalCollection(dimension)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}

	rows, err = s.db.Query("SELECT collection, id, vector, text, meta FROM vectors ORDER BY seq")
	if err != nil {
		return fmt.Errorf("failed to load vectors: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var (
			collection, id, text, rawMeta string
			blob                          []byte
		)
		if err := rows.Scan(&collection, &id, &blob, &text, &rawMeta); err != nil {
			return fmt.Errorf("failed to scan vector: %w", err)
		}
		meta, err := decodeMeta(rawMeta)
		if err != nil {
			return fmt.Errorf("failed to decode metadata of %s: %w", id, err)
		}
		vec := decodeVector(blob)

		col, ok := s.collections[collection]
		if !ok {
			col = newLocalCollection(len(vec))
			s.collections[collection] = col
		}
		col.put(id, localRecord{vec: vec, text: text, meta: meta})
	}

	return rows.Err()
}

// EnsureCollection creates the collection if needed and validates its vector size.
func (s *LocalStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	if vectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", vectorSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[collection]; ok {
		if col.dimension != vectorSize {
			return fmt.Errorf("%w: collection %s has size %d, expected %d", ErrDimensionMismatch, collection, col.dimension, vectorSize)
		}
		logger.InfoContext(ctx, "collection validated", "collection", collection, "vector_size", vectorSize)
		return nil
	}

	if s.db != nil {
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO collections (name, dimension) VALUES (?, ?)", collection, vectorSize,
		); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}
	s.collections[collection] = newLocalCollection(vectorSize)
	logger.InfoContext(ctx, "collection created", "collection", collection, "vector_size", vectorSize)
	return nil
}

// CollectionExists reports whether the collection has been created.
func (s *LocalStore) CollectionExists(_ context.Context, collection string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[collection]
	return ok, nil
}

// Upsert inserts or updates points. A collection that does not exist yet takes the
// size of the first vector written to it.
func (s *LocalStore) Upsert(ctx context.Context, collection string, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	records := make([]localRecord, len(points))
	for i, p := range points {
		if p.ID == "" {
			return fmt.Errorf("point %d has no id", i)
		}
		meta, err := normalizeMeta(p.Meta)
		if err != nil {
			return fmt.Errorf("point %s: %w", p.ID, err)
		}
		vec := make([]float32, len(p.Vec))
		copy(vec, p.Vec)
		records[i] = localRecord{vec: vec, text: p.Text, meta: meta}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, exists := s.collections[collection]
	dimension := len(records[0].vec)
	if exists {
		dimension = col.dimension
	}
	for i, rec := range records {
		if len(rec.vec) != dimension {
			return fmt.Errorf("%w: point %s has size %d, expected %d", ErrDimensionMismatch, points[i].ID, len(rec.vec), dimension)
		}
	}

	if s.db != nil {
		if err := s.persistUpsert(ctx, collection, dimension, !exists, points, records); err != nil {
			logger.ErrorContext(ctx, "failed to persist points", "collection", collection, "count", len(points), "error", err)
			return err
		}
	}

	if !exists {
		col = newLocalCollection(dimension)
		s.collections[collection] = col
	}
	for i, rec := range records {
		col.put(points[i].ID, rec)
	}

	logger.DebugContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

func (s *LocalStore) persistUpsert(ctx context.Context, collection string, dimension int, create bool, points []Point, records []localRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if create {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO collections (name, dimension) VALUES (?, ?)", collection, dimension,
		); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (collection, id, vector, text, meta) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET vector = excluded.vector, text = excluded.text, meta = excluded.meta`)
	if err != nil {
		return fmt.Errorf("failed to prepare vector upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for i, rec := range records {
		rawMeta, err := json.Marshal(rec.meta)
		if err != nil {
			return fmt.Errorf("failed to encode metadata of %s: %w", points[i].ID, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, points[i].ID, encodeVector(rec.vec), rec.text, string(rawMeta)); err != nil {
			return fmt.Errorf("failed to upsert vector %s: %w", points[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vectors: %w", err)
	}
	return nil
}

// Search returns up to k points closest to query by squared Euclidean distance.
// Ties keep insertion order.
func (s *LocalStore) Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	if err := ValidateFilters(filters); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[collection]
	if !ok {
		return []SearchResult{}, nil
	}
	if len(query) != col.dimension {
		return nil, fmt.Errorf("%w: query has size %d, expected %d", ErrDimensionMismatch, len(query), col.dimension)
	}

	results := make([]SearchResult, 0, len(col.order))
	for _, id := range col.order {
		rec := col.records[id]
		if len(filters) > 0 && !Matches(rec.meta, filters) {
			continue
		}
		results = append(results, SearchResult{
			ID:    id,
			Text:  rec.text,
			Score: squaredL2(query, rec.vec),
			Meta:  copyMeta(rec.meta),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score < results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}

	logger.DebugContext(ctx, "search completed", "collection", collection, "k", k, "results", len(results))
	return results, nil
}

// Delete removes points by their IDs.
func (s *LocalStore) Delete(ctx context.Context, collection string, ids []string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		args := make([]any, 0, len(ids)+1)
		args = append(args, collection)
		for _, id := range ids {
			args = append(args, id)
		}
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM vectors WHERE collection = ? AND id IN ("+placeholders+")", args...,
		); err != nil {
			logger.ErrorContext(ctx, "failed to delete points", "collection", collection, "count", len(ids), "error", err)
			return fmt.Errorf("failed to delete points: %w", err)
		}
	}

	if col, ok := s.collections[collection]; ok {
		col.remove(ids)
	}

	logger.DebugContext(ctx, "deleted points", "collection", collection, "count", len(ids))
	return nil
}

// Count returns the number of points in the collection.
func (s *LocalStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if col, ok := s.collections[collection]; ok {
		return len(col.records)
	}
	return 0
}

// Close closes the persistence file, if any.
func (s *LocalStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func squaredL2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}

func copyMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if list, ok := v.([]any); ok {
			v = append([]any(nil), list...)
		}
		out[k] = v
	}
	return out
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}

// decodeMeta restores metadata written by json.Marshal, keeping integers as int64.
func decodeMeta(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var meta map[string]any
	if err := dec.Decode(&meta); err != nil {
		return nil, err
	}
	for k, v := range meta {
		meta[k] = fromJSONValue(v)
	}
	if meta == nil {
		meta = make(map[string]any)
	}
	return meta, nil
}

func fromJSONValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, _ := val.Float64()
		return f
	case []any:
		for i, item := range val {
			val[i] = fromJSONValue(item)
		}
		return val
	default:
		return v
	}
}
