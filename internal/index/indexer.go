// Package index maintains the incremental similarity index over
// retrieved papers: merging new batches into a persistent store and
// answering similarity queries against it.
package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/scholarpipe/paper-retrieval-service/internal/domain"
	"github.com/scholarpipe/paper-retrieval-service/internal/llm"
	"github.com/scholarpipe/paper-retrieval-service/internal/observability"
	"github.com/scholarpipe/paper-retrieval-service/internal/vectorstore"
)

// entryIDPrefix namespaces paper-derived entries within the store.
const entryIDPrefix = "paper_"

// Skip reasons for the records-skipped metric.
const (
	skipDuplicate  = "duplicate"
	skipIneligible = "ineligible"
)

// Mode selects how Merge treats an existing store.
type Mode string

const (
	// ModeAppend merges into the existing store, keeping prior entries.
	ModeAppend Mode = "append"

	// ModeReplace discards the existing store and starts fresh.
	ModeReplace Mode = "replace"
)

// EntryID returns the store entry ID for an upstream paper ID.
func EntryID(paperID string) string {
	return entryIDPrefix + paperID
}

// Metadata is the structured payload stored alongside each entry and
// returned with query hits.
type Metadata struct {
	Title         string `json:"title"`
	Authors       string `json:"authors"`
	Year          int    `json:"year"`
	URL           string `json:"url,omitempty"`
	PaperID       string `json:"paper_id"`
	LocalFilePath string `json:"local_file_path,omitempty"`
}

// Hit is one similarity query result.
type Hit struct {
	// Content is the text that was embedded, the paper abstract.
	Content string

	// Metadata identifies the paper the content came from.
	Metadata Metadata

	// Score is the cosine similarity to the query, higher is closer.
	Score float64
}

// Indexer merges retrieved paper batches into a persistent vector store
// and queries it. The store location is passed per call, so one Indexer
// can serve any number of stores; each store assumes a single writer.
type Indexer struct {
	embedder llm.Embedder
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// New creates an Indexer.
func New(embedder llm.Embedder, logger zerolog.Logger, metrics *observability.Metrics) *Indexer {
	return &Indexer{
		embedder: embedder,
		logger:   logger,
		metrics:  metrics,
	}
}

// Merge folds a batch of records into the store at dir and returns the
// number of entries added.
//
// In append mode an existing store is extended; entries whose paper ID
// is already present are skipped, so re-merging the same batch is a
// no-op. In replace mode, or when no store exists yet, a fresh store is
// created. Records without an ID or abstract are skipped. When two
// records in the batch share an ID the first wins.
//
// The whole batch is embedded in one call and written in one store
// mutation, so a failed merge leaves the store as it was.
func (ix *Indexer) Merge(ctx context.Context, dir string, records []domain.PaperRecord, mode Mode) (int, error) {
	log := observability.WithStoreContext(ix.logger, dir)

	var (
		store *vectorstore.Store
		err   error
	)
	if mode == ModeReplace || !vectorstore.Exists(dir) {
		store, err = vectorstore.Create(dir)
	} else {
		store, err = vectorstore.Open(dir)
	}
	if err != nil {
		return 0, err
	}
	defer store.Close()

	seen := make(map[string]bool)
	existing, err := store.ListIDs(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range existing {
		seen[id] = true
	}

	var (
		texts   []string
		staged  []vectorstore.Entry
		skipped int
	)
	for i := range records {
		rec := &records[i]
		if !rec.Indexable() {
			ix.skip(log, skipIneligible, rec)
			skipped++
			continue
		}
		id := EntryID(rec.ID)
		if seen[id] {
			ix.skip(log, skipDuplicate, rec)
			skipped++
			continue
		}
		seen[id] = true

		meta, err := json.Marshal(Metadata{
			Title:         rec.Title,
			Authors:       rec.AuthorNames(),
			Year:          rec.Year,
			URL:           rec.URL,
			PaperID:       rec.ID,
			LocalFilePath: rec.LocalFilePath,
		})
		if err != nil {
			return 0, fmt.Errorf("encoding entry metadata for %s: %w", rec.ID, err)
		}

		texts = append(texts, rec.Abstract)
		staged = append(staged, vectorstore.Entry{ID: id, Text: rec.Abstract, Metadata: meta})
	}

	if len(staged) == 0 {
		log.Info().Int("skipped", skipped).Msg("merge staged no new entries")
		return 0, nil
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding %d abstracts: %w", len(texts), err)
	}
	for i := range staged {
		staged[i].Vector = vectors[i]
	}

	if err := store.Add(ctx, staged); err != nil {
		return 0, err
	}

	log.Info().
		Int("added", len(staged)).
		Int("skipped", skipped).
		Str("mode", string(mode)).
		Msg("merge completed")
	if ix.metrics != nil {
		ix.metrics.IndexEntriesAdded.Add(float64(len(staged)))
	}

	return len(staged), nil
}

func (ix *Indexer) skip(log zerolog.Logger, reason string, rec *domain.PaperRecord) {
	log.Debug().
		Str("paper_id", rec.ID).
		Str("reason", reason).
		Msg("record skipped during merge")
	if ix.metrics != nil {
		ix.metrics.IndexRecordsSkipped.WithLabelValues(reason).Inc()
	}
}

// Query embeds the query text and returns the topN most similar entries
// from the store at dir, most similar first. A missing store is an
// empty result, not an error.
func (ix *Indexer) Query(ctx context.Context, dir, query string, topN int) ([]Hit, error) {
	if !vectorstore.Exists(dir) {
		return nil, nil
	}

	store, err := vectorstore.Open(dir)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	vector, err := ix.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	raw, err := store.Nearest(ctx, vector, topN)
	if err != nil {
		return nil, err
	}
	if ix.metrics != nil {
		ix.metrics.IndexQueries.Inc()
	}

	hits := make([]Hit, 0, len(raw))
	for _, h := range raw {
		hit := Hit{Content: h.Text, Score: h.Score}
		if len(h.Metadata) > 0 {
			if err := json.Unmarshal(h.Metadata, &hit.Metadata); err != nil {
				return nil, fmt.Errorf("decoding entry metadata for %s: %w", h.ID, err)
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
