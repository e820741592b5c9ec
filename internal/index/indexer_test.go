package index

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarpipe/paper-retrieval-service/internal/domain"
)

// fakeEmbedder returns preassigned vectors per text and counts batch
// calls.
type fakeEmbedder struct {
	vectors    map[string][]float32
	batchCalls int
}

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	return []float32{1, 1}
}

func (f *fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return f.vectorFor(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.batchCalls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectorFor(t)
	}
	return out, nil
}

func newIndexer(embedder *fakeEmbedder) *Indexer {
	return New(embedder, zerolog.Nop(), nil)
}

func record(id, abstract string) domain.PaperRecord {
	return domain.PaperRecord{
		ID:       id,
		Title:    "Paper " + id,
		Abstract: abstract,
		Year:     2022,
		Authors:  []domain.Author{{Name: "Jane Doe"}},
		URL:      "https://example.org/" + id,
	}
}

func TestEntryID(t *testing.T) {
	assert.Equal(t, "paper_abc123", EntryID("abc123"))
}

func TestIndexer_Merge(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a store and adds eligible records", func(t *testing.T) {
		dir := t.TempDir()
		ix := newIndexer(&fakeEmbedder{})

		added, err := ix.Merge(ctx, dir, []domain.PaperRecord{
			record("a1", "first abstract"),
			record("a2", "second abstract"),
		}, ModeAppend)
		require.NoError(t, err)
		assert.Equal(t, 2, added)

		hits, err := ix.Query(ctx, dir, "anything", 10)
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})

	t.Run("re-merging the same batch is a no-op", func(t *testing.T) {
		dir := t.TempDir()
		embedder := &fakeEmbedder{}
		ix := newIndexer(embedder)
		batch := []domain.PaperRecord{record("a1", "first"), record("a2", "second")}

		added, err := ix.Merge(ctx, dir, batch, ModeAppend)
		require.NoError(t, err)
		require.Equal(t, 2, added)

		added, err = ix.Merge(ctx, dir, batch, ModeAppend)
		require.NoError(t, err)
		assert.Zero(t, added)

		// The second merge staged nothing, so nothing was embedded.
		assert.Equal(t, 1, embedder.batchCalls)
	})

	t.Run("append keeps prior entries and adds new ones", func(t *testing.T) {
		dir := t.TempDir()
		ix := newIndexer(&fakeEmbedder{})

		_, err := ix.Merge(ctx, dir, []domain.PaperRecord{record("a1", "first")}, ModeAppend)
		require.NoError(t, err)

		added, err := ix.Merge(ctx, dir, []domain.PaperRecord{
			record("a1", "first"),
			record("a3", "third"),
		}, ModeAppend)
		require.NoError(t, err)
		assert.Equal(t, 1, added)

		hits, err := ix.Query(ctx, dir, "anything", 10)
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})

	t.Run("replace discards the existing store", func(t *testing.T) {
		dir := t.TempDir()
		ix := newIndexer(&fakeEmbedder{})

		_, err := ix.Merge(ctx, dir, []domain.PaperRecord{record("old", "stale")}, ModeAppend)
		require.NoError(t, err)

		added, err := ix.Merge(ctx, dir, []domain.PaperRecord{record("new", "fresh")}, ModeReplace)
		require.NoError(t, err)
		assert.Equal(t, 1, added)

		hits, err := ix.Query(ctx, dir, "anything", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "new", hits[0].Metadata.PaperID)
	})

	t.Run("ineligible records are skipped", func(t *testing.T) {
		dir := t.TempDir()
		ix := newIndexer(&fakeEmbedder{})

		noAbstract := record("a1", "")
		noID := record("", "orphan abstract")
		added, err := ix.Merge(ctx, dir, []domain.PaperRecord{
			noAbstract,
			noID,
			record("a2", "kept"),
		}, ModeAppend)
		require.NoError(t, err)
		assert.Equal(t, 1, added)
	})

	t.Run("within-batch duplicate keeps the first record", func(t *testing.T) {
		dir := t.TempDir()
		ix := newIndexer(&fakeEmbedder{})

		first := record("a1", "first version")
		second := record("a1", "second version")
		second.Title = "Different Title"

		added, err := ix.Merge(ctx, dir, []domain.PaperRecord{first, second}, ModeAppend)
		require.NoError(t, err)
		assert.Equal(t, 1, added)

		hits, err := ix.Query(ctx, dir, "anything", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "first version", hits[0].Content)
		assert.Equal(t, "Paper a1", hits[0].Metadata.Title)
	})

	t.Run("all-duplicate batch embeds nothing", func(t *testing.T) {
		dir := t.TempDir()
		embedder := &fakeEmbedder{}
		ix := newIndexer(embedder)

		_, err := ix.Merge(ctx, dir, []domain.PaperRecord{record("a1", "only")}, ModeAppend)
		require.NoError(t, err)
		require.Equal(t, 1, embedder.batchCalls)

		added, err := ix.Merge(ctx, dir, []domain.PaperRecord{record("a1", "only")}, ModeAppend)
		require.NoError(t, err)
		assert.Zero(t, added)
		assert.Equal(t, 1, embedder.batchCalls)
	})

	t.Run("empty batch creates the store in replace mode", func(t *testing.T) {
		dir := t.TempDir()
		ix := newIndexer(&fakeEmbedder{})

		added, err := ix.Merge(ctx, dir, nil, ModeReplace)
		require.NoError(t, err)
		assert.Zero(t, added)

		hits, err := ix.Query(ctx, dir, "anything", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestIndexer_Query(t *testing.T) {
	ctx := context.Background()

	t.Run("missing store yields empty result", func(t *testing.T) {
		ix := newIndexer(&fakeEmbedder{})

		hits, err := ix.Query(ctx, t.TempDir(), "anything", 5)
		require.NoError(t, err)
		assert.Nil(t, hits)
	})

	t.Run("orders hits by similarity and carries metadata", func(t *testing.T) {
		dir := t.TempDir()
		embedder := &fakeEmbedder{vectors: map[string][]float32{
			"traffic forecasting with graphs": {1, 0},
			"protein folding structures":      {0, 1},
			"urban traffic flow prediction":   {0.9, 0.1},
		}}
		ix := newIndexer(embedder)

		near := record("t1", "traffic forecasting with graphs")
		near.LocalFilePath = "/downloads/t1.pdf"
		_, err := ix.Merge(ctx, dir, []domain.PaperRecord{
			near,
			record("p1", "protein folding structures"),
			record("t2", "urban traffic flow prediction"),
		}, ModeAppend)
		require.NoError(t, err)

		embedder.vectors["traffic"] = []float32{1, 0}
		hits, err := ix.Query(ctx, dir, "traffic", 2)
		require.NoError(t, err)
		require.Len(t, hits, 2)

		assert.Equal(t, "t1", hits[0].Metadata.PaperID)
		assert.Equal(t, "Paper t1", hits[0].Metadata.Title)
		assert.Equal(t, "Jane Doe", hits[0].Metadata.Authors)
		assert.Equal(t, 2022, hits[0].Metadata.Year)
		assert.Equal(t, "/downloads/t1.pdf", hits[0].Metadata.LocalFilePath)
		assert.Equal(t, "traffic forecasting with graphs", hits[0].Content)

		assert.Equal(t, "t2", hits[1].Metadata.PaperID)
		assert.Greater(t, hits[0].Score, hits[1].Score)
	})
}
