package index

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarpipe/paper-retrieval-service/internal/papersource/semanticscholar"
	"github.com/scholarpipe/paper-retrieval-service/internal/pdf"
	"github.com/scholarpipe/paper-retrieval-service/internal/retriever"
	"github.com/scholarpipe/paper-retrieval-service/internal/vectorstore"
)

// Exercises the full retrieve-merge-query pipeline against fake
// upstreams: a catalog serving two papers, one with a downloadable
// artifact and one whose artifact link is dead.
func TestRetrieveMergeQueryPipeline(t *testing.T) {
	ctx := context.Background()

	pdfServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 graph survey"))
	}))
	defer pdfServer.Close()

	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/paper/search", r.URL.Path)
		assert.Contains(t, r.URL.RawQuery, "query=graph+neural+networks")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"total": 2,
			"data": [
				{
					"paperId": "A1",
					"title": "Graph Surveys",
					"abstract": "graph neural networks for traffic",
					"year": 2021,
					"authors": [{"name": "Jane Doe"}],
					"url": "https://s2.org/A1",
					"openAccessPdf": {"url": "` + pdfServer.URL + `/a1.pdf"}
				},
				{
					"paperId": "A2",
					"title": "Protein Models",
					"abstract": "protein folding with deep learning",
					"year": 2022,
					"authors": [{"name": "John Smith"}],
					"url": "https://s2.org/A2",
					"openAccessPdf": {"url": "http://127.0.0.1:1/dead.pdf"}
				}
			]
		}`))
	}))
	defer catalog.Close()

	client := semanticscholar.NewClient(semanticscholar.Config{
		BaseURL:    catalog.URL,
		MaxRetries: 1,
	}, zerolog.Nop(), nil, nil)

	downloader, err := pdf.NewDownloader(pdf.Config{Dir: t.TempDir()}, zerolog.Nop(), nil)
	require.NoError(t, err)

	r := retriever.New(client, downloader, zerolog.Nop(), nil)
	records := r.Retrieve(ctx, retriever.Request{
		Keywords:  []string{"graph", "neural", "networks"},
		MaxPapers: 10,
	})
	require.Len(t, records, 2)
	assert.NotEmpty(t, records[0].LocalFilePath)
	assert.Empty(t, records[1].LocalFilePath)

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"graph neural networks for traffic":  {1, 0},
		"protein folding with deep learning": {0, 1},
		"traffic prediction":                 {0.9, 0.1},
	}}
	ix := New(embedder, zerolog.Nop(), nil)

	storeDir := t.TempDir()
	added, err := ix.Merge(ctx, storeDir, records, ModeAppend)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	store, err := vectorstore.Open(storeDir)
	require.NoError(t, err)
	ids, err := store.ListIDs(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.ElementsMatch(t, []string{"paper_A1", "paper_A2"}, ids)

	// The dead artifact link kept A2 out of the filesystem but not out
	// of the index.
	hits, err := ix.Query(ctx, storeDir, "traffic prediction", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "A1", hits[0].Metadata.PaperID)
	assert.Equal(t, "Graph Surveys", hits[0].Metadata.Title)
	assert.Equal(t, "Graph Surveys.pdf", filepath.Base(hits[0].Metadata.LocalFilePath))

	// A repeated run against the same store adds nothing new.
	added, err = ix.Merge(ctx, storeDir, records, ModeAppend)
	require.NoError(t, err)
	assert.Zero(t, added)
}
