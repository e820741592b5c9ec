// Package retriever coordinates one retrieval run: searching the
// upstream catalog and downloading each result's artifact.
package retriever

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scholarpipe/paper-retrieval-service/internal/domain"
	"github.com/scholarpipe/paper-retrieval-service/internal/observability"
	"github.com/scholarpipe/paper-retrieval-service/internal/papersource/semanticscholar"
)

// paperFields is the response field whitelist needed to build a PaperRecord.
var paperFields = []string{"title", "abstract", "year", "authors", "url", "paperId", "openAccessPdf"}

// SearchClient searches the upstream paper catalog.
type SearchClient interface {
	Search(ctx context.Context, params semanticscholar.SearchParams) (*semanticscholar.SearchResponse, error)
	Name() string
}

// ArtifactFetcher downloads one record's artifact, absorbing per-item
// failures.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, rec *domain.PaperRecord)
}

// Request describes one retrieval run.
type Request struct {
	// Keywords are the search terms. Each is percent-encoded and the
	// results joined with a literal "+" before being sent upstream.
	Keywords []string

	// StartDate is the inclusive lower publication-date bound. Only the
	// year is forwarded upstream. Nil means no lower bound.
	StartDate *time.Time

	// EndDate is the inclusive upper publication-date bound. Nil means
	// no upper bound.
	EndDate *time.Time

	// FieldsOfStudy optionally filters results by field of study.
	FieldsOfStudy []string

	// MaxPapers caps the number of papers retrieved.
	MaxPapers int
}

// Retriever turns a keyword list and date range into a batch of
// PaperRecords, owned by the caller for the duration of the run.
type Retriever struct {
	client  SearchClient
	fetcher ArtifactFetcher
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// New creates a Retriever from its collaborators.
func New(client SearchClient, fetcher ArtifactFetcher, logger zerolog.Logger, metrics *observability.Metrics) *Retriever {
	return &Retriever{
		client:  client,
		fetcher: fetcher,
		logger:  logger,
		metrics: metrics,
	}
}

// Retrieve searches the catalog and downloads each result's artifact.
//
// A terminal search failure is absorbed here: the cause is logged and an
// empty batch is returned, so a calling pipeline sees "nothing found or
// upstream unavailable" rather than an error. Individual artifact
// download failures never remove a record from the batch; the record is
// returned with an empty LocalFilePath instead.
//
// Records are returned in the order the upstream produced them. That
// order is suitable for display only and carries no further meaning.
func (r *Retriever) Retrieve(ctx context.Context, req Request) []domain.PaperRecord {
	query := BuildQuery(req.Keywords)
	log := observability.WithRunContext(r.logger, uuid.NewString())
	log = observability.WithSearchContext(log, query, r.client.Name())

	params := semanticscholar.SearchParams{
		Query:         query,
		FieldsOfStudy: req.FieldsOfStudy,
		Limit:         req.MaxPapers,
		Fields:        paperFields,
	}
	if req.StartDate != nil {
		params.StartYear = req.StartDate.Year()
	}
	if req.EndDate != nil {
		params.EndYear = req.EndDate.Year()
	}

	resp, err := r.client.Search(ctx, params)
	if err != nil {
		log.Error().Err(err).Msg("paper retrieval failed, returning empty batch")
		return nil
	}

	records := make([]domain.PaperRecord, 0, len(resp.Data))
	for _, result := range resp.Data {
		rec := toRecord(result)
		r.fetcher.Fetch(ctx, &rec)
		records = append(records, rec)
	}

	log.Info().
		Int("papers", len(records)).
		Int("total_matches", resp.Total).
		Msg("retrieval completed")
	if r.metrics != nil {
		r.metrics.PapersRetrieved.Add(float64(len(records)))
	}

	return records
}

// BuildQuery percent-encodes each keyword and joins them with a literal
// "+", preserving the separator semantics the upstream API applies.
func BuildQuery(keywords []string) string {
	encoded := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		encoded = append(encoded, url.QueryEscape(kw))
	}
	return strings.Join(encoded, "+")
}

// toRecord converts one upstream search result into a PaperRecord.
func toRecord(result semanticscholar.PaperResult) domain.PaperRecord {
	rec := domain.PaperRecord{
		ID:       result.PaperID,
		Title:    result.Title,
		Abstract: result.Abstract,
		Year:     result.Year,
		URL:      result.URL,
	}

	rec.Authors = make([]domain.Author, 0, len(result.Authors))
	for _, a := range result.Authors {
		rec.Authors = append(rec.Authors, domain.Author{Name: a.Name})
	}

	if result.OpenAccessPDF != nil {
		rec.OpenAccessPDFURL = result.OpenAccessPDF.URL
	}

	return rec
}
