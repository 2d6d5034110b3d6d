// Package sparql pulls death records from the Wikidata SPARQL endpoint,
// one time sub-window at a time.
package sparql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/willow/pkg/httpclient"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/retry"
	"github.com/Ramsey-B/willow/pkg/slicer"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// Adapter queries one SPARQL endpoint.
type Adapter struct {
	http     *httpclient.Client
	logger   ectologger.Logger
	endpoint string
	rowCap   int
}

func NewAdapter(http *httpclient.Client, logger ectologger.Logger, endpoint string, rowCap int) *Adapter {
	if rowCap <= 0 {
		rowCap = 2000
	}
	return &Adapter{
		http:     http,
		logger:   logger,
		endpoint: endpoint,
		rowCap:   rowCap,
	}
}

// RowCap returns the per-request row cap used for truncation detection.
func (a *Adapter) RowCap() int {
	return a.rowCap
}

// sparqlResponse is the standard SPARQL 1.1 JSON results envelope.
type sparqlResponse struct {
	Results struct {
		Bindings []map[string]struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

// FetchWindow fetches all death records inside the window. truncated is true
// when the row count hit the cap, meaning rows were probably lost.
func (a *Adapter) FetchWindow(ctx context.Context, w slicer.Window) (records []*models.RawRecord, truncated bool, err error) {
	ctx, span := tracing.StartSpan(ctx, "sparql.Adapter.FetchWindow")
	defer span.End()

	query := buildQuery(w.From, w.To, a.rowCap)
	form := url.Values{"query": {query}}

	resp, err := a.http.Get(ctx, a.endpoint+"?"+form.Encode(), map[string]string{
		"Accept": "application/sparql-results+json",
	})
	if err != nil {
		return nil, false, err
	}
	if err := httpclient.ClassifyStatus(resp); err != nil {
		return nil, false, err
	}

	var parsed sparqlResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, false, classifyBody(resp.Body, err)
	}

	rows := parsed.Results.Bindings
	byQID := make(map[string]*models.RawRecord, len(rows))
	order := make([]*models.RawRecord, 0, len(rows))
	for _, b := range rows {
		qid := qidFromURI(b["person"].Value)
		if qid == "" {
			continue
		}
		rec, ok := byQID[qid]
		if !ok {
			rec = &models.RawRecord{
				Source:     models.SourceWikidata,
				ExternalID: qid,
				Title:      b["personLabel"].Value,
			}
			byQID[qid] = rec
			order = append(order, rec)
		}
		if dod, ok := b["dod"]; ok && dod.Value != "" {
			rec.RawDates = append(rec.RawDates, dod.Value)
		}
		if coord, ok := b["coord"]; ok {
			if lat, lng, ok := parsePoint(coord.Value); ok {
				rec.DeathCoords = &models.Coordinates{Lat: lat, Lng: lng}
			}
		}
		if coord, ok := b["burialCoord"]; ok {
			if lat, lng, ok := parsePoint(coord.Value); ok {
				rec.BurialCoords = &models.Coordinates{Lat: lat, Lng: lng}
			}
		}
		if article, ok := b["article"]; ok && article.Value != "" {
			rec.URLs = append(rec.URLs, article.Value)
		}
		rec.URLs = append(rec.URLs, "https://www.wikidata.org/wiki/"+qid)
	}

	a.logger.WithContext(ctx).WithFields(map[string]any{
		"window":  w.Cursor(),
		"rows":    len(rows),
		"records": len(order),
	}).Info("Fetched SPARQL window")

	return order, len(rows) >= a.rowCap, nil
}

// classifyBody decides what a 200 with an unparseable body means. The
// endpoint is known to return HTML error pages and timeout text with a 200
// status; those are retryable. Anything else malformed is permanent.
func classifyBody(body []byte, parseErr error) error {
	sample := strings.ToLower(string(body[:min(len(body), 2048)]))
	switch {
	case strings.Contains(sample, "timeout") || strings.Contains(sample, "rate limit") || strings.Contains(sample, "too many requests"):
		return retry.RateLimited(fmt.Errorf("endpoint throttling inside 200 body: %w", parseErr), 0)
	case strings.Contains(sample, "<html"):
		return retry.Transient(fmt.Errorf("endpoint returned HTML instead of results: %w", parseErr))
	}
	return retry.Permanent(fmt.Errorf("unparseable results body: %w", parseErr))
}
