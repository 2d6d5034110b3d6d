// Package wiki looks up Wikidata cross-references and plain-text summaries
// for Wikipedia article titles.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/willow/pkg/httpclient"
	"github.com/Ramsey-B/willow/pkg/retry"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// Adapter talks to the action API (pageprops) and the REST summary endpoint.
type Adapter struct {
	http     *httpclient.Client
	logger   ectologger.Logger
	apiBase  string // e.g. https://en.wikipedia.org/w/api.php
	restBase string // e.g. https://en.wikipedia.org/api/rest_v1
}

func NewAdapter(http *httpclient.Client, logger ectologger.Logger, apiBase, restBase string) *Adapter {
	return &Adapter{
		http:     http,
		logger:   logger,
		apiBase:  apiBase,
		restBase: restBase,
	}
}

// CrossRef is the structured identity the action API knows for one article.
type CrossRef struct {
	PageID int64
	QID    string
}

type pagePropsResponse struct {
	Query struct {
		Pages map[string]struct {
			PageID    int64     `json:"pageid"`
			Title     string    `json:"title"`
			Missing   *struct{} `json:"missing,omitempty"`
			PageProps struct {
				WikibaseItem string `json:"wikibase_item"`
			} `json:"pageprops"`
		} `json:"pages"`
	} `json:"query"`
}

// LookupCrossRef resolves an article title to its page id and Wikidata QID.
// A title the wiki does not know returns (nil, nil): checked, nothing there.
func (a *Adapter) LookupCrossRef(ctx context.Context, title string) (*CrossRef, error) {
	ctx, span := tracing.StartSpan(ctx, "wiki.Adapter.LookupCrossRef")
	defer span.End()

	params := url.Values{
		"action": {"query"},
		"prop":   {"pageprops"},
		"ppprop": {"wikibase_item"},
		"titles": {title},
		"format": {"json"},
	}

	resp, err := a.http.Get(ctx, a.apiBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if err := httpclient.ClassifyStatus(resp); err != nil {
		return nil, err
	}

	var parsed pagePropsResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, retry.Permanent(fmt.Errorf("unparseable pageprops body: %w", err))
	}

	for _, page := range parsed.Query.Pages {
		if page.Missing != nil || page.PageID == 0 {
			continue
		}
		ref := &CrossRef{
			PageID: page.PageID,
			QID:    page.PageProps.WikibaseItem,
		}
		a.logger.WithContext(ctx).WithFields(map[string]any{
			"title":   title,
			"page_id": ref.PageID,
			"qid":     ref.QID,
		}).Debug("Resolved wiki cross-reference")
		return ref, nil
	}

	return nil, nil
}

type summaryResponse struct {
	Extract     string `json:"extract"`
	Coordinates *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coordinates"`
}

// Summary fetches the plain-text intro for an article. A 404 means the
// article does not exist and returns ("", nil).
func (a *Adapter) Summary(ctx context.Context, title string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "wiki.Adapter.Summary")
	defer span.End()

	resp, err := a.http.Get(ctx, a.restBase+"/page/summary/"+url.PathEscape(title), nil)
	if err != nil {
		return "", err
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if err := httpclient.ClassifyStatus(resp); err != nil {
		return "", err
	}

	var parsed summaryResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", retry.Permanent(fmt.Errorf("unparseable summary body: %w", err))
	}

	return parsed.Extract, nil
}
