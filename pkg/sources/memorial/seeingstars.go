package memorial

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Gobusters/ectologger"
	"golang.org/x/net/html"

	"github.com/Ramsey-B/willow/pkg/httpclient"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/retry"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// decadePages are the site's per-decade index pages, newest first.
var decadePages = []string{
	"/Died/2010s.shtml",
	"/Died/2000s.shtml",
	"/Died/90s.shtml",
	"/Died/80s.shtml",
	"/Died/70s.shtml",
	"/Died/60s.shtml",
	"/Died/50s_20s.shtml",
}

const monthPattern = `(Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)`

var (
	// A line is an entry when it contains a month-name date, a slash date or a
	// bare plausible year.
	datePattern = regexp.MustCompile(`(?i)(` + monthPattern + `\s+\d{1,2},\s+\d{4})|(\d{1,2}/\d{1,2}/\d{2,4})|\b(19\d{2}|20\d{2})\b`)

	wikiLinkPattern = regexp.MustCompile(`(?i)wikipedia\.org/wiki/`)

	// Name sits before the first dash or opening bracket.
	nameSplitPattern = regexp.MustCompile("[-–—(\\[]")

	nonTokenPattern = regexp.MustCompile(`[^a-z0-9]+`)
)

// SeeingStars scrapes the seeing-stars memorial directory's decade pages.
type SeeingStars struct {
	http    *httpclient.Client
	logger  ectologger.Logger
	baseURL string
}

func NewSeeingStars(http *httpclient.Client, logger ectologger.Logger, baseURL string) *SeeingStars {
	return &SeeingStars{
		http:    http,
		logger:  logger,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// DecadePages returns the page paths to scrape, newest first.
func (s *SeeingStars) DecadePages() []string {
	return decadePages
}

// FetchDecade scrapes one decade index page into raw records. Lines without a
// recognizable date pattern are ignored; a page with markup but no entries is
// a permanent error, not a retry.
func (s *SeeingStars) FetchDecade(ctx context.Context, page string) ([]*models.RawRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "memorial.SeeingStars.FetchDecade")
	defer span.End()

	resp, err := s.http.Get(ctx, s.baseURL+page, nil)
	if err != nil {
		return nil, err
	}
	if err := httpclient.ClassifyStatus(resp); err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("unparseable page markup: %w", err))
	}

	wikiLinks := anchors(doc, wikiLinkPattern)

	var records []*models.RawRecord
	for _, line := range renderLines(doc) {
		if len(line) < 10 || !datePattern.MatchString(line) {
			continue
		}

		name := clean(nameSplitPattern.Split(line, 2)[0])
		if name == "" {
			continue
		}

		rec := &models.RawRecord{
			Source:   models.SourceSeeingStars,
			Title:    name,
			RawDates: []string{datePattern.FindString(line)},
			Summary:  line,
			URLs:     []string{s.baseURL + page},
		}
		if wiki := matchWikiLink(name, wikiLinks); wiki != "" {
			rec.URL = wiki
		}
		records = append(records, rec)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"page":    page,
		"records": len(records),
	}).Info("Scraped decade page")

	if len(records) == 0 {
		return nil, retry.Permanent(fmt.Errorf("page %s had no recognizable entries", page))
	}
	return records, nil
}

// matchWikiLink attaches a harvested Wikipedia link when its path contains
// the entry name as a token. Loose by design of the source markup: the link
// and the entry line are not structurally associated.
func matchWikiLink(name string, links []string) string {
	token := strings.Trim(nonTokenPattern.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if token == "" {
		return ""
	}
	for _, link := range links {
		if strings.Contains(strings.ToLower(link), token) {
			return link
		}
	}
	return ""
}
