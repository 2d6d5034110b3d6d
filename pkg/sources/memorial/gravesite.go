package memorial

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/Gobusters/ectologger"
	"golang.org/x/net/html"

	"github.com/Ramsey-B/willow/pkg/httpclient"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/retry"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

var (
	// Map links on memorial pages embed the plot coordinates as "q=lat,lng".
	mapCoordsPattern = regexp.MustCompile(`[?&]q=(-?\d{1,3}\.\d+),(-?\d{1,3}\.\d+)`)
	mapLinkPattern   = regexp.MustCompile(`(?i)(maps\.google\.|google\.[a-z.]+/maps)`)

	cemeteryPattern = regexp.MustCompile(`(?i)\b(cemetery|memorial park|mausoleum|columbarium)\b`)
)

// Gravesite scrapes a grave-directory site for burial locations. One page per
// subject, addressed by a slug derived from the subject's title.
type Gravesite struct {
	http    *httpclient.Client
	logger  ectologger.Logger
	baseURL string
}

func NewGravesite(http *httpclient.Client, logger ectologger.Logger, baseURL string) *Gravesite {
	return &Gravesite{
		http:    http,
		logger:  logger,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Burial is what one memorial page yields.
type Burial struct {
	Coords  *models.Coordinates
	Address string
}

// FetchBurial scrapes the memorial page for a subject. A missing page or a
// page with no extractable location returns (nil, nil): checked, nothing
// found. The caller records the sentinel.
func (g *Gravesite) FetchBurial(ctx context.Context, title string) (*Burial, error) {
	ctx, span := tracing.StartSpan(ctx, "memorial.Gravesite.FetchBurial")
	defer span.End()

	resp, err := g.http.Get(ctx, g.baseURL+"/memorials/"+slug(title), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := httpclient.ClassifyStatus(resp); err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("unparseable memorial markup: %w", err))
	}

	burial := &Burial{}
	for _, link := range anchors(doc, mapLinkPattern) {
		if m := mapCoordsPattern.FindStringSubmatch(link); m != nil {
			lat, latErr := strconv.ParseFloat(m[1], 64)
			lng, lngErr := strconv.ParseFloat(m[2], 64)
			if latErr == nil && lngErr == nil {
				burial.Coords = &models.Coordinates{Lat: lat, Lng: lng}
				break
			}
		}
	}

	for _, line := range renderLines(doc) {
		if cemeteryPattern.MatchString(line) && len(line) < 120 {
			burial.Address = line
			break
		}
	}

	if burial.Coords == nil && burial.Address == "" {
		return nil, nil
	}

	g.logger.WithContext(ctx).WithFields(map[string]any{
		"title":      title,
		"has_coords": burial.Coords != nil,
		"address":    burial.Address,
	}).Debug("Scraped memorial page")
	return burial, nil
}

func slug(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = nonTokenPattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
