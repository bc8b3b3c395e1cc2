package source

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/acquisition-cli/internal/config"
	"github.com/sells-group/acquisition-cli/internal/model"
)

// Selector keys a ScraperConfig must provide. "item" scopes one search
// result; the rest are resolved relative to it. "next" is optional and
// drives pagination.
const (
	selItem        = "item"
	selTitle       = "title"
	selURL         = "url"
	selPrice       = "price"
	selLocation    = "location"
	selDescription = "description"
	selReason      = "reason"
	selNext        = "next"
)

// ScrapeSource scrapes a platform's search results with colly. Selectors
// come from configuration so platform markup changes are a config edit, not
// a code change.
type ScrapeSource struct {
	cfg      config.ScraperConfig
	platform model.Platform
}

// NewScrapeSource creates a scraper-backed source.
func NewScrapeSource(cfg config.ScraperConfig) *ScrapeSource {
	return &ScrapeSource{
		cfg:      cfg,
		platform: model.Platform(strings.ToLower(cfg.Platform)),
	}
}

// Platform implements Source.
func (s *ScrapeSource) Platform() model.Platform { return s.platform }

// Fetch implements Source.
func (s *ScrapeSource) Fetch(ctx context.Context) ([]model.RawListing, error) {
	itemSel := s.cfg.Selectors[selItem]
	if itemSel == "" {
		return nil, eris.Errorf("source: scraper %s has no item selector", s.cfg.Platform)
	}

	c := colly.NewCollector(
		colly.UserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"),
		colly.StdlibContext(ctx),
	)
	if s.cfg.DelayMS > 0 {
		if err := c.Limit(&colly.LimitRule{
			DomainGlob: "*",
			Delay:      time.Duration(s.cfg.DelayMS) * time.Millisecond,
		}); err != nil {
			return nil, eris.Wrap(err, "source: scraper limit rule")
		}
	}

	var raws []model.RawListing
	var scrapeErr error
	pages := 0

	c.OnHTML(itemSel, func(e *colly.HTMLElement) {
		listingURL := e.Request.AbsoluteURL(e.ChildAttr(s.cfg.Selectors[selURL], "href"))
		fields := map[string]any{
			"title":           strings.TrimSpace(e.ChildText(s.cfg.Selectors[selTitle])),
			"listing_url":     listingURL,
			"price":           strings.TrimSpace(e.ChildText(s.cfg.Selectors[selPrice])),
			"location":        strings.TrimSpace(e.ChildText(s.cfg.Selectors[selLocation])),
			"description":     strings.TrimSpace(e.ChildText(s.cfg.Selectors[selDescription])),
			"reason_for_sale": strings.TrimSpace(e.ChildText(s.cfg.Selectors[selReason])),
		}
		raws = append(raws, model.RawListing{
			Platform: s.platform,
			NativeID: listingID(listingURL),
			Fields:   fields,
		})
	})

	if nextSel := s.cfg.Selectors[selNext]; nextSel != "" {
		c.OnHTML(nextSel, func(e *colly.HTMLElement) {
			maxPages := s.cfg.MaxPages
			if maxPages <= 0 {
				maxPages = 1
			}
			pages++
			if pages >= maxPages {
				return
			}
			next := e.Request.AbsoluteURL(e.Attr("href"))
			if next != "" {
				var alreadyVisited *colly.AlreadyVisitedError
				if err := e.Request.Visit(next); err != nil && !eris.As(err, &alreadyVisited) {
					zap.L().Debug("pagination visit failed",
						zap.String("platform", s.cfg.Platform),
						zap.String("url", next),
						zap.Error(err),
					)
				}
			}
		})
	}

	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = eris.Wrapf(err, "source: scrape %s status %d", s.cfg.Platform, r.StatusCode)
	})

	if err := c.Visit(s.cfg.SearchURL); err != nil {
		return nil, eris.Wrapf(err, "source: scrape %s visit", s.cfg.Platform)
	}
	c.Wait()

	if scrapeErr != nil && len(raws) == 0 {
		return nil, scrapeErr
	}

	zap.L().Info("scraped listings",
		zap.String("platform", s.cfg.Platform),
		zap.Int("count", len(raws)),
	)
	return raws, nil
}

// listingID derives a platform-native identifier from the listing URL path.
// The trailing path segment is the listing slug on every supported platform.
func listingID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return rawURL
	}
	return segments[len(segments)-1]
}
