package fetcher

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/verte-zerg/tiertrain/internal/model"
)

var errMalformed = errors.New("malformed listing")

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

var imageHosts = map[string]struct{}{
	"i.redd.it":   {},
	"i.imgur.com": {},
}

type page struct {
	items []model.ContentItem
	after string
}

// parsePage decodes one listing page, keeping items tagged for tier that
// resolve to a direct image URL.
func parsePage(body []byte, match *regexp.Regexp) (page, error) {
	if !gjson.ValidBytes(body) {
		return page{}, errMalformed
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return page{}, fmt.Errorf("%w: missing data", errMalformed)
	}
	var p page
	data.Get("children").ForEach(func(_, child gjson.Result) bool {
		d := child.Get("data")
		tag := d.Get("link_flair_text").String()
		if !match.MatchString(tag) {
			return true
		}
		u := imageURL(d)
		if u == "" {
			return true
		}
		p.items = append(p.items, model.ContentItem{
			URL:       u,
			Title:     d.Get("title").String(),
			Thumbnail: d.Get("thumbnail").String(),
			Tag:       tag,
			Flagged:   d.Get("over_18").Bool(),
		})
		return true
	})
	p.after = data.Get("after").String()
	return p, nil
}

// imageURL prefers the override URL, then the primary URL, when allowlisted;
// otherwise the first preview source.
func imageURL(d gjson.Result) string {
	candidate := d.Get("url_overridden_by_dest").String()
	if candidate == "" {
		candidate = d.Get("url").String()
	}
	if isImageURL(candidate) {
		return candidate
	}
	preview := d.Get("preview.images.0.source.url").String()
	if preview == "" {
		return ""
	}
	return html.UnescapeString(preview)
}

func isImageURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	if _, ok := imageHosts[strings.ToLower(u.Hostname())]; ok {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// tierMatcher matches "Tier 3" exactly or loosely ("tier-3", "TIER_3 ✨")
// but never "Tier 30".
func tierMatcher(tier model.Tier) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?i)(^|[^a-z])tier[\s_\-:#.]*%d([^0-9]|$)`, int(tier)))
}

// merger accumulates items unique by case-insensitive URL in first-seen order.
type merger struct {
	seen  map[string]struct{}
	items []model.ContentItem
}

func newMerger() *merger {
	return &merger{seen: map[string]struct{}{}}
}

func (m *merger) add(items ...model.ContentItem) {
	for _, it := range items {
		key := strings.ToLower(it.URL)
		if _, ok := m.seen[key]; ok {
			continue
		}
		m.seen[key] = struct{}{}
		m.items = append(m.items, it)
	}
}
