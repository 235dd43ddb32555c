package scrape

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var reImageExt = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|webp|avif)(\?|$)`)

// Attributes lazy-loading sites stash the real image URL in, probed in order.
var imageAttrs = []string{"src", "data-src", "data-lazy-src", "data-original", "href"}

// pageURLs extracts one image URL per matched node, resolved against
// baseURL, deduplicated in document order. Decorative assets (logos,
// covers, avatars) are dropped.
func pageURLs(sel *goquery.Selection, baseURL string) []string {
	var out []string
	seen := map[string]bool{}

	add := func(raw string) {
		u := resolveURL(baseURL, strings.TrimSpace(raw))
		if u == "" || !usableImageURL(u) || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	}

	sel.Each(func(_ int, n *goquery.Selection) {
		if ss, ok := n.Attr("srcset"); ok && strings.TrimSpace(ss) != "" {
			if first := firstSrcsetEntry(ss); first != "" {
				add(first)
				return
			}
		}

		for _, attr := range imageAttrs {
			if v, ok := n.Attr(attr); ok && strings.TrimSpace(v) != "" {
				add(v)
				return
			}
		}
	})

	return out
}

func firstSrcsetEntry(srcset string) string {
	for p := range strings.SplitSeq(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(p))
		if len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

func usableImageURL(u string) bool {
	lu := strings.ToLower(u)
	if strings.HasPrefix(lu, "data:") || strings.HasPrefix(lu, "javascript:") {
		return false
	}
	if !reImageExt.MatchString(lu) {
		return false
	}
	for _, bad := range []string{"logo", "cover", "profile", "avatar", "banner"} {
		if strings.Contains(lu, bad) {
			return false
		}
	}
	return true
}

func resolveURL(baseURL, href string) string {
	if href == "" {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return u.String()
	}

	b, err := url.Parse(baseURL)
	if err != nil {
		return href
	}

	return b.ResolveReference(u).String()
}
