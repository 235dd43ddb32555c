package scrape

import (
	"regexp"
	"strconv"
	"strings"
)

// Chapter numbering across sites is a mess: "chapter-28", "ch_28.5",
// "vol-3/ch-12", bare "/105.5", or a "28.5 - Title" prefix. These patterns
// cover what the supported sites actually emit; URL forms win over titles.
var (
	reVolChapter  = regexp.MustCompile(`(?i)vol(?:ume)?[_\-\s]*(\d+)[/_\-\s]+ch(?:apter)?[_\-\s]*0*(\d+(?:\.\d+)?)`)
	reChapterWord = regexp.MustCompile(`(?i)(?:chapter|ch)[_\-\s/]*0*(\d+)(?:[.\-](\d+))?`)
	reTrailingNum = regexp.MustCompile(`[/\-](\d+(?:\.\d+)?)(?:$|[/\-_?#])`)
	reTitlePrefix = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*[.\- ]`)
)

// parseChapterNumber extracts the decimal chapter number, its canonical
// label and an optional volume from a chapter link.
func parseChapterNumber(href, title string) (num float64, label string, volume int, ok bool) {
	h := strings.ToLower(href)

	if m := reVolChapter.FindStringSubmatch(h); m != nil {
		volume, _ = strconv.Atoi(m[1])
		if n, err := strconv.ParseFloat(m[2], 64); err == nil {
			return n, formatLabel(n), volume, true
		}
	}

	if n, ok := matchChapterWord(h); ok {
		return n, formatLabel(n), 0, true
	}
	if n, ok := matchChapterWord(strings.ToLower(title)); ok {
		return n, formatLabel(n), 0, true
	}

	if m := reTitlePrefix.FindStringSubmatch(title); m != nil {
		if n, err := strconv.ParseFloat(m[1], 64); err == nil {
			return n, formatLabel(n), 0, true
		}
	}

	if m := reTrailingNum.FindStringSubmatch(h); m != nil {
		if n, err := strconv.ParseFloat(m[1], 64); err == nil {
			return n, formatLabel(n), 0, true
		}
	}

	return 0, "", 0, false
}

// matchChapterWord handles "chapter 28", "ch-28.5" and the dash sub-chapter
// form "chapter_28-5", which means 28.5.
func matchChapterWord(s string) (float64, bool) {
	m := reChapterWord.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	raw := m[1]
	if m[2] != "" {
		raw = m[1] + "." + m[2]
	}

	n, err := strconv.ParseFloat(raw, 64)
	return n, err == nil
}

func formatLabel(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
