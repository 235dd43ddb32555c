package provider

import (
	"regexp"
	"strings"
	"unicode"
)

var reUnderscore = regexp.MustCompile(`_+`)

func sanitize(s string) string {
	s = strings.ToLower(s)

	repl := []string{
		"•", "_",
		"-", "_",
		"—", "_",
		"–", "_",
		"/", "_",
		"\\", "_",
		".", "_",
		" ", "_",
		"(", "",
		")", "",
	}
	for i := 0; i < len(repl); i += 2 {
		s = strings.ReplaceAll(s, repl[i], repl[i+1])
	}

	clean := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			clean = append(clean, r)
		}
	}
	s = reUnderscore.ReplaceAllString(string(clean), "_")

	return strings.Trim(s, "_")
}

func (c Chapter) baseName() string {
	lbl := sanitize("ch_" + c.Label)
	title := sanitize(c.Title)

	if title != "" && title != lbl {
		return lbl + "_" + title
	}
	return lbl
}

// PageDir is the relative directory chapter pages are written into.
func (c Chapter) PageDir(mangaTitle string) string {
	return sanitize(mangaTitle) + "/" + c.baseName()
}

// ArchiveName is the relative path of the chapter's CBZ archive.
func (c Chapter) ArchiveName(mangaTitle string) string {
	return sanitize(mangaTitle) + "/" + c.baseName() + ".cbz"
}
