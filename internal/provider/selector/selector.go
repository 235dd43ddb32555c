// Package selector evaluates ordered extraction strategies against a fetched
// document and returns the first one that matches. A strategy matches when it
// yields at least one node or value; resolution is a pure function of the
// document and the strategy list.
package selector

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/renvik/mangarr/internal/provider"
)

// Strategy is one flattened, single-field extraction rule. Scrapers build
// these from the per-operation fields of a provider.SelectorStrategy.
type Strategy struct {
	Kind     string
	Selector string // css: goquery selector
	Attr     string // css: attribute to read; empty reads text
	Pattern  string // embedded-json: regex capturing an object literal
	Path     string // embedded-json: dotted path into the parsed JSON
}

// Result is the outcome of the first matching strategy.
type Result struct {
	StrategyIndex int
	Kind          string
	Selection     *goquery.Selection // nil for embedded-json matches
	Values        []string
}

// Resolve tries each strategy in declared order and returns the first
// non-empty match. When every strategy fails it returns a parse error
// wrapping provider.ErrNoSelectorMatched.
func Resolve(doc *goquery.Document, strategies []Strategy) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("selector: nil document: %w", provider.ErrNoSelectorMatched)
	}

	for i, s := range strategies {
		switch s.Kind {
		case provider.StrategyCSS:
			if s.Selector == "" {
				continue
			}
			sel := doc.Find(s.Selector)
			if sel.Length() == 0 {
				continue
			}
			return &Result{
				StrategyIndex: i,
				Kind:          s.Kind,
				Selection:     sel,
				Values:        cssValues(sel, s.Attr),
			}, nil

		case provider.StrategyEmbeddedJSON:
			vals, err := embeddedJSON(doc, s)
			if err != nil || len(vals) == 0 {
				continue
			}
			return &Result{StrategyIndex: i, Kind: s.Kind, Values: vals}, nil
		}
	}

	return nil, fmt.Errorf("selector: %d strategies exhausted: %w", len(strategies), provider.ErrNoSelectorMatched)
}

func cssValues(sel *goquery.Selection, attr string) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, n *goquery.Selection) {
		var v string
		if attr == "" {
			v = strings.TrimSpace(n.Text())
		} else {
			v, _ = n.Attr(attr)
			v = strings.TrimSpace(v)
		}
		if v != "" {
			out = append(out, v)
		}
	})
	return out
}

// embeddedJSON scans inline script tags for the configured pattern, parses
// the captured object literal and extracts strings at the dotted path.
func embeddedJSON(doc *goquery.Document, s Strategy) ([]string, error) {
	re, err := regexp.Compile(s.Pattern)
	if err != nil {
		return nil, fmt.Errorf("selector: bad scriptPattern: %w", err)
	}

	var vals []string
	doc.Find("script").EachWithBreak(func(_ int, sc *goquery.Selection) bool {
		m := re.FindStringSubmatch(sc.Text())
		if m == nil {
			return true
		}
		blob := m[0]
		if len(m) > 1 {
			blob = m[1]
		}

		var root any
		if json.Unmarshal([]byte(blob), &root) != nil {
			return true
		}

		vals = ExtractPath(root, s.Path)
		return len(vals) == 0
	})

	return vals, nil
}

// ExtractPath walks a dotted path through decoded JSON and collects the
// leaf strings. Path segments are object keys, numeric array indexes, or
// "*" to fan out over every array element. An empty path collects every
// string reachable from v.
func ExtractPath(v any, path string) []string {
	if path == "" {
		return collectStrings(v)
	}

	nodes := []any{v}
	for seg := range strings.SplitSeq(path, ".") {
		var next []any
		for _, n := range nodes {
			switch t := n.(type) {
			case map[string]any:
				if child, ok := t[seg]; ok {
					next = append(next, child)
				}
			case []any:
				if seg == "*" {
					next = append(next, t...)
				} else if idx, err := strconv.Atoi(seg); err == nil && idx >= 0 && idx < len(t) {
					next = append(next, t[idx])
				}
			}
		}
		nodes = next
		if len(nodes) == 0 {
			return nil
		}
	}

	var out []string
	for _, n := range nodes {
		out = append(out, collectStrings(n)...)
	}
	return out
}

func collectStrings(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case float64:
		return []string{strconv.FormatFloat(t, 'f', -1, 64)}
	case []any:
		var out []string
		for _, x := range t {
			out = append(out, collectStrings(x)...)
		}
		return out
	case map[string]any:
		// Deterministic order regardless of map iteration.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			out = append(out, collectStrings(t[k])...)
		}
		return out
	}
	return nil
}
