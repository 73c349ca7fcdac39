package scraper

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Two passes over the page: a strict tag pattern first, then a looser one
// in case the script tag carries extra attributes or different ordering.
var (
	strictJSONLD = regexp.MustCompile(`(?s)<script type="application/ld\+json">(.*?)</script>`)
	looseJSONLD  = regexp.MustCompile(`(?s)<script[^>]*type="application/ld\+json"[^>]*>(.*?)</script>`)
)

// ExtractStructuredData collects every JSON-LD object embedded in the
// page. Blocks that fail to parse are skipped, never fatal: one malformed
// block must not poison the rest of the page.
func ExtractStructuredData(html string) []map[string]any {
	matches := strictJSONLD.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		matches = looseJSONLD.FindAllStringSubmatch(html, -1)
	}

	out := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		var obj map[string]any
		if err := json.Unmarshal([]byte(m[1]), &obj); err != nil {
			continue
		}
		if obj != nil {
			out = append(out, obj)
		}
	}
	return out
}

// graphOf returns the elements of a block's top-level "@graph" array, if any.
func graphOf(block map[string]any) []map[string]any {
	raw, ok := block["@graph"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, it := range raw {
		if obj, ok := it.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func typeOf(obj map[string]any) string {
	s, _ := obj["@type"].(string)
	return s
}

func strField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// toFloat coerces a JSON-LD numeric field; pages serve numbers both raw
// and as strings (sometimes with a comma decimal separator).
func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", "."))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return 0
}

func toInt(v any) int {
	return int(toFloat(v))
}
