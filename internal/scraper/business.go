package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BusinessData is the scalar half of a snapshot, before the orchestrator
// stamps the URL and scrape time.
type BusinessData struct {
	Name        string
	Rating      float64
	ReviewCount int
	BestRating  int
	WorstRating int
}

const aggregateRatingType = "AggregateRating"

// ExtractBusinessData finds the page's AggregateRating and resolves the
// business display name. A page without an aggregate rating anywhere is a
// hard failure: there is no business record worth saving without it.
func ExtractBusinessData(blocks []map[string]any, html string) (BusinessData, error) {
	agg, ok := findAggregateRating(blocks)
	if !ok {
		return BusinessData{}, ErrNoAggregateRating
	}
	agg.Name = extractBusinessName(html)
	return agg, nil
}

// findAggregateRating searches block order, then graph order, root before
// nested. First match wins.
func findAggregateRating(blocks []map[string]any) (BusinessData, bool) {
	for _, block := range blocks {
		for _, obj := range graphOf(block) {
			if typeOf(obj) == aggregateRatingType {
				return aggregateFrom(obj), true
			}
			if nested, ok := nestedAggregate(obj); ok {
				return aggregateFrom(nested), true
			}
		}
		if typeOf(block) == aggregateRatingType {
			return aggregateFrom(block), true
		}
		if nested, ok := nestedAggregate(block); ok {
			return aggregateFrom(nested), true
		}
	}
	return BusinessData{}, false
}

func nestedAggregate(obj map[string]any) (map[string]any, bool) {
	nested, ok := obj["aggregateRating"].(map[string]any)
	if !ok || typeOf(nested) != aggregateRatingType {
		return nil, false
	}
	return nested, true
}

// aggregateFrom coerces the rating fields with the schema.org defaults:
// missing rating is 0, missing bounds are the 1..5 star scale.
func aggregateFrom(obj map[string]any) BusinessData {
	d := BusinessData{
		Rating:      toFloat(obj["ratingValue"]),
		ReviewCount: toInt(obj["reviewCount"]),
		BestRating:  5,
		WorstRating: 1,
	}
	if v, ok := obj["bestRating"]; ok {
		d.BestRating = toInt(v)
	}
	if v, ok := obj["worstRating"]; ok {
		d.WorstRating = toInt(v)
	}
	return d
}

var trailingSiteName = regexp.MustCompile(`(?i)\s*-\s*Trustpilot.*$`)

// extractBusinessName resolves the raw display name: page <title> stripped
// of the site suffix, else first <h1>, else a literal fallback. Further
// cleanup (the "|" split, trailing "Reviews") happens at persistence time.
func extractBusinessName(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "Unknown Business"
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return strings.TrimSpace(trailingSiteName.ReplaceAllString(title, ""))
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return "Unknown Business"
}
