package scraper

import (
	"strings"
	"testing"
)

func reviewObj(id, body string, rating float64, author string) map[string]any {
	obj := map[string]any{
		"@type":         "Review",
		"reviewBody":    body,
		"datePublished": "2024-03-01",
		"reviewRating":  map[string]any{"@type": "Rating", "ratingValue": rating},
		"author":        map[string]any{"@type": "Person", "name": author},
	}
	if id != "" {
		obj["@id"] = id
	}
	return obj
}

func TestExtractReviewsFromGraph(t *testing.T) {
	blocks := []map[string]any{
		{
			"@graph": []any{
				reviewObj("https://www.trustpilot.com/#/schema/Review/www.example.com/r1", "Solid product.", 5, "Jane D."),
				map[string]any{"@type": "AggregateRating"},
				reviewObj("https://www.trustpilot.com/#/schema/Review/www.example.com/r2", "Arrived late.", 2, "John S."),
			},
		},
	}

	got := ExtractReviews(blocks)
	if len(got) != 2 {
		t.Fatalf("got %d reviews, want 2", len(got))
	}
	first := got[0]
	if !strings.HasSuffix(first.ExternalID, "/r1") {
		t.Errorf("order not preserved, first id = %q", first.ExternalID)
	}
	if first.Body != "Solid product." || first.Rating != 5 || first.Author != "Jane D." {
		t.Errorf("first review = %+v", first)
	}
	if first.PublishedAt != "2024-03-01" {
		t.Errorf("published = %q", first.PublishedAt)
	}
}

func TestExtractReviewsRootLevelBlock(t *testing.T) {
	blocks := []map[string]any{
		reviewObj("r1", "Good.", 4, "A"),
		{"@type": "Organization"},
	}

	got := ExtractReviews(blocks)
	if len(got) != 1 {
		t.Fatalf("got %d reviews, want 1", len(got))
	}
}

func TestExtractReviewsDropsEmptyBody(t *testing.T) {
	blocks := []map[string]any{
		reviewObj("r1", "", 4, "A"),
		reviewObj("r2", "Has content.", 3, "B"),
	}

	got := ExtractReviews(blocks)
	if len(got) != 1 {
		t.Fatalf("got %d reviews, want 1", len(got))
	}
	if got[0].Body != "Has content." {
		t.Errorf("kept wrong review: %+v", got[0])
	}
}

func TestExtractReviewsGeneratesPlaceholderID(t *testing.T) {
	blocks := []map[string]any{
		reviewObj("", "No id on this one.", 3, "C"),
	}

	got := ExtractReviews(blocks)
	if len(got) != 1 {
		t.Fatalf("got %d reviews, want 1", len(got))
	}
	if !strings.HasPrefix(got[0].ExternalID, "review_") {
		t.Errorf("placeholder id = %q", got[0].ExternalID)
	}
	if len(got[0].ExternalID) != len("review_")+16 {
		t.Errorf("placeholder id length = %d", len(got[0].ExternalID))
	}
}

func TestExtractReviewsIgnoresNonReviewTypes(t *testing.T) {
	blocks := []map[string]any{
		{"@type": "Product", "reviewBody": "looks like one but is not"},
	}
	if got := ExtractReviews(blocks); len(got) != 0 {
		t.Fatalf("got %d reviews, want 0", len(got))
	}
}
