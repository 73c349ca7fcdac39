package scraper

import (
	crand "crypto/rand"
	"encoding/hex"

	"trustpilot_fetcher/internal/domain"
)

const reviewType = "Review"

// ExtractReviews walks the same block/graph structure as the aggregate
// search and collects every Review-typed object, in first-encountered
// order. Reviews with an empty body are dropped: no content, no review.
func ExtractReviews(blocks []map[string]any) []domain.ReviewRecord {
	var out []domain.ReviewRecord
	for _, block := range blocks {
		for _, obj := range graphOf(block) {
			if rec, ok := reviewFrom(obj); ok {
				out = append(out, rec)
			}
		}
		if rec, ok := reviewFrom(block); ok {
			out = append(out, rec)
		}
	}
	return out
}

func reviewFrom(obj map[string]any) (domain.ReviewRecord, bool) {
	if typeOf(obj) != reviewType {
		return domain.ReviewRecord{}, false
	}

	rec := domain.ReviewRecord{
		ExternalID:  strField(obj, "@id"),
		Title:       strField(obj, "name"),
		Body:        strField(obj, "reviewBody"),
		PublishedAt: strField(obj, "datePublished"),
	}
	if rec.ExternalID == "" {
		rec.ExternalID = newReviewID()
	}
	if rr, ok := obj["reviewRating"].(map[string]any); ok {
		rec.Rating = toInt(rr["ratingValue"])
	}
	if author, ok := obj["author"].(map[string]any); ok {
		rec.Author = strField(author, "name")
	}

	if rec.Body == "" {
		return domain.ReviewRecord{}, false
	}
	return rec, true
}

// newReviewID synthesizes a placeholder identifier for the rare review
// object that carries no @id of its own.
func newReviewID() string {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return "review_unknown"
	}
	return "review_" + hex.EncodeToString(b[:])
}
