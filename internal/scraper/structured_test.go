package scraper

import "testing"

func TestExtractStructuredDataStrictTag(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">{"@type":"Organization","name":"Acme"}</script>
<script type="application/ld+json">{"@type":"BreadcrumbList"}</script>
</head></html>`

	blocks := ExtractStructuredData(html)
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if typeOf(blocks[0]) != "Organization" {
		t.Errorf("first block type = %q", typeOf(blocks[0]))
	}
}

func TestExtractStructuredDataLooseFallback(t *testing.T) {
	html := `<script data-x="1" type="application/ld+json" id="a">{"@type":"Review","reviewBody":"ok"}</script>`

	blocks := ExtractStructuredData(html)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	if typeOf(blocks[0]) != "Review" {
		t.Errorf("block type = %q", typeOf(blocks[0]))
	}
}

func TestExtractStructuredDataSkipsMalformedBlocks(t *testing.T) {
	html := `<script type="application/ld+json">{not json}</script>
<script type="application/ld+json">{"@type":"AggregateRating","ratingValue":4.5}</script>`

	blocks := ExtractStructuredData(html)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	if typeOf(blocks[0]) != "AggregateRating" {
		t.Errorf("surviving block type = %q", typeOf(blocks[0]))
	}
}

func TestExtractStructuredDataNone(t *testing.T) {
	if got := ExtractStructuredData("<html><body>plain page</body></html>"); len(got) != 0 {
		t.Fatalf("got %d blocks, want 0", len(got))
	}
}

func TestExtractStructuredDataMultiline(t *testing.T) {
	html := "<script type=\"application/ld+json\">\n{\n  \"@type\": \"Organization\"\n}\n</script>"
	if got := ExtractStructuredData(html); len(got) != 1 {
		t.Fatalf("got %d blocks, want 1", len(got))
	}
}

func TestToFloatCoercions(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{4.5, 4.5},
		{"4.5", 4.5},
		{"4,5", 4.5},
		{" 3.0 ", 3},
		{"not a number", 0},
		{nil, 0},
	}
	for _, c := range cases {
		if got := toFloat(c.in); got != c.want {
			t.Errorf("toFloat(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
