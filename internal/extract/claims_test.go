package extract

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/ppiankov/safeguard/internal/model"
)

func newTestExtractor() *HeuristicExtractor {
	return NewHeuristicExtractor(nil)
}

func TestHeuristicExtractor_PlainText(t *testing.T) {
	claims, err := newTestExtractor().Extract(context.Background(), "Drinking bleach cures COVID-19")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(claims) != 1 {
		t.Fatalf("Expected 1 claim, got %d", len(claims))
	}
	if claims[0].ID != "c1" {
		t.Errorf("Expected id c1, got %s", claims[0].ID)
	}
	if claims[0].Heuristic != "keyword:cures" {
		t.Errorf("Expected heuristic keyword:cures, got %s", claims[0].Heuristic)
	}
}

func TestHeuristicExtractor_Question(t *testing.T) {
	claims, err := newTestExtractor().Extract(context.Background(), "Does egg contain vitamin B12?")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(claims) != 1 || claims[0].Text != "Does egg contain vitamin B12?" {
		t.Errorf("Expected the question as a single claim, got %+v", claims)
	}
}

func TestHeuristicExtractor_HTML(t *testing.T) {
	page := `
	<html>
	<body>
		<p>Garlic helps lower blood pressure in some adults.</p>
		<p>According to a local blog, lemon water prevents all colds.</p>
		<p>The clinic is open on weekdays.</p>
	</body>
	</html>
	`

	claims, err := newTestExtractor().Extract(context.Background(), page)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(claims) != 2 {
		t.Fatalf("Expected 2 claims, got %d: %+v", len(claims), claims)
	}
	if !strings.Contains(claims[0].Text, "Garlic") || !strings.Contains(claims[1].Text, "lemon water") {
		t.Errorf("Unexpected claims: %+v", claims)
	}
	if claims[1].ID != "c2" {
		t.Errorf("Expected second claim id c2, got %s", claims[1].ID)
	}
}

func TestHeuristicExtractor_WholeWordsOnly(t *testing.T) {
	// "helpful" and "because" must not match "help" and "cause"
	claims, err := newTestExtractor().Extract(context.Background(), "The staff were helpful because it rained.")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(claims) != 0 {
		t.Errorf("Expected 0 claims, got %+v", claims)
	}
}

func TestHeuristicExtractor_SkipScripts(t *testing.T) {
	page := `
	<html>
	<head>
		<script>var text = "This powder cures cancer overnight.";</script>
		<style>/* vitamin C prevents scurvy */</style>
	</head>
	<body>
		<p>Vitamin D helps maintain healthy bones.</p>
	</body>
	</html>
	`

	claims, err := newTestExtractor().Extract(context.Background(), page)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	for _, claim := range claims {
		if strings.Contains(claim.Text, "powder") {
			t.Error("Should not extract claims from script tags")
		}
		if strings.Contains(claim.Text, "scurvy") {
			t.Error("Should not extract claims from style tags")
		}
	}
	if len(claims) != 1 || !strings.Contains(claims[0].Text, "Vitamin D") {
		t.Errorf("Expected the body claim, got %+v", claims)
	}
}

func TestHeuristicExtractor_BoundedToMaxClaims(t *testing.T) {
	text := "Ginger helps nausea. Honey helps coughs. Zinc reduces cold duration. Sleep improves memory. Fiber reduces cholesterol."

	claims, err := newTestExtractor().Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(claims) != 3 {
		t.Fatalf("Expected 3 claims, got %d", len(claims))
	}
	for i, c := range claims {
		if c.ID != model.ClaimID(i) {
			t.Errorf("Expected id %s, got %s", model.ClaimID(i), c.ID)
		}
	}
}

func TestHeuristicExtractor_Deduplication(t *testing.T) {
	text := "Garlic helps lower blood pressure. garlic helps lower blood pressure. GARLIC HELPS LOWER BLOOD PRESSURE."

	claims, err := newTestExtractor().Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(claims) != 1 {
		t.Errorf("Expected 1 unique claim after deduplication, got %d", len(claims))
	}
}

func TestHeuristicExtractor_ShortSentencesIgnored(t *testing.T) {
	claims, err := newTestExtractor().Extract(context.Background(), "It cures.")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(claims) != 0 {
		t.Errorf("Expected short sentence to be ignored, got %+v", claims)
	}
}

func TestHeuristicExtractor_Empty(t *testing.T) {
	claims, err := newTestExtractor().Extract(context.Background(), `<html><body></body></html>`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(claims) != 0 {
		t.Errorf("Expected 0 claims from empty HTML, got %d", len(claims))
	}
}

func TestHeuristicExtractor_AllDefaultKeywords(t *testing.T) {
	extractor := newTestExtractor()

	for _, keyword := range model.DefaultConfig().Evidence.ClaimKeywords {
		text := "This sentence says that the product " + keyword + " something for most people."

		claims, err := extractor.Extract(context.Background(), text)
		if err != nil {
			t.Fatalf("Expected no error for keyword '%s', got %v", keyword, err)
		}

		if len(claims) == 0 {
			t.Errorf("Expected at least 1 claim for keyword '%s', got 0", keyword)
			continue
		}
		if claims[0].Heuristic != "keyword:"+keyword {
			t.Errorf("Expected heuristic keyword:%s, got '%s'", keyword, claims[0].Heuristic)
		}
	}
}

func TestExtractVisibleText_SkipInvisibleElements(t *testing.T) {
	page := `
	<html>
	<head>
		<script>var x = "script content";</script>
		<style>body { color: red; }</style>
	</head>
	<body>
		<p>Visible paragraph text.</p>
		<noscript>Noscript content</noscript>
		<iframe src="example.com">Iframe content</iframe>
		<p>Another visible paragraph.</p>
	</body>
	</html>
	`

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("Failed to parse HTML: %v", err)
	}

	text := extractVisibleText(doc)

	if !strings.Contains(text, "Visible paragraph") {
		t.Error("Expected to extract visible paragraph text")
	}
	if !strings.Contains(text, "Another visible paragraph") {
		t.Error("Expected to extract second visible paragraph")
	}
	for _, hidden := range []string{"script content", "color: red", "Noscript content", "Iframe content"} {
		if strings.Contains(text, hidden) {
			t.Errorf("Should not extract %q", hidden)
		}
	}
}

func TestSplitSentences_KeepsDecimals(t *testing.T) {
	sentences := splitSentences("Take 2.5 g with food. Then rest! Is that all?", 1, 500)

	want := []string{"Take 2.5 g with food.", "Then rest!", "Is that all?"}
	if len(sentences) != len(want) {
		t.Fatalf("Expected %d sentences, got %d: %q", len(want), len(sentences), sentences)
	}
	for i := range want {
		if sentences[i] != want[i] {
			t.Errorf("Sentence %d: expected %q, got %q", i, want[i], sentences[i])
		}
	}
}

func TestSplitSentences_MinMaxLength(t *testing.T) {
	shortText := "Short."
	goodText := "This sentence is long enough to be considered valid for extraction purposes."
	longText := strings.Repeat("word ", 120) + "."

	sentences := splitSentences(shortText+" "+goodText+" "+longText, 10, 300)

	if len(sentences) != 1 || sentences[0] != goodText {
		t.Errorf("Expected only the well-sized sentence, got %q", sentences)
	}
}

func TestDedupeClaims_CaseInsensitive(t *testing.T) {
	claims := []model.Claim{
		{Text: "Zinc reduces cold duration."},
		{Text: "Zinc reduces cold duration."},
		{Text: "ZINC REDUCES COLD DURATION."},
		{Text: "Honey helps coughs in children."},
	}

	unique := dedupeClaims(claims)

	if len(unique) != 2 {
		t.Errorf("Expected 2 unique claims, got %d", len(unique))
	}
}

func TestVisibleText(t *testing.T) {
	text, err := VisibleText("<html><body><p>Take rest.</p><script>var x = 1;</script></body></html>")
	if err != nil {
		t.Fatalf("VisibleText: %v", err)
	}
	if text != "Take rest." {
		t.Errorf("expected visible text only, got %q", text)
	}

	plain := "Eggs contain vitamin B12 <3"
	if got, _ := VisibleText(plain); got != plain {
		t.Errorf("plain text must pass through, got %q", got)
	}
}
