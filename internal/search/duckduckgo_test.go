package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/safeguard/internal/util"
)

const ddgPage = `<!DOCTYPE html>
<html><body>
<div class="serp__results">
  <div class="result result--ad">
    <a class="result__a" href="https://duckduckgo.com/y.js?ad_provider=x">Buy supplements</a>
  </div>
  <div class="result results_links results_links_deep web-result">
    <h2 class="result__title">
      <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.cdc.gov%2Fcoronavirus%2Fmyths.html&amp;rut=abc">COVID-19 <b>Myths</b> and Facts</a>
    </h2>
    <a class="result__snippet" href="#">Drinking bleach does not cure COVID-19 and is dangerous.</a>
  </div>
  <div class="result results_links web-result">
    <a class="result__a" href="https://www.healthline.com/nutrition/vitamin-b12">Vitamin B12 foods</a>
    <div class="result__snippet">Eggs contain vitamin B12.</div>
  </div>
  <div class="result results_links web-result">
    <a class="result__a" href="https://www.healthline.com/nutrition/vitamin-b12">Duplicate</a>
  </div>
</div>
</body></html>`

func TestDuckDuckGoSearcher_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bleach cures covid", r.URL.Query().Get("q"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(ddgPage))
	}))
	defer server.Close()

	d := NewDuckDuckGoSearcher(DuckDuckGoOptions{BaseURL: server.URL + "/html/", UserAgent: "test-agent"})
	results, err := d.Search(context.Background(), "bleach cures covid")
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "https://www.cdc.gov/coronavirus/myths.html", results[0].URL)
	assert.Equal(t, "COVID-19 Myths and Facts", results[0].Title)
	assert.Equal(t, "Drinking bleach does not cure COVID-19 and is dangerous.", results[0].Snippet)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "Eggs contain vitamin B12.", results[1].Snippet)
	assert.Equal(t, 2, results[1].Rank)
}

func TestDuckDuckGoSearcher_Limit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ddgPage))
	}))
	defer server.Close()

	d := NewDuckDuckGoSearcher(DuckDuckGoOptions{BaseURL: server.URL, Results: 1})
	results, err := d.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestDuckDuckGoSearcher_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="no-results">No results.</div></body></html>`))
	}))
	defer server.Close()

	d := NewDuckDuckGoSearcher(DuckDuckGoOptions{BaseURL: server.URL})
	_, err := d.Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestDuckDuckGoSearcher_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	d := NewDuckDuckGoSearcher(DuckDuckGoOptions{BaseURL: server.URL})
	_, err := d.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestDuckDuckGoSearcher_Robots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /html/\n"))
			return
		}
		t.Error("search endpoint must not be fetched when disallowed")
	}))
	defer server.Close()

	d := NewDuckDuckGoSearcher(DuckDuckGoOptions{
		BaseURL: server.URL + "/html/",
		Robots:  util.NewRobotsChecker("test-agent", 0),
	})
	_, err := d.Search(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "robots.txt"))
}

func TestResolveResultURL(t *testing.T) {
	base, _ := url.Parse("https://html.duckduckgo.com/html/")

	tests := []struct {
		href string
		want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.nhs.uk%2Fconditions%2F&rut=x", "https://www.nhs.uk/conditions/"},
		{"https://www.mayoclinic.org/a", "https://www.mayoclinic.org/a"},
		{"/html/?q=next", ""},
		{"https://duckduckgo.com/y.js?ad=1", ""},
		{"#top", ""},
		{"javascript:void(0)", ""},
		{"mailto:a@b.c", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveResultURL(base, tt.href))
		})
	}
}
