package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FlatScanner/internal/domain"
)

const searchPage = `
<html><body>
<ul id="srchrslt-adtable">
  <li>
    <article class="aditem" data-adid="2871234567">
      <div class="aditem-image"><img src="https://img.kleinanzeigen.de/1.jpg"></div>
      <div class="aditem-main--top--left">
        10115 Berlin
          Mitte
      </div>
      <h2><a class="ellipsis" href="/s-anzeige/helle-2-zimmer-wohnung/2871234567">Helle 2-Zimmer-Wohnung</a></h2>
      <p class="aditem-main--middle--price-shipping--price"> 950 € </p>
      <p class="aditem-main--middle--tags">58 m² · 2,5 Zi.</p>
    </article>
  </li>
  <li>
    <article class="aditem" data-adid="2871234568">
      <div class="aditem-main--top--left">Kreuzberg</div>
      <h2><span class="ellipsis">Gesuch ohne Link</span></h2>
    </article>
  </li>
  <li>
    <article class="aditem" data-adid="not-a-number">
      <h2><a class="ellipsis" href="/s-anzeige/kaputt">Kaputt</a></h2>
    </article>
  </li>
  <li>
    <article class="aditem" data-adid="2871234569">
      <h2><a class="ellipsis" href="/s-anzeige/wg-zimmer/2871234569">WG-Zimmer</a></h2>
      <p class="aditem-main--middle--price-shipping--price">VB</p>
    </article>
  </li>
</ul>
</body></html>`

const detailPage = `
<html><body>
<ul class="addetailslist">
  <li class="addetailslist--detail">Wohnfläche<span class="addetailslist--detail--value">58 m²</span></li>
  <li class="addetailslist--detail">Verfügbar ab<span class="addetailslist--detail--value">
    März 2025</span></li>
</ul>
</body></html>`

func TestParseAdItem(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(searchPage))
	require.NoError(t, err)

	expose, err := parseAdItem(doc.Find("article.aditem").First())
	require.NoError(t, err)

	assert.Equal(t, domain.Expose{
		ID:      2871234567,
		URL:     "https://www.kleinanzeigen.de/s-anzeige/helle-2-zimmer-wohnung/2871234567",
		Image:   "https://img.kleinanzeigen.de/1.jpg",
		Title:   "Helle 2-Zimmer-Wohnung",
		Price:   "950 €",
		Size:    "58 m²",
		Rooms:   "2,5",
		Address: "10115 Berlin Mitte",
		Crawler: "kleinanzeigen",
	}, expose)
}

func TestKleinanzeigenScannerCrawl(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(searchPage))
	}))
	defer server.Close()

	exposes, err := NewKleinanzeigenScanner(server.Client(), nil).Crawl(context.Background(), server.URL)
	require.NoError(t, err)

	require.Len(t, exposes, 2, "items without link or with a bad id are skipped")
	assert.Equal(t, int64(2871234569), exposes[1].ID)
	assert.Empty(t, exposes[1].Size)
	assert.Empty(t, exposes[1].Rooms)
}

func TestKleinanzeigenScannerMissingTable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="captcha"></div></body></html>`))
	}))
	defer server.Close()

	exposes, err := NewKleinanzeigenScanner(server.Client(), nil).Crawl(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Empty(t, exposes)
}

func TestKleinanzeigenScannerHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewKleinanzeigenScanner(server.Client(), nil).Crawl(context.Background(), server.URL)
	assert.ErrorContains(t, err, "403")
}

func TestKleinanzeigenScannerMatches(t *testing.T) {
	t.Parallel()

	k := NewKleinanzeigenScanner(nil, nil)
	assert.True(t, k.Matches("https://www.kleinanzeigen.de/s-wohnung-mieten/berlin/c203l3331"))
	assert.False(t, k.Matches("https://www.immobilienscout24.de/Suche/de/berlin"))
}

func TestKleinanzeigenScannerDetails(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/s-anzeige/ohne-datum/2" {
			_, _ = w.Write([]byte(`<html><body><ul class="addetailslist"></ul></body></html>`))
			return
		}
		_, _ = w.Write([]byte(detailPage))
	}))
	defer server.Close()

	k := NewKleinanzeigenScanner(server.Client(), nil)
	k.now = func() time.Time { return time.Date(2025, time.January, 7, 12, 0, 0, 0, time.UTC) }

	expose, err := k.Details(context.Background(), domain.Expose{ID: 1, Title: "Altbau", URL: server.URL + "/s-anzeige/altbau/1"})
	require.NoError(t, err)
	assert.Equal(t, "01.03.2025", expose.AvailableFrom)
	assert.Equal(t, "Altbau", expose.Title, "crawled fields are kept")

	expose, err = k.Details(context.Background(), domain.Expose{ID: 2, URL: server.URL + "/s-anzeige/ohne-datum/2"})
	require.NoError(t, err)
	assert.Equal(t, "07.01.2025", expose.AvailableFrom, "falls back to today")
}

func TestKleinanzeigenScannerDetailsHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	original := domain.Expose{ID: 3, URL: server.URL + "/s-anzeige/weg/3"}
	expose, err := NewKleinanzeigenScanner(server.Client(), nil).Details(context.Background(), original)
	assert.Error(t, err)
	assert.Equal(t, original, expose)
}

func TestAvailableFromMonths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want string
	}{
		{"january", `<li class="addetailslist--detail">Verfügbar ab Januar 2026</li>`, "01.01.2026"},
		{"december", `<li class="addetailslist--detail">Verfügbar ab<span>Dezember 2025</span></li>`, "01.12.2025"},
		{"other detail", `<li class="addetailslist--detail">Zimmer<span>März 2025</span></li>`, ""},
		{"no date", `<li class="addetailslist--detail">Verfügbar ab<span>sofort</span></li>`, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc, err := goquery.NewDocumentFromReader(strings.NewReader("<ul>" + tt.html + "</ul>"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, availableFrom(doc))
		})
	}
}
