package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"FlatScanner/internal/domain"
	"FlatScanner/internal/scanner"
)

const (
	kleinanzeigenBaseURL = "https://www.kleinanzeigen.de"
	kleinanzeigenName    = "kleinanzeigen"
)

var (
	kleinanzeigenURLExpr = regexp.MustCompile(`^https://www\.kleinanzeigen\.de`)
	sizeExpr             = regexp.MustCompile(`(\d+)\s*m²`)
	roomsExpr            = regexp.MustCompile(`(\d+[.,]?\d*)\s*Zi`)
	availableExpr        = regexp.MustCompile(`(Januar|Februar|März|April|Mai|Juni|Juli|August|September|Oktober|November|Dezember)\s*(\d{4})`)
)

var germanMonths = map[string]string{
	"Januar":    "01",
	"Februar":   "02",
	"März":      "03",
	"April":     "04",
	"Mai":       "05",
	"Juni":      "06",
	"Juli":      "07",
	"August":    "08",
	"September": "09",
	"Oktober":   "10",
	"November":  "11",
	"Dezember":  "12",
}

// KleinanzeigenScanner crawls Kleinanzeigen search result pages.
type KleinanzeigenScanner struct {
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

var _ scanner.DetailCrawler = (*KleinanzeigenScanner)(nil)

// NewKleinanzeigenScanner wires an HTTP client; a nil client gets a 20s timeout.
func NewKleinanzeigenScanner(client *http.Client, logger *slog.Logger) *KleinanzeigenScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &KleinanzeigenScanner{client: client, logger: logger, now: time.Now}
}

// Name identifies the crawler inside the registry.
func (k *KleinanzeigenScanner) Name() string {
	return kleinanzeigenName
}

// Matches reports whether url points at kleinanzeigen.de.
func (k *KleinanzeigenScanner) Matches(url string) bool {
	return kleinanzeigenURLExpr.MatchString(url)
}

// Crawl downloads one search page and returns its exposes.
func (k *KleinanzeigenScanner) Crawl(ctx context.Context, pageURL string) ([]domain.Expose, error) {
	doc, err := k.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return k.extractExposes(doc), nil
}

// Details reads the expose page and sets AvailableFrom to "01.MM.YYYY" from the
// "Verfügbar ab" entry, or to today's date when the page has none.
func (k *KleinanzeigenScanner) Details(ctx context.Context, expose domain.Expose) (domain.Expose, error) {
	doc, err := k.fetchDocument(ctx, expose.URL)
	if err != nil {
		return expose, err
	}

	expose.AvailableFrom = availableFrom(doc)
	if expose.AvailableFrom == "" {
		expose.AvailableFrom = k.now().Format("02.01.2006")
	}
	return expose, nil
}

func availableFrom(doc *goquery.Document) string {
	var from string
	doc.Find("li.addetailslist--detail").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		text := li.Text()
		if !strings.Contains(text, "Verfügbar ab") {
			return true
		}
		if m := availableExpr.FindStringSubmatch(text); m != nil {
			from = "01." + germanMonths[m[1]] + "." + m[2]
			return false
		}
		return true
	})
	return from
}

func (k *KleinanzeigenScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) FlatScanner/1.0")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kleinanzeigen returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (k *KleinanzeigenScanner) extractExposes(doc *goquery.Document) []domain.Expose {
	table := doc.Find("#srchrslt-adtable")
	if table.Length() == 0 {
		k.warn("search results table not found, page layout changed or bot detection triggered")
		return nil
	}

	var exposes []domain.Expose
	table.Find("article.aditem").Each(func(_ int, item *goquery.Selection) {
		expose, err := parseAdItem(item)
		if err != nil {
			k.warn("skip ad item", "error", err)
			return
		}
		exposes = append(exposes, expose)
	})

	if k.logger != nil {
		k.logger.Debug("kleinanzeigen entries found", "count", len(exposes))
	}
	return exposes
}

func parseAdItem(item *goquery.Selection) (domain.Expose, error) {
	titleElem := item.Find(".ellipsis").First()
	href, _ := titleElem.Attr("href")
	if href == "" {
		return domain.Expose{}, fmt.Errorf("ad item has no link")
	}

	rawID, _ := item.Attr("data-adid")
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		return domain.Expose{}, fmt.Errorf("ad item %s: invalid id %q", href, rawID)
	}

	if !strings.HasPrefix(href, "http") {
		href = kleinanzeigenBaseURL + href
	}

	image, _ := item.Find("div.aditem-image img").First().Attr("src")

	var size, rooms string
	tags := strings.TrimSpace(item.Find(".aditem-main--middle--tags").First().Text())
	if m := sizeExpr.FindStringSubmatch(tags); m != nil {
		size = m[1] + " m²"
	}
	if m := roomsExpr.FindStringSubmatch(tags); m != nil {
		rooms = m[1]
	}

	return domain.Expose{
		ID:      id,
		URL:     href,
		Image:   image,
		Title:   strings.TrimSpace(titleElem.Text()),
		Price:   strings.TrimSpace(item.Find(".aditem-main--middle--price-shipping--price").First().Text()),
		Size:    size,
		Rooms:   rooms,
		Address: strings.Join(strings.Fields(item.Find("div.aditem-main--top--left").First().Text()), " "),
		Crawler: kleinanzeigenName,
	}, nil
}

func (k *KleinanzeigenScanner) warn(msg string, args ...any) {
	if k.logger != nil {
		k.logger.Warn(msg, args...)
	}
}
