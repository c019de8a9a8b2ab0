package domain

import "strconv"

// Expose is a single scraped listing. Text fields are kept exactly as the crawler found
// them; an empty string means the field was not present on the page.
type Expose struct {
	ID            int64  `json:"id"`
	URL           string `json:"url"`
	Image         string `json:"image,omitempty"`
	Title         string `json:"title"`
	Price         string `json:"price"`
	Size          string `json:"size"`
	Rooms         string `json:"rooms"`
	Address       string `json:"address"`
	Crawler       string `json:"crawler,omitempty"`
	AvailableFrom string `json:"from,omitempty"`
}

// Label identifies an expose in logs and diagnostics.
func (e Expose) Label() string {
	if e.Title != "" {
		return e.Title
	}
	return "expose " + strconv.FormatInt(e.ID, 10)
}
