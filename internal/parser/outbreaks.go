package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"healthlake/internal/extract"
	"healthlake/internal/table"
)

var (
	outbreakColumns = []string{
		"id", "title", "disease",
		"country", "country_iso2", "country_iso3",
		"summary", "published_at", "year", "url",
	}
	outbreakKinds = []table.Kind{
		table.KindString, table.KindString, table.KindString,
		table.KindString, table.KindString, table.KindString,
		table.KindString, table.KindString, table.KindInt, table.KindString,
	}
)

// Outbreaks parses the WHO disease-outbreak-news feed. Unlike the
// tabular families, most fields are best-effort nullable: a record is
// dropped only when its publication date cannot be parsed (year is the
// partition key), and failed country/disease extraction leaves those
// fields null rather than dropping the row.
func Outbreaks(data []byte) (*table.Table, error) {
	var envelope struct {
		Value []map[string]any `json:"value"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("outbreaks: decode: %w", err)
	}

	t := table.New(outbreakColumns, outbreakKinds)
	for _, rec := range envelope.Value {
		published, ok := parsePublication(firstString(rec, "PublicationDateAndTime", "PublicationDate", "DateCreated"))
		if !ok {
			continue
		}

		title := firstString(rec, "Title", "OverrideTitle")
		summary := stripHTML(firstString(rec, "Summary", "Overview"))

		var countryName, iso2, iso3 any
		if id, found := extract.Country(title); found {
			countryName, iso2, iso3 = id.Name, id.ISO2, id.ISO3
		}
		var disease any
		if d, found := extract.Disease(title); found {
			disease = d
		}

		t.Append(
			nullableString(recordID(rec)),
			nullableString(title),
			disease,
			countryName,
			iso2,
			iso3,
			nullableString(summary),
			published.Format("2006-01-02"),
			published.Year(),
			nullableString(firstString(rec, "ItemDefaultUrl", "Url", "UrlName")),
		)
	}
	return t, nil
}

// recordID prefers the numeric feed id, falling back to the url slug.
func recordID(rec map[string]any) string {
	if n, ok := rec["Id"].(json.Number); ok {
		return n.String()
	}
	return firstString(rec, "Id", "UrlName")
}

func firstString(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asString(rec[k]); s != "" {
			return s
		}
	}
	return ""
}

// publicationLayouts are tried in order against the raw date string and
// again against its first 10 characters.
var publicationLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parsePublication(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range publicationLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	if len(s) > 10 {
		if ts, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

var spaceRun = regexp.MustCompile(`\s+`)

// stripHTML reduces a feed summary to plain text: tags removed,
// entities unescaped, whitespace collapsed. Input that fails to parse
// as HTML is returned trimmed as-is.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(spaceRun.ReplaceAllString(doc.Text(), " "))
}
