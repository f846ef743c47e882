package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

var placeholderURL = &url.URL{Scheme: "https", Host: "localhost", Path: "/"}

// Readability locates the main content with go-readability's scoring. It is
// the last heuristic before falling back to the whole body.
func Readability() Locator {
	return Locator{
		Name: "readability",
		Find: func(doc *goquery.Document) *goquery.Selection {
			html, err := doc.Html()
			if err != nil {
				return nil
			}
			pageURL := doc.Url
			if pageURL == nil {
				pageURL = placeholderURL
			}
			article, err := readability.FromReader(strings.NewReader(html), pageURL)
			if err != nil || strings.TrimSpace(article.Content) == "" {
				return nil
			}
			parsed, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
			if err != nil {
				return nil
			}
			return parsed.Find("body")
		},
	}
}
