// Package extract turns fetched HTML into normalized plain text. A Profile
// describes one site family: where the title lives, an ordered list of
// locators for the main content region, which nodes are noise, and which
// text chunks are kept.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Locator finds a candidate main-content region. An empty selection means
// the locator does not apply and the next one is tried.
type Locator struct {
	Name string
	Find func(doc *goquery.Document) *goquery.Selection
}

// Selector builds a Locator returning the first match of a CSS selector.
func Selector(sel string) Locator {
	return Locator{
		Name: sel,
		Find: func(doc *goquery.Document) *goquery.Selection {
			return doc.Find(sel).First()
		},
	}
}

// Profile configures one extraction variant.
type Profile struct {
	Name string
	// TitleSelectors are tried in order; the first non-empty text wins.
	TitleSelectors []string
	// RequireTitle makes a missing title produce an empty Result.
	RequireTitle bool
	Locators     []Locator
	// Noise is removed from the chosen container before text collection.
	Noise string
	// Chunks selects the block-level nodes whose text is collected.
	Chunks string
	// MinChunk is the exclusive minimum trimmed length of a kept chunk.
	MinChunk int
	// Separator joins kept chunks; empty means a blank line.
	Separator string
	// ExcludeKeywords drops chunks whose lowercased text contains any of them.
	ExcludeKeywords []string
	// MaxLength caps the output in characters; zero means unlimited.
	MaxLength int
}

const (
	DefaultSeparator = "\n\n"

	DefaultMinSiteChunk      = 20
	DefaultMinExternalChunk  = 40
	DefaultMaxExternalLength = 8000
)

var siteNoise = "script, style, noscript, iframe, .author-box, .post-tags, .comments-area, " +
	".post-navigation, .related-posts, .sidebar, aside, nav, header, footer, .social-share"

// contentLocators is the cascade shared by both profiles.
func contentLocators() []Locator {
	return []Locator{
		Selector(".post-content"),
		Selector(".entry-content"),
		{
			Name: "main article",
			Find: func(doc *goquery.Document) *goquery.Selection {
				return doc.Find("main").First().Find("article").First()
			},
		},
		Selector("main"),
		Selector("article"),
	}
}

// Site is the profile for the blog's own article pages.
func Site() Profile {
	return Profile{
		Name:           "site",
		TitleSelectors: []string{"h1.entry-title", "h1", ".entry-title"},
		RequireTitle:   true,
		Locators:       contentLocators(),
		Noise:          siteNoise,
		Chunks:         "p, h2, h3, h4, li, blockquote",
		MinChunk:       DefaultMinSiteChunk,
		Separator:      DefaultSeparator,
	}
}

// External is the profile for competitor pages of unknown markup. After the
// shared cascade it tries a readability pass, then the whole body.
func External() Profile {
	locators := append(contentLocators(), Readability(), Selector("body"))
	return Profile{
		Name:            "external",
		TitleSelectors:  []string{"h1", "title"},
		Locators:        locators,
		Noise:           siteNoise,
		Chunks:          "p, h2, h3, h4, li, blockquote",
		MinChunk:        DefaultMinExternalChunk,
		Separator:       " ",
		ExcludeKeywords: []string{"cookie", "privacy", "subscribe"},
		MaxLength:       DefaultMaxExternalLength,
	}
}

// Result is the outcome of one extraction. An empty Text is not an error;
// the caller decides whether it is fatal.
type Result struct {
	Title string
	Text  string
	// Locator names the cascade entry that matched, empty when none did.
	Locator string
}

// Empty reports whether nothing usable was extracted.
func (r Result) Empty() bool {
	return r.Text == ""
}

// Length returns the text length in characters.
func (r Result) Length() int {
	return utf8.RuneCountInString(r.Text)
}

// Extract applies p to doc. It never fails; see Result.Empty.
func Extract(doc *goquery.Document, p Profile) Result {
	var res Result
	if doc == nil {
		return res
	}

	res.Title = findTitle(doc, p.TitleSelectors)

	container, name := locate(doc, p.Locators)
	if container == nil || (p.RequireTitle && res.Title == "") {
		return res
	}
	res.Locator = name

	if p.Noise != "" {
		container.Find(p.Noise).Remove()
	}

	chunks := collectChunks(container, p)
	var text string
	if len(chunks) == 0 {
		text = collapse(container.Text())
	} else {
		sep := p.Separator
		if sep == "" {
			sep = DefaultSeparator
		}
		text = strings.Join(chunks, sep)
	}

	res.Text = truncate(stripBoilerplate(text), p.MaxLength)
	return res
}

func findTitle(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			return collapse(t)
		}
	}
	return ""
}

func locate(doc *goquery.Document, locators []Locator) (*goquery.Selection, string) {
	for _, l := range locators {
		if sel := l.Find(doc); sel != nil && sel.Length() > 0 {
			return sel, l.Name
		}
	}
	return nil, ""
}

func collectChunks(container *goquery.Selection, p Profile) []string {
	var chunks []string
	container.Find(p.Chunks).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if utf8.RuneCountInString(text) <= p.MinChunk {
			return
		}
		lower := strings.ToLower(text)
		for _, kw := range p.ExcludeKeywords {
			if strings.Contains(lower, kw) {
				return
			}
		}
		chunks = append(chunks, collapse(text))
	})
	return chunks
}

// collapse replaces every whitespace run with a single space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var boilerplate = regexp.MustCompile(`(?is)(read more|share this|facebook|whatsapp|linkedin).*`)

// stripBoilerplate cuts the text at the first share-widget phrase.
func stripBoilerplate(s string) string {
	return strings.TrimSpace(boilerplate.ReplaceAllString(s, ""))
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}
