// Package extract reads page metadata and readable text out of an HTML document.
package extract

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// MaxWords is the word budget for captured page content.
	MaxWords = 1000
	// Ellipsis marks content that was cut at MaxWords.
	Ellipsis = "..."
)

// PageCapture is everything a capture session needs to know about a page.
type PageCapture struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	Content     string `json:"content"`
}

// PageInfo is the reply to a getPageInfo request.
type PageInfo struct {
	Description string `json:"description"`
	Image       string `json:"image"`
	Content     string `json:"content"`
}

// PageData is the reply to a getPageData request.
type PageData struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Parse builds a document from raw HTML.
func Parse(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Capture extracts a PageCapture from doc. Missing elements produce empty fields.
func Capture(doc *goquery.Document, pageURL string) PageCapture {
	return PageCapture{
		Title:       Title(doc),
		URL:         pageURL,
		Description: Description(doc),
		ImageURL:    Image(doc, pageURL),
		Content:     Content(doc),
	}
}

// Info builds the getPageInfo reply for doc.
func Info(doc *goquery.Document, pageURL string) PageInfo {
	return PageInfo{
		Description: Description(doc),
		Image:       Image(doc, pageURL),
		Content:     Content(doc),
	}
}

// Data builds the getPageData reply for doc.
func Data(doc *goquery.Document, pageURL string) PageData {
	return PageData{
		Title:       Title(doc),
		URL:         pageURL,
		Description: Description(doc),
	}
}

// Title returns the text of the first <title> element.
func Title(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// Description returns the content of meta[name="description"].
func Description(doc *goquery.Document) string {
	v, _ := doc.Find(`meta[name="description"]`).First().Attr("content")
	return v
}

// Image resolves the page's hero image: the Open Graph image, then the first
// <img> on the page, then nothing. Relative img sources are resolved against pageURL.
func Image(doc *goquery.Document, pageURL string) string {
	if og := doc.Find(`meta[property="og:image"]`).First(); og.Length() > 0 {
		v, _ := og.Attr("content")
		return v
	}

	src, ok := doc.Find("img").First().Attr("src")
	if !ok {
		return ""
	}
	return resolve(pageURL, src)
}

// Content returns the article text when the page has an <article>, otherwise
// the text of every paragraph separated by blank lines, cut to MaxWords.
func Content(doc *goquery.Document) string {
	var content string
	if article := doc.Find("article").First(); article.Length() > 0 {
		content = readableText(article)
	} else {
		var paragraphs []string
		doc.Find("p").Each(func(_ int, p *goquery.Selection) {
			paragraphs = append(paragraphs, readableText(p))
		})
		content = strings.Join(paragraphs, "\n\n")
	}
	return TruncateWords(content, MaxWords)
}

// TruncateWords keeps the first n whitespace-separated words of s followed by
// Ellipsis. Strings with n words or fewer come back unchanged.
func TruncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ") + Ellipsis
}

// blockTags end a line of readable text, as they would in a rendered page.
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "dd": true,
	"div": true, "dl": true, "dt": true, "figcaption": true, "figure": true,
	"footer": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true, "td": true,
	"th": true, "tr": true, "ul": true,
}

var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
}

// readableText returns the text of sel with one blank line between block
// elements and runs of whitespace collapsed inside each block.
func readableText(sel *goquery.Selection) string {
	var (
		blocks []string
		cur    strings.Builder
	)
	flush := func() {
		if line := strings.Join(strings.Fields(cur.String()), " "); line != "" {
			blocks = append(blocks, line)
		}
		cur.Reset()
	}
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, node *goquery.Selection) {
			name := goquery.NodeName(node)
			switch {
			case name == "#text":
				cur.WriteString(node.Text())
			case skippedTags[name]:
			case name == "br":
				flush()
			case blockTags[name]:
				flush()
				walk(node)
				flush()
			default:
				walk(node)
			}
		})
	}
	walk(sel)
	flush()
	return strings.Join(blocks, "\n\n")
}

func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return ref
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
