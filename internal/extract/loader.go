package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultUserAgent is sent when fetching pages over HTTP.
const DefaultUserAgent = "Mozilla/5.0 (compatible; KnowledgePin/1.0)"

// Loader turns a URL into a parsed document.
type Loader interface {
	Load(ctx context.Context, rawURL string) (*goquery.Document, error)
}

// HTTPLoader fetches pages over HTTP(S).
type HTTPLoader struct {
	Client    *http.Client
	UserAgent string
}

func (l HTTPLoader) Load(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	ua := l.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	return Parse(resp.Body)
}

// FileLoader reads saved pages from disk. It accepts file:// URLs and plain paths.
type FileLoader struct{}

func (FileLoader) Load(_ context.Context, rawURL string) (*goquery.Document, error) {
	path := FilePath(rawURL)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// SchemeLoader picks FileLoader for file URLs and HTTP for everything else.
type SchemeLoader struct {
	HTTP HTTPLoader
	File FileLoader
}

func (l SchemeLoader) Load(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if IsFileURL(rawURL) {
		return l.File.Load(ctx, rawURL)
	}
	return l.HTTP.Load(ctx, rawURL)
}

// IsFileURL reports whether rawURL points at the local filesystem.
func IsFileURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "file" || u.Scheme == ""
}

// FilePath converts a file:// URL to a filesystem path. Other input is returned as is.
func FilePath(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Scheme == "file" {
		return filepath.FromSlash(u.Path)
	}
	return rawURL
}

// FileURL converts a filesystem path to a file:// URL.
func FileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// CanonicalURL returns the page's declared canonical URL (link rel=canonical, then
// og:url), or fallback when the page declares none.
func CanonicalURL(doc *goquery.Document, fallback string) string {
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		return strings.TrimSpace(href)
	}
	if v, ok := doc.Find(`meta[property="og:url"]`).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}
