package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/pterm/pterm"

	"github.com/knowledgepin/cli/internal/api"
	"github.com/knowledgepin/cli/internal/extract"
)

var outBuf bytes.Buffer

// setupStdoutCapture sends pterm output to outBuf for the duration of the test.
func setupStdoutCapture(t *testing.T) {
	t.Helper()
	outBuf.Reset()
	pterm.SetDefaultOutput(&outBuf)
	pterm.DisableColor()
	t.Cleanup(func() {
		pterm.SetDefaultOutput(os.Stdout)
		pterm.EnableColor()
	})
}

// captureStdout returns what fn writes to os.Stdout. JSON output bypasses pterm.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	t.Cleanup(func() {
		os.Stdout = oldStdout
	})

	fn()

	w.Close()
	os.Stdout = oldStdout
	var stdoutBuf bytes.Buffer
	_, _ = io.Copy(&stdoutBuf, r)
	return stdoutBuf.String()
}

// FakeAPIService stands in for *api.Client in every command.
type FakeAPIService struct {
	mu sync.Mutex

	GenerateSummaryFunc func(ctx context.Context, page api.PageRequest) (string, error)
	SuggestTagsFunc     func(ctx context.Context, page api.PageRequest) ([]string, error)
	GetListsFunc        func(ctx context.Context) ([]api.List, error)
	CreateListFunc      func(ctx context.Context, name string) (api.List, error)
	RelevantListFunc    func(ctx context.Context, pageURL, title string) (*api.List, error)
	GetItemsFunc        func(ctx context.Context, f api.ItemFilter) ([]api.SavedItem, error)
	SaveItemFunc        func(ctx context.Context, item api.SavedItem) (api.SaveResult, error)
	UpdateItemFunc      func(ctx context.Context, id, field string, value any) error
	DeleteItemFunc      func(ctx context.Context, id string) error
	HealthCheckFunc     func(ctx context.Context) (api.Health, error)

	Saved   []api.SavedItem
	Queries []api.ItemFilter
	Updates map[string]any
	Deletes []string
}

func (f *FakeAPIService) GenerateSummary(ctx context.Context, page api.PageRequest) (string, error) {
	if f.GenerateSummaryFunc != nil {
		return f.GenerateSummaryFunc(ctx, page)
	}
	return "", nil
}

func (f *FakeAPIService) SuggestTags(ctx context.Context, page api.PageRequest) ([]string, error) {
	if f.SuggestTagsFunc != nil {
		return f.SuggestTagsFunc(ctx, page)
	}
	return []string{}, nil
}

func (f *FakeAPIService) GetLists(ctx context.Context) ([]api.List, error) {
	if f.GetListsFunc != nil {
		return f.GetListsFunc(ctx)
	}
	return []api.List{}, nil
}

func (f *FakeAPIService) CreateList(ctx context.Context, name string) (api.List, error) {
	if f.CreateListFunc != nil {
		return f.CreateListFunc(ctx, name)
	}
	return api.List{ID: "new", Name: name}, nil
}

func (f *FakeAPIService) RelevantList(ctx context.Context, pageURL, title string) (*api.List, error) {
	if f.RelevantListFunc != nil {
		return f.RelevantListFunc(ctx, pageURL, title)
	}
	return nil, nil
}

func (f *FakeAPIService) GetItems(ctx context.Context, filter api.ItemFilter) ([]api.SavedItem, error) {
	f.mu.Lock()
	f.Queries = append(f.Queries, filter)
	f.mu.Unlock()
	if f.GetItemsFunc != nil {
		return f.GetItemsFunc(ctx, filter)
	}
	return []api.SavedItem{}, nil
}

func (f *FakeAPIService) SaveItem(ctx context.Context, item api.SavedItem) (api.SaveResult, error) {
	f.mu.Lock()
	f.Saved = append(f.Saved, item)
	f.mu.Unlock()
	if f.SaveItemFunc != nil {
		return f.SaveItemFunc(ctx, item)
	}
	return api.SaveResult{Message: "Item saved successfully", ItemID: "new"}, nil
}

func (f *FakeAPIService) UpdateItem(ctx context.Context, id, field string, value any) error {
	f.mu.Lock()
	if f.Updates == nil {
		f.Updates = map[string]any{}
	}
	f.Updates[id+":"+field] = value
	f.mu.Unlock()
	if f.UpdateItemFunc != nil {
		return f.UpdateItemFunc(ctx, id, field, value)
	}
	return nil
}

func (f *FakeAPIService) DeleteItem(ctx context.Context, id string) error {
	f.mu.Lock()
	f.Deletes = append(f.Deletes, id)
	f.mu.Unlock()
	if f.DeleteItemFunc != nil {
		return f.DeleteItemFunc(ctx, id)
	}
	return nil
}

func (f *FakeAPIService) HealthCheck(ctx context.Context) (api.Health, error) {
	if f.HealthCheckFunc != nil {
		return f.HealthCheckFunc(ctx)
	}
	return api.Health{Status: "healthy"}, nil
}

func (f *FakeAPIService) BaseURL() string {
	return "http://backend.test"
}

// FakePrompter answers prompts without a terminal. Unset funcs accept defaults.
type FakePrompter struct {
	TextFunc        func(label, def string) (string, error)
	MultiSelectFunc func(label string, options, defaults []string) ([]string, error)
	SelectFunc      func(label string, options []string, def string) (string, error)
	ConfirmFunc     func(label string) (bool, error)
}

func (p *FakePrompter) Text(label, def string) (string, error) {
	if p.TextFunc != nil {
		return p.TextFunc(label, def)
	}
	return def, nil
}

func (p *FakePrompter) MultiSelect(label string, options, defaults []string) ([]string, error) {
	if p.MultiSelectFunc != nil {
		return p.MultiSelectFunc(label, options, defaults)
	}
	return defaults, nil
}

func (p *FakePrompter) Select(label string, options []string, def string) (string, error) {
	if p.SelectFunc != nil {
		return p.SelectFunc(label, options, def)
	}
	return def, nil
}

func (p *FakePrompter) Confirm(label string) (bool, error) {
	if p.ConfirmFunc != nil {
		return p.ConfirmFunc(label)
	}
	return true, nil
}

// pages serves HTML by URL.
type pages map[string]string

func (p pages) Load(_ context.Context, url string) (*goquery.Document, error) {
	html, ok := p[url]
	if !ok {
		return nil, fmt.Errorf("no page %s", url)
	}
	return extract.Parse(strings.NewReader(html))
}

const fooPage = `<html><head><title>Foo</title>
<meta property="og:image" content="http://x.com/hero.png"></head>
<body><p>Some words about foo.</p></body></html>`

var testPages = pages{"http://x.com": fooPage}
