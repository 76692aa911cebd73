package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledgepin/cli/internal/api"
	"github.com/knowledgepin/cli/internal/extract"
)

const canonicalPage = `<html><head><title>Canonical</title>
<link rel="canonical" href="https://example.com/a"></head><body><p>text</p></body></html>`

const plainPage = `<html><head><title>Plain</title></head><body><p>text</p></body></html>`

func writePages(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"a.html":             canonicalPage,
		"sub/b.htm":          plainPage,
		"notes.txt":          "not a page",
		"a_files/frame.html": plainPage,
	}
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return dir
}

func TestImport_DryRunListsPages(t *testing.T) {
	setupStdoutCapture(t)

	dir := writePages(t)
	fake := &FakeAPIService{}
	i := ImportCmd{backend: fake, loader: extract.FileLoader{}, log: zerolog.Nop()}

	require.NoError(t, i.Import(context.Background(), ImportInput{Dir: dir, DryRun: true}))

	out := outBuf.String()
	assert.Contains(t, out, "a.html")
	assert.Contains(t, out, "sub/b.htm")
	assert.NotContains(t, out, "notes.txt")
	assert.NotContains(t, out, "frame.html")
	assert.Contains(t, out, "Dry run: 2 pages")
	assert.Empty(t, fake.Saved)
}

func TestImport_SavesEveryPage(t *testing.T) {
	setupStdoutCapture(t)

	dir := writePages(t)
	fake := &FakeAPIService{
		GetListsFunc: func(ctx context.Context) ([]api.List, error) {
			return []api.List{{ID: "l1", Name: "Archive"}}, nil
		},
	}
	i := ImportCmd{backend: fake, loader: extract.FileLoader{}, log: zerolog.Nop()}

	err := i.Import(context.Background(), ImportInput{Dir: dir, Tags: []string{"archive"}})
	require.NoError(t, err)

	require.Len(t, fake.Saved, 2)
	byTitle := map[string]api.SavedItem{}
	for _, item := range fake.Saved {
		byTitle[item.Title] = item
	}
	assert.Equal(t, "https://example.com/a", byTitle["Canonical"].URL)
	assert.True(t, strings.HasPrefix(byTitle["Plain"].URL, "file://"))
	assert.True(t, strings.HasSuffix(byTitle["Plain"].URL, "/sub/b.htm"))
	for _, item := range fake.Saved {
		assert.Equal(t, []string{"archive"}, item.Tags)
		assert.Equal(t, "l1", item.ListID)
	}
	assert.Contains(t, outBuf.String(), "Imported 2 pages")
}

func TestImport_PatternNarrowsPages(t *testing.T) {
	setupStdoutCapture(t)

	dir := writePages(t)
	fake := &FakeAPIService{}
	i := ImportCmd{backend: fake, loader: extract.FileLoader{}, log: zerolog.Nop()}

	require.NoError(t, i.Import(context.Background(), ImportInput{Dir: dir, Patterns: []string{"sub/**"}}))
	require.Len(t, fake.Saved, 1)
	assert.Equal(t, "Plain", fake.Saved[0].Title)
}

func TestImport_ReportsFailures(t *testing.T) {
	setupStdoutCapture(t)

	dir := writePages(t)
	fake := &FakeAPIService{
		SaveItemFunc: func(ctx context.Context, item api.SavedItem) (api.SaveResult, error) {
			if item.Title == "Plain" {
				return api.SaveResult{}, &api.APIError{Endpoint: "/save_item", StatusCode: 500, Message: "db down"}
			}
			return api.SaveResult{ItemID: "ok"}, nil
		},
	}
	i := ImportCmd{backend: fake, loader: extract.FileLoader{}, log: zerolog.Nop()}

	err := i.Import(context.Background(), ImportInput{Dir: dir})
	require.Error(t, err)
	assert.Equal(t, "1 of 2 pages failed", err.Error())

	out := outBuf.String()
	assert.Contains(t, out, "db down")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "saved")
}

func TestImport_NotADirectory(t *testing.T) {
	dir := writePages(t)
	i := ImportCmd{backend: &FakeAPIService{}, loader: extract.FileLoader{}, log: zerolog.Nop()}

	err := i.Import(context.Background(), ImportInput{Dir: filepath.Join(dir, "a.html")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
}

func TestImport_InvalidPattern(t *testing.T) {
	dir := writePages(t)
	i := ImportCmd{backend: &FakeAPIService{}, loader: extract.FileLoader{}, log: zerolog.Nop()}

	err := i.Import(context.Background(), ImportInput{Dir: dir, Patterns: []string{"[a-"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}
