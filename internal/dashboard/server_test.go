package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledgepin/cli/internal/api"
)

func newTestServer(backend *FakeBackend) *Server {
	return NewServer(NewController(backend, zerolog.Nop()), zerolog.Nop())
}

func do(t *testing.T, s *Server, method, target, body string) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestServer_GalleryPage(t *testing.T) {
	backend := itemsBackend()
	backend.GetListsFunc = func(ctx context.Context) ([]api.List, error) {
		return []api.List{{ID: "l1", Name: "Reading"}}, nil
	}
	s := newTestServer(backend)

	resp, body := do(t, s, http.MethodGet, "/?tag=go", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "Reading")
	assert.Contains(t, body, `data-item-id="1"`)
	assert.Contains(t, body, "No Image")
	assert.Contains(t, body, `<option value="go" selected>go</option>`)
	assert.Equal(t, api.ItemFilter{List: "all", Tag: "go"}, backend.Queries[0])
}

func TestServer_GalleryShowsFetchError(t *testing.T) {
	backend := &FakeBackend{
		GetItemsFunc: func(ctx context.Context, f api.ItemFilter) ([]api.SavedItem, error) {
			return nil, errors.New("down")
		},
	}
	resp, body := do(t, newTestServer(backend), http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, FetchItemsFailed)
}

func TestServer_APIItems(t *testing.T) {
	backend := itemsBackend()
	resp, body := do(t, newTestServer(backend), http.MethodGet, "/api/items?list=l1&platform=go.dev", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got itemsResponse
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Len(t, got.Items, 3)
	assert.Equal(t, Filter{List: "l1", Platform: "go.dev"}, got.Filter)
	assert.Equal(t, []api.ItemFilter{{List: "l1", Platform: "go.dev"}}, backend.Queries)
}

func TestServer_APIItemsEmpty(t *testing.T) {
	resp, body := do(t, newTestServer(&FakeBackend{}), http.MethodGet, "/api/items", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"items":[]`)
}

func TestServer_APILists(t *testing.T) {
	resp, body := do(t, newTestServer(&FakeBackend{}), http.MethodGet, "/api/lists", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, body)
}

func TestServer_UpdateItem(t *testing.T) {
	var gotValue any
	backend := itemsBackend()
	backend.UpdateItemFunc = func(ctx context.Context, id, field string, value any) error {
		gotValue = value
		return nil
	}
	s := newTestServer(backend)

	resp, _ := do(t, s, http.MethodPost, "/api/items/2", `{"field":"tags","value":["a","b"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"a", "b"}, gotValue)
	assert.Equal(t, []string{"2:tags"}, backend.Updates)

	resp, _ = do(t, s, http.MethodPost, "/api/items/2", `{"field":"url","value":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, s, http.MethodPost, "/api/items/2", `{"field":"title","value":5}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_DeleteItem(t *testing.T) {
	backend := itemsBackend()
	resp, body := do(t, newTestServer(backend), http.MethodPost, "/api/items/9/delete", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"9"}, backend.Deletes)
	assert.Contains(t, body, `"items":[`)
}

func TestServer_EncodedItemIDs(t *testing.T) {
	backend := itemsBackend()
	s := newTestServer(backend)

	_, page := do(t, s, http.MethodGet, "/", "")
	assert.Contains(t, page, `"/api/items/" + encodeURIComponent(card.dataset.itemId)`)
	assert.NotContains(t, page, `"/api/items/" + id`)

	resp, body := do(t, s, http.MethodPost, "/api/items/a%2Fb%20c", `{"field":"title","value":"T"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"id":"a/b c"`)
	assert.Equal(t, []string{"a/b c:title"}, backend.Updates)

	resp, _ = do(t, s, http.MethodPost, "/api/items/x%2Fy/delete", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"x/y"}, backend.Deletes)
}

func TestServer_ConcurrentItemRequestsGetTheirOwnItems(t *testing.T) {
	slow := make(chan struct{})
	entered := make(chan struct{})
	backend := &FakeBackend{
		GetItemsFunc: func(ctx context.Context, f api.ItemFilter) ([]api.SavedItem, error) {
			if f.List == "slow" {
				close(entered)
				<-slow
				return []api.SavedItem{{ID: "s", URL: "https://slow.example/a"}}, nil
			}
			return []api.SavedItem{{ID: "f", URL: "https://fast.example/b"}}, nil
		},
	}
	s := newTestServer(backend)

	type reply struct {
		status int
		body   string
	}
	done := make(chan reply, 1)
	go func() {
		resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/items?list=slow", nil), -1)
		if err != nil {
			done <- reply{}
			return
		}
		raw, _ := io.ReadAll(resp.Body)
		done <- reply{status: resp.StatusCode, body: string(raw)}
	}()
	<-entered

	_, fastBody := do(t, s, http.MethodGet, "/api/items?list=fast", "")
	close(slow)
	slowReply := <-done
	require.Equal(t, http.StatusOK, slowReply.status)

	var fast, slowGot itemsResponse
	require.NoError(t, json.Unmarshal([]byte(fastBody), &fast))
	require.NoError(t, json.Unmarshal([]byte(slowReply.body), &slowGot))

	require.Len(t, fast.Items, 1)
	assert.Equal(t, "f", fast.Items[0].ID)
	assert.Equal(t, "fast", fast.Filter.List)
	require.Len(t, slowGot.Items, 1)
	assert.Equal(t, "s", slowGot.Items[0].ID)
	assert.Equal(t, "slow", slowGot.Filter.List)
	assert.Equal(t, []string{"slow.example"}, slowGot.Options.Platforms)
}

func TestAssign_ShortestColumn(t *testing.T) {
	cols := Assign([]int{5, 1, 1, 1}, 2, 0)
	assert.Equal(t, [][]int{{0}, {1, 2, 3}}, cols)

	cols = Assign([]int{2, 2, 2}, 3, 1)
	assert.Equal(t, [][]int{{0}, {1}, {2}}, cols)

	cols = Assign([]int{1, 1}, 0, 0)
	assert.Equal(t, [][]int{{0, 1}}, cols)
}

func TestMasonry(t *testing.T) {
	assert.Equal(t, "", Masonry(nil, 3, 1))

	out := Masonry([]string{"a\na\na", "b", "c"}, 2, 1)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "a b"))
	assert.True(t, strings.HasPrefix(lines[2], "a c"))
}

func TestGallery(t *testing.T) {
	assert.Equal(t, NoItemsText, Gallery([]api.SavedItem{}, 3, 120))

	out := Gallery(sampleItems, 2, 80)
	assert.Contains(t, out, "#go #lang")
	assert.Contains(t, out, "example.com")
	assert.Greater(t, lipgloss.Height(out), 1)
}
