package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledgepin/cli/internal/api"
)

type FakeBackend struct {
	mu sync.Mutex

	GetListsFunc   func(ctx context.Context) ([]api.List, error)
	GetItemsFunc   func(ctx context.Context, f api.ItemFilter) ([]api.SavedItem, error)
	UpdateItemFunc func(ctx context.Context, id, field string, value any) error
	DeleteItemFunc func(ctx context.Context, id string) error

	Queries []api.ItemFilter
	Updates []string
	Deletes []string
}

func (f *FakeBackend) GetLists(ctx context.Context) ([]api.List, error) {
	if f.GetListsFunc != nil {
		return f.GetListsFunc(ctx)
	}
	return []api.List{}, nil
}

func (f *FakeBackend) GetItems(ctx context.Context, filter api.ItemFilter) ([]api.SavedItem, error) {
	f.mu.Lock()
	f.Queries = append(f.Queries, filter)
	f.mu.Unlock()
	if f.GetItemsFunc != nil {
		return f.GetItemsFunc(ctx, filter)
	}
	return []api.SavedItem{}, nil
}

func (f *FakeBackend) UpdateItem(ctx context.Context, id, field string, value any) error {
	f.mu.Lock()
	f.Updates = append(f.Updates, id+":"+field)
	f.mu.Unlock()
	if f.UpdateItemFunc != nil {
		return f.UpdateItemFunc(ctx, id, field, value)
	}
	return nil
}

func (f *FakeBackend) DeleteItem(ctx context.Context, id string) error {
	f.mu.Lock()
	f.Deletes = append(f.Deletes, id)
	f.mu.Unlock()
	if f.DeleteItemFunc != nil {
		return f.DeleteItemFunc(ctx, id)
	}
	return nil
}

var sampleItems = []api.SavedItem{
	{ID: "1", URL: "https://go.dev/blog/a", Title: "A", Note: "first", Tags: []string{"go", "lang"}},
	{ID: "2", URL: "https://example.com/b", Title: "B", Tags: []string{"web", "go"}},
	{ID: "3", URL: "https://go.dev/doc", Title: "C", Tags: nil},
}

func itemsBackend() *FakeBackend {
	return &FakeBackend{
		GetItemsFunc: func(ctx context.Context, f api.ItemFilter) ([]api.SavedItem, error) {
			return sampleItems, nil
		},
	}
}

func TestController_LoadFetchesListsAndItems(t *testing.T) {
	backend := itemsBackend()
	backend.GetListsFunc = func(ctx context.Context) ([]api.List, error) {
		return []api.List{{ID: "l1", Name: "Reading"}}, nil
	}
	c := NewController(backend, zerolog.Nop())

	require.NoError(t, c.Load(context.Background()))

	v := c.View()
	assert.Equal(t, []api.List{{ID: "l1", Name: "Reading"}}, v.Lists)
	assert.Len(t, v.Items, 3)
	assert.Equal(t, []string{"go", "lang", "web"}, v.Options.Tags)
	assert.Equal(t, []string{"go.dev", "example.com"}, v.Options.Platforms)
	assert.Equal(t, []api.ItemFilter{{List: "all"}}, backend.Queries)
}

func TestController_LoadListsFailureDoesNotBlockItems(t *testing.T) {
	backend := itemsBackend()
	backend.GetListsFunc = func(ctx context.Context) ([]api.List, error) {
		return nil, errors.New("down")
	}
	c := NewController(backend, zerolog.Nop())

	err := c.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch lists")

	v := c.View()
	assert.Len(t, v.Items, 3)
	assert.Empty(t, v.Error)
}

func TestController_FetchItemsFailureShowsMessage(t *testing.T) {
	backend := &FakeBackend{
		GetItemsFunc: func(ctx context.Context, f api.ItemFilter) ([]api.SavedItem, error) {
			return nil, &api.APIError{Endpoint: "/get_items", StatusCode: 500}
		},
	}
	c := NewController(backend, zerolog.Nop())

	err := c.FetchItems(context.Background())
	require.Error(t, err)
	assert.Equal(t, FetchItemsFailed, c.View().Error)
	assert.Empty(t, c.View().Items)
}

func TestController_SelectionsRefetchWithFilter(t *testing.T) {
	backend := itemsBackend()
	c := NewController(backend, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, c.SelectList(ctx, "l1"))
	require.NoError(t, c.SelectTag(ctx, "go"))
	require.NoError(t, c.SelectPlatform(ctx, "go.dev"))
	require.NoError(t, c.SelectList(ctx, ""))

	assert.Equal(t, []api.ItemFilter{
		{List: "l1"},
		{List: "l1", Tag: "go"},
		{List: "l1", Tag: "go", Platform: "go.dev"},
		{List: "all", Tag: "go", Platform: "go.dev"},
	}, backend.Queries)
	assert.Equal(t, Filter{List: "all", Tag: "go", Platform: "go.dev"}, c.View().Filter)
}

func TestController_UpdateFieldEditsLocallyFirst(t *testing.T) {
	backend := itemsBackend()
	c := NewController(backend, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, c.FetchItems(ctx))

	backend.UpdateItemFunc = func(ctx context.Context, id, field string, value any) error {
		item, ok := c.Item(id)
		require.True(t, ok)
		assert.Equal(t, "Renamed", item.Title)
		return nil
	}
	require.NoError(t, c.UpdateField(ctx, "1", api.FieldTitle, "Renamed"))

	require.NoError(t, c.UpdateField(ctx, "2", api.FieldTags, []string{"x"}))
	item, _ := c.Item("2")
	assert.Equal(t, []string{"x"}, item.Tags)
	assert.Equal(t, []string{"1:title", "2:tags"}, backend.Updates)
}

func TestController_UpdateFieldFailureKeepsLocalEdit(t *testing.T) {
	backend := itemsBackend()
	backend.UpdateItemFunc = func(ctx context.Context, id, field string, value any) error {
		return errors.New("offline")
	}
	c := NewController(backend, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, c.FetchItems(ctx))

	err := c.UpdateField(ctx, "1", api.FieldNote, "edited")
	require.Error(t, err)

	item, _ := c.Item("1")
	assert.Equal(t, "edited", item.Note)
}

func TestController_UpdateFieldRejectsBadInput(t *testing.T) {
	backend := itemsBackend()
	c := NewController(backend, zerolog.Nop())
	ctx := context.Background()

	assert.ErrorIs(t, c.UpdateField(ctx, "1", "url", "x"), ErrUnknownField)
	assert.ErrorIs(t, c.UpdateField(ctx, "1", api.FieldTags, "go"), ErrFieldValue)
	assert.Empty(t, backend.Updates)
}

func TestController_DeleteRefetches(t *testing.T) {
	backend := itemsBackend()
	c := NewController(backend, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, c.FetchItems(ctx))

	require.NoError(t, c.Delete(ctx, "missing"))
	assert.Equal(t, []string{"missing"}, backend.Deletes)
	assert.Len(t, backend.Queries, 2)
}

func TestController_DeleteFailureDoesNotRefetch(t *testing.T) {
	backend := itemsBackend()
	backend.DeleteItemFunc = func(ctx context.Context, id string) error {
		return errors.New("nope")
	}
	c := NewController(backend, zerolog.Nop())

	require.Error(t, c.Delete(context.Background(), "1"))
	assert.Empty(t, backend.Queries)
}

func TestBuildFilterOptions(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		opts := BuildFilterOptions([]api.SavedItem{})
		assert.Empty(t, opts.Tags)
		assert.Empty(t, opts.Platforms)
	})

	t.Run("skips unparseable urls", func(t *testing.T) {
		opts := BuildFilterOptions([]api.SavedItem{{URL: "::bad"}, {URL: "https://a.io/x", Tags: []string{"t"}}})
		assert.Equal(t, []string{"a.io"}, opts.Platforms)
		assert.Equal(t, []string{"t"}, opts.Tags)
	})
}

func TestController_DeleteRefetchFailure(t *testing.T) {
	backend := &FakeBackend{
		GetItemsFunc: func(ctx context.Context, f api.ItemFilter) ([]api.SavedItem, error) {
			return nil, errors.New("down")
		},
	}
	c := NewController(backend, zerolog.Nop())

	err := c.Delete(context.Background(), "1")
	assert.ErrorIs(t, err, ErrRefetch)
	assert.Equal(t, []string{"1"}, backend.Deletes)
	assert.Equal(t, FetchItemsFailed, c.View().Error)
}

func TestController_QueryReturnsItsOwnResult(t *testing.T) {
	slow := make(chan struct{})
	entered := make(chan struct{})
	backend := &FakeBackend{
		GetItemsFunc: func(ctx context.Context, f api.ItemFilter) ([]api.SavedItem, error) {
			if f.List == "slow" {
				close(entered)
				<-slow
				return []api.SavedItem{{ID: "s", URL: "https://slow.example/a", Tags: []string{"old"}}}, nil
			}
			return []api.SavedItem{{ID: "f", URL: "https://fast.example/b", Tags: []string{"new"}}}, nil
		},
	}
	c := NewController(backend, zerolog.Nop())

	done := make(chan View, 1)
	go func() {
		v, err := c.Query(context.Background(), Filter{List: "slow"})
		assert.NoError(t, err)
		done <- v
	}()
	<-entered

	fast, err := c.Query(context.Background(), Filter{List: "fast"})
	require.NoError(t, err)
	close(slow)
	slowView := <-done

	assert.Equal(t, "slow", slowView.Filter.List)
	require.Len(t, slowView.Items, 1)
	assert.Equal(t, "s", slowView.Items[0].ID)
	assert.Equal(t, []string{"old"}, slowView.Options.Tags)

	assert.Equal(t, "fast", fast.Filter.List)
	require.Len(t, fast.Items, 1)
	assert.Equal(t, "f", fast.Items[0].ID)

	// The stale fetch does not overwrite the current filter's items.
	v := c.View()
	assert.Equal(t, "fast", v.Filter.List)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "f", v.Items[0].ID)
}
