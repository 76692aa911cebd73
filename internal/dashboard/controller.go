// Package dashboard browses and edits the saved collection: list navigation,
// tag and platform filters, inline edits and deletes.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/knowledgepin/cli/internal/api"
)

// FetchItemsFailed is shown in place of the gallery when items cannot be loaded.
const FetchItemsFailed = "Unable to fetch items. Please check your connection and try again."

var (
	ErrUnknownField = errors.New("unknown item field")
	ErrFieldValue   = errors.New("invalid value for field")
	// ErrRefetch means a delete succeeded but the item list could not be reloaded.
	ErrRefetch = errors.New("reload after delete failed")
)

// Backend is the subset of the API client the dashboard uses.
type Backend interface {
	GetLists(ctx context.Context) ([]api.List, error)
	GetItems(ctx context.Context, f api.ItemFilter) ([]api.SavedItem, error)
	UpdateItem(ctx context.Context, id, field string, value any) error
	DeleteItem(ctx context.Context, id string) error
}

// Filter selects which items are shown. An empty List means every list.
type Filter struct {
	List     string `json:"list"`
	Tag      string `json:"tag"`
	Platform string `json:"platform"`
}

func (f Filter) normalized() Filter {
	if f.List == "" {
		f.List = api.AllLists
	}
	return f
}

// ItemFilter converts f to the backend query.
func (f Filter) ItemFilter() api.ItemFilter {
	f = f.normalized()
	return api.ItemFilter{List: f.List, Tag: f.Tag, Platform: f.Platform}
}

// View is a snapshot of the dashboard for rendering.
type View struct {
	Filter  Filter          `json:"filter"`
	Lists   []api.List      `json:"lists"`
	Items   []api.SavedItem `json:"items"`
	Options FilterOptions   `json:"options"`
	Error   string          `json:"error,omitempty"`
}

// Controller holds the dashboard state. It is safe for concurrent use.
type Controller struct {
	backend Backend
	log     zerolog.Logger

	mu      sync.Mutex
	filter  Filter
	lists   []api.List
	items   []api.SavedItem
	options FilterOptions
	errMsg  string
}

func NewController(backend Backend, log zerolog.Logger) *Controller {
	return &Controller{
		backend: backend,
		log:     log,
		filter:  Filter{List: api.AllLists},
	}
}

// Load fetches lists and items. The two requests are independent; a failure of
// one does not prevent the other from updating.
func (c *Controller) Load(ctx context.Context) error {
	var (
		wg               sync.WaitGroup
		listErr, itemErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		listErr = c.FetchLists(ctx)
	}()
	go func() {
		defer wg.Done()
		itemErr = c.FetchItems(ctx)
	}()
	wg.Wait()
	return errors.Join(listErr, itemErr)
}

// FetchLists replaces the list navigation.
func (c *Controller) FetchLists(ctx context.Context) error {
	_, err := c.fetchLists(ctx)
	return err
}

func (c *Controller) fetchLists(ctx context.Context) ([]api.List, error) {
	lists, err := c.backend.GetLists(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("error fetching lists")
		return nil, fmt.Errorf("fetch lists: %w", err)
	}
	c.mu.Lock()
	c.lists = slices.Clone(lists)
	c.mu.Unlock()
	return slices.Clone(lists), nil
}

// FetchItems queries the backend with the current filter and rebuilds the
// filter options from the result.
func (c *Controller) FetchItems(ctx context.Context) error {
	c.mu.Lock()
	f := c.filter
	c.mu.Unlock()
	_, err := c.fetchItems(ctx, f)
	return err
}

// Apply replaces the whole filter and re-fetches.
func (c *Controller) Apply(ctx context.Context, f Filter) error {
	_, err := c.Query(ctx, f)
	return err
}

// Query makes f the current filter, fetches its items and returns a view built
// from that fetch. Concurrent queries each get their own result; only the
// fetch for the filter that is still current updates the shared state.
func (c *Controller) Query(ctx context.Context, f Filter) (View, error) {
	f = f.normalized()
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
	return c.fetchItems(ctx, f)
}

func (c *Controller) fetchItems(ctx context.Context, f Filter) (View, error) {
	items, err := c.backend.GetItems(ctx, f.ItemFilter())

	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.filter == f
	v := View{Filter: f, Lists: slices.Clone(c.lists)}
	if err != nil {
		c.log.Error().Err(err).Msg("error fetching items")
		v.Error = FetchItemsFailed
		if current {
			c.items = nil
			c.errMsg = FetchItemsFailed
		}
		return v, fmt.Errorf("fetch items: %w", err)
	}
	v.Items = slices.Clone(items)
	v.Options = BuildFilterOptions(items)
	if current {
		c.items = slices.Clone(items)
		c.options = v.Options
		c.errMsg = ""
	}
	return v, nil
}

// SelectList switches the list and re-fetches.
func (c *Controller) SelectList(ctx context.Context, list string) error {
	c.mu.Lock()
	c.filter.List = list
	c.filter = c.filter.normalized()
	c.mu.Unlock()
	return c.FetchItems(ctx)
}

// SelectTag switches the tag filter and re-fetches. "" clears it.
func (c *Controller) SelectTag(ctx context.Context, tag string) error {
	c.mu.Lock()
	c.filter.Tag = tag
	c.mu.Unlock()
	return c.FetchItems(ctx)
}

// SelectPlatform switches the platform filter and re-fetches. "" clears it.
func (c *Controller) SelectPlatform(ctx context.Context, platform string) error {
	c.mu.Lock()
	c.filter.Platform = platform
	c.mu.Unlock()
	return c.FetchItems(ctx)
}

// UpdateField edits one field of an item. The local copy changes first and is
// not rolled back if the backend call fails. Tags take a []string, title and
// note a string.
func (c *Controller) UpdateField(ctx context.Context, id, field string, value any) error {
	if err := c.applyLocal(id, field, value); err != nil {
		return err
	}
	if err := c.backend.UpdateItem(ctx, id, field, value); err != nil {
		c.log.Error().Err(err).Str("item", id).Str("field", field).Msg("error updating item")
		return fmt.Errorf("update %s of item %s: %w", field, id, err)
	}
	c.log.Debug().Str("item", id).Str("field", field).Msg("item updated")
	return nil
}

func (c *Controller) applyLocal(id, field string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := slices.IndexFunc(c.items, func(item api.SavedItem) bool { return item.ID == id })

	switch field {
	case api.FieldTitle, api.FieldNote:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w %s: %T", ErrFieldValue, field, value)
		}
		if i < 0 {
			return nil
		}
		if field == api.FieldTitle {
			c.items[i].Title = s
		} else {
			c.items[i].Note = s
		}
	case api.FieldTags:
		tags, ok := value.([]string)
		if !ok {
			return fmt.Errorf("%w %s: %T", ErrFieldValue, field, value)
		}
		if i >= 0 {
			c.items[i].Tags = slices.Clone(tags)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// Delete removes an item on the backend and re-fetches the items on success.
// The id need not be among the displayed items.
func (c *Controller) Delete(ctx context.Context, id string) error {
	_, err := c.deleteItem(ctx, id)
	return err
}

func (c *Controller) deleteItem(ctx context.Context, id string) (View, error) {
	if err := c.backend.DeleteItem(ctx, id); err != nil {
		c.log.Error().Err(err).Str("item", id).Msg("error deleting item")
		return View{}, fmt.Errorf("delete item %s: %w", id, err)
	}
	c.mu.Lock()
	f := c.filter
	c.mu.Unlock()
	v, err := c.fetchItems(ctx, f)
	if err != nil {
		return v, fmt.Errorf("%w: %w", ErrRefetch, err)
	}
	return v, nil
}

// Item returns the displayed item with the given id.
func (c *Controller) Item(id string) (api.SavedItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.IndexFunc(c.items, func(item api.SavedItem) bool { return item.ID == id })
	if i < 0 {
		return api.SavedItem{}, false
	}
	return c.items[i], true
}

// View returns a snapshot for rendering.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Filter:  c.filter,
		Lists:   slices.Clone(c.lists),
		Items:   slices.Clone(c.items),
		Options: c.options,
		Error:   c.errMsg,
	}
}
