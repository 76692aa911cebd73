// Package popup drives one page-capture session: read the active tab, ask the
// backend for a summary, tag suggestions and lists, let the user edit, then save.
package popup

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/knowledgepin/cli/internal/api"
	"github.com/knowledgepin/cli/internal/extract"
	"github.com/knowledgepin/cli/internal/messaging"
	"github.com/knowledgepin/cli/internal/tabs"
)

// State is where a session is in its lifecycle.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateSaving  State = "saving"
	StateDone    State = "done"
	StateError   State = "error"
)

// Stages that can record a Fault.
const (
	StagePage    = "page"
	StageSummary = "summary"
	StageTags    = "tags"
	StageLists   = "lists"
	StageSave    = "save"
)

// TimestampLayout formats save timestamps (UTC, millisecond precision).
const TimestampLayout = "2006-01-02T15:04:05.000Z"

const (
	savedText       = "Saved!"
	saveFailedText  = "Error saving item. Please try again."
	savedNoticeTTL  = 1500 * time.Millisecond
	failedNoticeTTL = 3 * time.Second
)

// ErrNotReady is returned by Save outside the ready state.
var ErrNotReady = errors.New("session is not ready")

// Backend is the subset of the API client a session uses.
type Backend interface {
	GenerateSummary(ctx context.Context, page api.PageRequest) (string, error)
	SuggestTags(ctx context.Context, page api.PageRequest) ([]string, error)
	GetLists(ctx context.Context) ([]api.List, error)
	SaveItem(ctx context.Context, item api.SavedItem) (api.SaveResult, error)
}

// Pages gives access to the active tab and its content script.
type Pages interface {
	ActiveTab(ctx context.Context) (tabs.Tab, error)
	SendMessage(ctx context.Context, id int, req messaging.Request) (messaging.Response, error)
}

// Fault is a non-fatal failure recorded during a session.
type Fault struct {
	Stage string `json:"stage"`
	Err   error  `json:"-"`
}

func (f Fault) Error() string {
	return fmt.Sprintf("%s: %v", f.Stage, f.Err)
}

// NoticeKind distinguishes success and error notices.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient message shown after saving.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Text    string     `json:"text"`
	Expires time.Time  `json:"expires"`
}

// Active reports whether the notice should still be visible at now.
func (n Notice) Active(now time.Time) bool {
	return now.Before(n.Expires)
}

// View is a snapshot of the session for rendering.
type View struct {
	ID           string           `json:"id"`
	State        State            `json:"state"`
	URL          string           `json:"url"`
	Title        string           `json:"title"`
	Hostname     string           `json:"hostname"`
	ImageURL     string           `json:"imageUrl"`
	ImageVisible bool             `json:"imageVisible"`
	Note         string           `json:"note"`
	ListID       string           `json:"listId"`
	Lists        []api.List       `json:"lists"`
	Tags         []DisplayTag     `json:"tags"`
	Selected     []string         `json:"selected"`
	Faults       []Fault          `json:"faults,omitempty"`
	Notice       *Notice          `json:"notice,omitempty"`
	Page         extract.PageInfo `json:"-"`
}

// Session is the popup controller. All popup state lives here.
type Session struct {
	id      string
	pages   Pages
	backend Backend
	log     zerolog.Logger
	now     func() time.Time

	mu           sync.Mutex
	state        State
	tab          tabs.Tab
	page         extract.PageInfo
	title        string
	hostname     string
	imageURL     string
	imageVisible bool
	note         string
	listID       string
	listChosen   bool
	lists        []api.List
	tags         Tags
	faults       []Fault
	notice       *Notice

	pending sync.WaitGroup
}

type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithTags selects tags before Open, so tag suggestions see them as existing tags.
func WithTags(tags ...string) Option {
	return func(s *Session) {
		for _, t := range tags {
			s.tags.Add(t)
		}
	}
}

func NewSession(pages Pages, backend Backend, opts ...Option) *Session {
	s := &Session{
		id:      uuid.NewString(),
		pages:   pages,
		backend: backend,
		log:     zerolog.Nop(),
		now:     time.Now,
		state:   StateLoading,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("session", s.id).Logger()
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id
}

// Open loads the active tab and starts the backend calls. It returns once tag
// suggestions have settled; the summary and list calls may still be running
// (see Wait). Only a missing active tab is an error.
func (s *Session) Open(ctx context.Context) error {
	s.setState(StateLoading)

	tab, err := s.pages.ActiveTab(ctx)
	if err != nil {
		s.recordFault(StagePage, err)
		s.setState(StateError)
		return fmt.Errorf("query active tab: %w", err)
	}

	info := s.requestPageInfo(ctx, tab)

	s.mu.Lock()
	s.tab = tab
	s.page = info
	s.title = tab.Title
	s.hostname = hostname(tab.URL)
	s.imageURL = info.Image
	s.imageVisible = info.Image != ""
	s.mu.Unlock()

	page := api.PageRequest{URL: tab.URL, Title: tab.Title, Content: info.Content}

	s.pending.Add(2)
	go s.loadSummary(ctx, page)
	go s.loadLists(ctx)

	s.loadTags(ctx, page)
	s.setState(StateReady)
	return nil
}

// Wait blocks until the summary and list calls started by Open have finished.
func (s *Session) Wait() {
	s.pending.Wait()
}

func (s *Session) requestPageInfo(ctx context.Context, tab tabs.Tab) extract.PageInfo {
	var info extract.PageInfo
	resp, err := s.pages.SendMessage(ctx, tab.ID, messaging.Request{Action: messaging.ActionGetPageInfo})
	if err != nil {
		s.recordFault(StagePage, err)
		return info
	}
	if err := resp.Decode(&info); err != nil {
		s.recordFault(StagePage, err)
	}
	return info
}

func (s *Session) loadSummary(ctx context.Context, page api.PageRequest) {
	defer s.pending.Done()
	summary, err := s.backend.GenerateSummary(ctx, page)
	if err != nil {
		s.recordFault(StageSummary, err)
		return
	}
	s.mu.Lock()
	s.note = summary
	s.mu.Unlock()
}

func (s *Session) loadLists(ctx context.Context) {
	defer s.pending.Done()
	lists, err := s.backend.GetLists(ctx)
	if err != nil {
		s.recordFault(StageLists, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists = slices.Clone(lists)
	if !s.listChosen && len(lists) > 0 {
		s.listID = lists[0].ID
	}
}

func (s *Session) loadTags(ctx context.Context, page api.PageRequest) {
	s.mu.Lock()
	page.ExistingTags = s.tags.Current()
	s.mu.Unlock()
	if len(page.ExistingTags) == 0 {
		page.ExistingTags = nil
	}

	suggested, err := s.backend.SuggestTags(ctx, page)
	if err != nil {
		s.recordFault(StageTags, err)
		return
	}
	s.mu.Lock()
	s.tags.SetSuggested(suggested)
	s.mu.Unlock()
}

// SetTitle replaces the title to save.
func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
}

// SetNote replaces the note to save.
func (s *Session) SetNote(note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.note = note
}

// SelectList picks the list the item is saved into.
func (s *Session) SelectList(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listID = id
	s.listChosen = true
}

// RemoveImage hides the preview image; the saved item then carries no image.
func (s *Session) RemoveImage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imageVisible = false
}

// AddTag adds a typed tag. See Tags.Add.
func (s *Session) AddTag(input string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tags.Add(input)
}

// ToggleTag flips the selection of a rendered tag.
func (s *Session) ToggleTag(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags.Toggle(tag)
}

// Payload returns the item Save would send right now.
func (s *Session) Payload() api.SavedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payloadLocked()
}

func (s *Session) payloadLocked() api.SavedItem {
	item := api.SavedItem{
		URL:       s.tab.URL,
		Title:     s.title,
		ListID:    s.listID,
		Tags:      s.tags.Current(),
		Note:      s.note,
		Timestamp: s.now().UTC().Format(TimestampLayout),
	}
	if s.imageVisible {
		item.ImageURL = s.imageURL
	}
	return item
}

// Save posts the item once and returns the item as posted. Whatever the
// outcome the session ends in StateDone with a notice describing the result.
func (s *Session) Save(ctx context.Context) (api.SavedItem, api.SaveResult, error) {
	s.mu.Lock()
	if s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		return api.SavedItem{}, api.SaveResult{}, fmt.Errorf("%w (state %s)", ErrNotReady, state)
	}
	s.state = StateSaving
	item := s.payloadLocked()
	s.mu.Unlock()

	res, err := s.backend.SaveItem(ctx, item)

	if err != nil {
		s.recordFault(StageSave, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDone
	if err != nil {
		s.notice = &Notice{Kind: NoticeError, Text: saveFailedText, Expires: s.now().Add(failedNoticeTTL)}
		return item, api.SaveResult{}, fmt.Errorf("save item: %w", err)
	}
	s.notice = &Notice{Kind: NoticeSuccess, Text: savedText, Expires: s.now().Add(savedNoticeTTL)}
	s.log.Info().Str("url", item.URL).Str("item", res.ItemID).Msg("item saved")
	return item, res, nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Faults returns the failures recorded so far.
func (s *Session) Faults() []Fault {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.faults)
}

// View returns a snapshot for rendering.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:           s.id,
		State:        s.state,
		URL:          s.tab.URL,
		Title:        s.title,
		Hostname:     s.hostname,
		ImageURL:     s.imageURL,
		ImageVisible: s.imageVisible,
		Note:         s.note,
		ListID:       s.listID,
		Lists:        slices.Clone(s.lists),
		Tags:         s.tags.Display(),
		Selected:     s.tags.Current(),
		Faults:       slices.Clone(s.faults),
		Page:         s.page,
	}
	if s.notice != nil {
		n := *s.notice
		v.Notice = &n
	}
	return v
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *Session) recordFault(stage string, err error) {
	s.log.Error().Err(err).Str("stage", stage).Msg("capture step failed")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, Fault{Stage: stage, Err: err})
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
