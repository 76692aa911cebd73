package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/knowledgepin/cli/internal/api"
)

// Server serves the web dashboard on top of a Controller.
type Server struct {
	ctrl *Controller
	log  zerolog.Logger
	page *template.Template
	app  *fiber.App
}

// UpdateRequest is the body of POST /api/items/:id.
type UpdateRequest struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

func NewServer(ctrl *Controller, log zerolog.Logger) *Server {
	s := &Server{
		ctrl: ctrl,
		log:  log,
		page: template.Must(template.New("gallery").Funcs(template.FuncMap{
			"platform": Platform,
		}).Parse(galleryHTML)),
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(s.logRequests)
	app.Get("/", s.HandleGallery)
	app.Get("/api/lists", s.HandleLists)
	app.Get("/api/items", s.HandleItems)
	app.Post("/api/items/:id", s.HandleUpdate)
	app.Post("/api/items/:id/delete", s.HandleDelete)
	s.app = app
	return s
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve accepts connections on ln until Shutdown or until ln is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("dashboard listening")
	return s.app.Listener(ln)
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.log.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("took", time.Since(start)).
		Msg("request")
	return err
}

func filterFromQuery(c *fiber.Ctx) Filter {
	return Filter{
		List:     c.Query("list"),
		Tag:      c.Query("tag"),
		Platform: c.Query("platform"),
	}
}

// HandleGallery renders the gallery page for the filter in the query string.
func (s *Server) HandleGallery(c *fiber.Ctx) error {
	ctx := c.UserContext()
	lists, listErr := s.ctrl.fetchLists(ctx)
	// Item failures are logged by the controller and shown through View.Error.
	v, _ := s.ctrl.Query(ctx, filterFromQuery(c))
	if listErr == nil {
		v.Lists = lists
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, galleryData{View: v, AllLists: api.AllLists}); err != nil {
		return fmt.Errorf("render gallery: %w", err)
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

// HandleLists returns every list.
func (s *Server) HandleLists(c *fiber.Ctx) error {
	lists, err := s.ctrl.fetchLists(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	if lists == nil {
		lists = []api.List{}
	}
	return c.JSON(lists)
}

// HandleItems returns the items and filter options for the query's filter.
func (s *Server) HandleItems(c *fiber.Ctx) error {
	v, err := s.ctrl.Query(c.UserContext(), filterFromQuery(c))
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": FetchItemsFailed})
	}
	return c.JSON(itemsReply(v))
}

// HandleUpdate edits one field of an item.
func (s *Server) HandleUpdate(c *fiber.Ctx) error {
	var req UpdateRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	value, err := DecodeFieldValue(req.Field, req.Value)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	id, err := itemID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := s.ctrl.UpdateField(c.UserContext(), id, req.Field, value); err != nil {
		if errors.Is(err, ErrUnknownField) || errors.Is(err, ErrFieldValue) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "updated", "id": id})
}

// HandleDelete deletes an item and returns the refreshed items.
func (s *Server) HandleDelete(c *fiber.Ctx) error {
	id, err := itemID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	v, err := s.ctrl.deleteItem(c.UserContext(), id)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(itemsReply(v))
}

// itemID is the decoded :id route parameter, copied out of fiber's request
// buffer. The page script percent-encodes ids.
func itemID(c *fiber.Ctx) (string, error) {
	raw := strings.Clone(c.Params("id"))
	id, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid item id %q: %w", raw, err)
	}
	return id, nil
}

// DecodeFieldValue decodes a raw JSON value for an editable field: a list of
// strings for tags, a string otherwise.
func DecodeFieldValue(field string, raw json.RawMessage) (any, error) {
	switch field {
	case api.FieldTitle, api.FieldNote:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w %s: %v", ErrFieldValue, field, err)
		}
		return s, nil
	case api.FieldTags:
		var tags []string
		if err := json.Unmarshal(raw, &tags); err != nil {
			return nil, fmt.Errorf("%w %s: %v", ErrFieldValue, field, err)
		}
		if tags == nil {
			tags = []string{}
		}
		return tags, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}

type itemsResponse struct {
	Items   []api.SavedItem `json:"items"`
	Options FilterOptions   `json:"options"`
	Filter  Filter          `json:"filter"`
}

func itemsReply(v View) itemsResponse {
	items := v.Items
	if items == nil {
		items = []api.SavedItem{}
	}
	return itemsResponse{Items: items, Options: v.Options, Filter: v.Filter}
}

type galleryData struct {
	View
	AllLists string
}

const galleryHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>KnowledgePin</title>
<style>
body { font-family: system-ui, sans-serif; margin: 0; display: flex; }
nav { width: 14rem; padding: 1rem; border-right: 1px solid #ddd; }
nav a { display: block; padding: .25rem 0; color: #333; text-decoration: none; }
nav a.current { font-weight: bold; }
main { flex: 1; padding: 1rem; }
.masonry { column-width: 18rem; column-gap: 16px; }
.item-card { break-inside: avoid; margin-bottom: 16px; border: 1px solid #ddd; border-radius: 8px; overflow: hidden; }
.item-card img { width: 100%; display: block; }
.no-image { height: 6rem; background: #eee; display: flex; align-items: center; justify-content: center; color: #888; }
.item-content { padding: .75rem; }
.tag { display: inline-block; background: #eef; border-radius: 4px; padding: 0 .4rem; margin: 0 .2rem .2rem 0; }
.error { color: #c00; }
</style>
</head>
<body>
<nav>
<ul id="listNav">
<li><a href="/?list={{.AllLists}}"{{if eq .Filter.List .AllLists}} class="current"{{end}}>All Items</a></li>
{{range .Lists}}<li><a href="/?list={{.ID}}"{{if eq $.Filter.List .ID}} class="current"{{end}}>{{.Name}}</a></li>
{{end}}</ul>
</nav>
<main>
<form method="get" action="/">
<input type="hidden" name="list" value="{{.Filter.List}}">
<select name="tag" id="tagFilter" onchange="this.form.submit()">
<option value="">All</option>
{{range .Options.Tags}}<option value="{{.}}"{{if eq . $.Filter.Tag}} selected{{end}}>{{.}}</option>
{{end}}</select>
<select name="platform" id="platformFilter" onchange="this.form.submit()">
<option value="">All</option>
{{range .Options.Platforms}}<option value="{{.}}"{{if eq . $.Filter.Platform}} selected{{end}}>{{.}}</option>
{{end}}</select>
</form>
<div id="itemsContainer" class="masonry">
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{range .Items}}<div class="item-card" data-item-id="{{.ID}}">
{{if .ImageURL}}<img src="{{.ImageURL}}" alt="{{.Title}}">{{else}}<div class="no-image">No Image</div>{{end}}
<div class="item-content">
<h3 class="item-title" contenteditable="true" data-field="title">{{.Title}}</h3>
<p class="item-note" contenteditable="true" data-field="note">{{.Note}}</p>
<div class="item-tags" data-field="tags">{{range .Tags}}<span class="tag" contenteditable="true">{{.}}</span>{{end}}</div>
<small>{{platform .URL}}</small>
<a href="{{.URL}}" class="item-link" target="_blank" rel="noopener noreferrer">Visit</a>
<button class="delete-btn">Delete</button>
</div>
</div>
{{end}}</div>
</main>
<script>
function post(path, body) {
  return fetch(path, {method: "POST", headers: {"Content-Type": "application/json"}, body: JSON.stringify(body)});
}
document.querySelectorAll(".item-card").forEach(function (card) {
  var path = "/api/items/" + encodeURIComponent(card.dataset.itemId);
  card.querySelectorAll("[data-field=title],[data-field=note]").forEach(function (el) {
    el.addEventListener("blur", function () { post(path, {field: el.dataset.field, value: el.textContent}); });
  });
  card.querySelectorAll(".tag").forEach(function (el) {
    el.addEventListener("blur", function () {
      var tags = Array.from(card.querySelectorAll(".tag")).map(function (t) { return t.textContent; });
      post(path, {field: "tags", value: tags});
    });
  });
  card.querySelector(".delete-btn").addEventListener("click", function () {
    post(path + "/delete", {}).then(function () { location.reload(); });
  });
});
</script>
</body>
</html>
`
