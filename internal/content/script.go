// Package content is the per-page script that answers metadata requests from
// the document loaded into a tab.
package content

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/knowledgepin/cli/internal/extract"
	"github.com/knowledgepin/cli/internal/messaging"
	"github.com/knowledgepin/cli/internal/tabs"
)

// Script reads one tab's document on request.
type Script struct {
	tab tabs.Tab
	doc *goquery.Document
	log zerolog.Logger
}

// Injector returns a tabs.Injector that installs a Script in every opened tab.
func Injector(log zerolog.Logger) tabs.Injector {
	return func(tab tabs.Tab, doc *goquery.Document, r *messaging.Router) {
		s := &Script{tab: tab, doc: doc, log: log.With().Int("tab", tab.ID).Logger()}
		s.Register(r)
		s.log.Debug().Str("url", tab.URL).Msg("content script loaded")
	}
}

// Register installs the script's handlers.
func (s *Script) Register(r *messaging.Router) {
	r.Handle(messaging.ActionGetPageInfo, s.handlePageInfo)
	r.Handle(messaging.ActionGetPageData, s.handlePageData)
}

func (s *Script) handlePageInfo(_ context.Context, req messaging.Request) (messaging.Response, error) {
	s.log.Debug().Str("action", string(req.Action)).Msg("message received in content script")
	return messaging.NewResponse(extract.Info(s.doc, s.tab.URL))
}

func (s *Script) handlePageData(_ context.Context, req messaging.Request) (messaging.Response, error) {
	s.log.Debug().Str("action", string(req.Action)).Msg("message received in content script")
	data := extract.Data(s.doc, s.tab.URL)
	s.log.Debug().Str("title", data.Title).Msg("sending data from content script")
	return messaging.NewResponse(data)
}
