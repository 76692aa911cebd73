// Package relay is the background context: it forwards page-data requests to
// the active tab's content script and acknowledges save requests.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/knowledgepin/cli/internal/extract"
	"github.com/knowledgepin/cli/internal/messaging"
	"github.com/knowledgepin/cli/internal/tabs"
	"github.com/knowledgepin/cli/pkg/util"
)

// StatusSuccess is the acknowledgement sent for saveData.
const StatusSuccess = "success"

// TabMessenger is the part of tabs.Host the relay needs.
type TabMessenger interface {
	ActiveTab(ctx context.Context) (tabs.Tab, error)
	SendMessage(ctx context.Context, id int, req messaging.Request) (messaging.Response, error)
}

// Ack is the reply to saveData.
type Ack struct {
	Status string `json:"status"`
}

// Background holds no state beyond its collaborators.
type Background struct {
	tabs TabMessenger
	log  zerolog.Logger
}

func New(t TabMessenger, log zerolog.Logger) *Background {
	return &Background{tabs: t, log: log}
}

// Register installs the relay handlers on r.
func (b *Background) Register(r *messaging.Router) {
	r.Handle(messaging.ActionGetPageData, b.handleGetPageData)
	r.Handle(messaging.ActionSaveData, b.handleSaveData)
}

func (b *Background) handleGetPageData(ctx context.Context, req messaging.Request) (messaging.Response, error) {
	b.log.Debug().Str("action", string(req.Action)).Msg("message received in background")

	tab, err := b.tabs.ActiveTab(ctx)
	if err != nil {
		return messaging.Response{}, fmt.Errorf("relay %s: %w", req.Action, err)
	}

	resp, err := b.tabs.SendMessage(ctx, tab.ID, messaging.Request{Action: messaging.ActionGetPageData})
	if err != nil {
		return messaging.Response{}, fmt.Errorf("relay %s to tab %d: %w", req.Action, tab.ID, err)
	}
	b.log.Debug().Int("tab", tab.ID).RawJSON("response", orNull(resp.Payload)).Msg("response from content script")
	return resp, nil
}

func (b *Background) handleSaveData(_ context.Context, req messaging.Request) (messaging.Response, error) {
	var data extract.PageData
	if err := req.DecodeData(&data); err != nil {
		return messaging.Response{}, err
	}
	b.log.Info().Str("title", data.Title).Str("url", data.URL).Msgf("Saved Data: %s", util.PrettyJSON(req.Data))
	return messaging.NewResponse(Ack{Status: StatusSuccess})
}

func orNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
