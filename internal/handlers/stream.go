package handlers

import (
	"net/http"

	"gallery/internal/logging"
	"gallery/internal/render"
)

// StreamSession upgrades to a WebSocket carrying session events. A new
// client first receives the snapshot and every retained thumbnail, then
// live events.
func (h *Handlers) StreamSession(w http.ResponseWriter, r *http.Request) {
	client, err := h.hub.Upgrade(w, r)
	if err != nil {
		// the upgrader has already replied
		logging.Debug("Stream upgrade failed: %v", err)
		return
	}

	if h.replay == nil {
		h.hub.Register(client, Message{Type: MessageSnapshot, Data: h.session.Snapshot()})
	} else {
		// snapshot, replay and registration all happen on the loop
		// goroutine, so no event is missed, repeated or older than the window
		h.replay.Inspect(func(win *render.Window) {
			backlog := []Message{{Type: MessageSnapshot, Data: h.session.Snapshot()}}
			for _, idx := range win.Indices() {
				uri, _ := win.Get(idx)
				backlog = append(backlog, Message{
					Type: MessageItem,
					Data: ItemData{Index: idx, Status: "ready", DataURI: uri},
				})
			}
			h.hub.Register(client, backlog...)
		})
	}

	client.Run()
}
