package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"lagerapp/broadcast"
)

// EventsHandler streams broadcaster messages as server-sent events. Browser
// clients re-read the store on every event; the stream never carries entity
// payloads.
func (s *Server) EventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		msgs, cancel := s.Hub.Subscribe(broadcast.TopicAll, 16)
		defer cancel()

		for {
			select {
			case <-r.Context().Done():
				return
			case msg, open := <-msgs:
				if !open {
					return
				}
				payload, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
				flusher.Flush()
			}
		}
	}
}
