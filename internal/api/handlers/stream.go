package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/docstore"
)

const streamKeepAlive = 25 * time.Second

// streamSnapshots serves a live query as server-sent events named event. The
// first event carries the current result set; each later one replaces it.
func streamSnapshots[T any](
	w http.ResponseWriter,
	r *http.Request,
	event string,
	subscribe func(ctx context.Context) (*docstore.Subscription, error),
	decode func([]docstore.Document) ([]T, error),
) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	sub, err := subscribe(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(list []T) bool {
		data, err := json.Marshal(list)
		if err != nil {
			slog.Error("encode snapshot", "event", event, "error", err)
			return false
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	initial, err := decode(sub.Initial)
	if err != nil || !send(initial) {
		return
	}

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case docs, ok := <-sub.C:
			if !ok {
				return
			}
			list, err := decode(docs)
			if err != nil {
				slog.Error("decode snapshot", "event", event, "error", err)
				continue
			}
			if !send(list) {
				return
			}
		}
	}
}
