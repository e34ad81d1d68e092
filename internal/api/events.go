package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/memorybox/coordination-server/internal/realtime"
)

var knownTables = map[string]bool{
	realtime.TableAvailability:   true,
	realtime.TableChangeRequests: true,
	realtime.TablePresence:       true,
}

// eventsHandler streams row-change events as server-sent events. Clients
// subscribe per table and re-fetch the affected list on each event, the same
// contract the UI had with the hosted realtime channel.
func eventsHandler(rdb *redis.Client, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tables := parseTables(r.URL.Query().Get("tables"))
		if len(tables) == 0 {
			writeError(w, http.StatusBadRequest, "invalid_tables", "tables query param must name at least one known table")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
			return
		}

		sub, err := realtime.NewSubscriber(r.Context(), rdb, log, tables...)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "subscribe_failed", "could not subscribe to realtime channels")
			return
		}
		defer sub.Close()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for ev := range sub.Events(r.Context()) {
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func parseTables(raw string) []string {
	var tables []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if knownTables[t] {
			tables = append(tables, t)
		}
	}
	return tables
}
