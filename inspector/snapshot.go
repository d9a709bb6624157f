package inspector

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
)

// HandleSnapshot returns a handler that writes the latest snapshot published
// on hub as JSON. It responds with 503 until a first frame is published.
func HandleSnapshot(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		snapshot, ok := hub.Latest()
		if !ok {
			http.Error(w, "no frame published yet", http.StatusServiceUnavailable)
			return
		}

		b, err := json.Marshal(snapshot)
		if err != nil {
			logs.Warn(errors.New("encoding octree snapshot failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(b)
	}
}
