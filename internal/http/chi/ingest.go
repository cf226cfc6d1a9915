package chi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marcelsud/webhook-capture/endpoint"
	"github.com/marcelsud/webhook-capture/fanout"
	"github.com/marcelsud/webhook-capture/metrics"
)

/* postPayload handles POST /webhook/{webhook_id}, the single public,
 * unauthenticated write path.
 *
 * Exactly one of the success or failure path executes per request:
 * a stored payload bumps success_count, any other processing error --
 * unreadable body, invalid JSON, storage failure -- bumps failure_count,
 * and an unknown endpoint writes nothing at all.
 */
func postPayload(endpoints endpoint.UseCase, hub *fanout.Hub, exporter *metrics.OTelExporter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookID := chi.URLParam(r, "webhook_id")

		if _, err := endpoints.Get(r.Context(), webhookID); err != nil {
			respondEndpointError(w, webhookID, err)
			return
		}

		// The body is treated as JSON regardless of its Content-Type.
		body, readErr := io.ReadAll(r.Body)
		defer r.Body.Close()

		var rec endpoint.PayloadRecord
		err := readErr
		if err == nil {
			rec, err = endpoints.RecordSuccess(r.Context(), webhookID, body)
		}

		if err != nil {
			if errors.Is(err, endpoint.ErrNotFound) {
				// The endpoint vanished between the lookup and the write.
				respondEndpointError(w, webhookID, err)
				return
			}
			// Every other processing error counts against the endpoint.
			// 500 only when even the failure record cannot be written.
			if ferr := endpoints.RecordFailure(r.Context(), webhookID); ferr != nil {
				respondError(w, http.StatusInternalServerError, ferr.Error())
				return
			}
			if exporter != nil {
				exporter.RecordIngestFailure(r.Context())
			}
			respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to process request: %v", err))
			return
		}

		if exporter != nil {
			exporter.RecordIngestSuccess(r.Context())
		}

		timestamp := rec.Timestamp.Format(time.RFC3339Nano)
		hub.Publish(webhookID, fanout.Event{
			PayloadID: rec.ID,
			Timestamp: timestamp,
			Payload:   string(rec.Body),
		})

		respondJSON(w, http.StatusOK, map[string]string{
			"status":    "received",
			"timestamp": timestamp,
		})
	})
}
