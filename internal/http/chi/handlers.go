package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/rs/cors"

	"github.com/marcelsud/webhook-capture/auth"
	"github.com/marcelsud/webhook-capture/endpoint"
	"github.com/marcelsud/webhook-capture/fanout"
	"github.com/marcelsud/webhook-capture/metrics"
	"github.com/marcelsud/webhook-capture/stats"
)

// Handlers sets up the capture API routes
func Handlers(ctx context.Context, endpoints endpoint.UseCase, statsService *stats.Service, hub *fanout.Hub, verifier auth.Verifier, exporter *metrics.OTelExporter, baseURL string) *chi.Mux {
	logger := httplog.NewLogger("webhook-capture", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.AllowAll().Handler)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	if exporter != nil {
		r.Method(http.MethodGet, "/metrics", exporter.ServeHTTP())
	}

	// Realtime channel; long-lived, so it stays outside the timeout group
	r.Get("/ws", serveWS(hub).ServeHTTP)

	// Public ingestion endpoint
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post("/webhook/{webhook_id}", postPayload(endpoints, hub, exporter).ServeHTTP)
	})

	// Operator routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(basicAuth(verifier))

		r.Get("/", getDashboard(statsService).ServeHTTP)
		r.Get("/webhooks", getWebhooks(endpoints).ServeHTTP)
		r.Post("/generate", postGenerate(endpoints, baseURL).ServeHTTP)
		r.Get("/data/{webhook_id}", getWebhookData(endpoints).ServeHTTP)
		r.Get("/download/{webhook_id}", downloadWebhookData(endpoints).ServeHTTP)
		r.Get("/download/payload/{payload_id}", downloadPayload(endpoints).ServeHTTP)
		r.Post("/delete/{webhook_id}", deleteWebhook(endpoints).ServeHTTP)
	})

	return r
}

/* basicAuth guards operator routes with HTTP Basic credentials.
 * Rejected requests get a challenge and no route content
 */
func basicAuth(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if ok {
				if _, valid := verifier.Verify(username, password); valid {
					next.ServeHTTP(w, r)
					return
				}
			}

			w.Header().Set("WWW-Authenticate", `Basic realm="webhook-capture"`)
			respondError(w, http.StatusUnauthorized, "authentication required")
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
