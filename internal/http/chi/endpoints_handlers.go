package chi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marcelsud/webhook-capture/endpoint"
	"github.com/marcelsud/webhook-capture/stats"
)

/* HTTP layer DTOs for the operator API
 * Separate from domain entities to avoid leaking internal structure
 */

// webhookResponse represents an endpoint in the API
type webhookResponse struct {
	ID            string  `json:"id"`
	URL           string  `json:"url"`
	CreatedAt     string  `json:"created_at"`
	SuccessCount  int64   `json:"success_count"`
	FailureCount  int64   `json:"failure_count"`
	LastPayloadAt *string `json:"last_payload_at"`
}

// payloadResponse represents a stored payload in the API
type payloadResponse struct {
	ID        int64           `json:"id"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// noticeResponse is the one-shot notice produced by POST /generate
type noticeResponse struct {
	WebhookID string `json:"webhook_id"`
	URL       string `json:"url"`
}

type dashboardResponse struct {
	stats.Overview
	DailyStats []stats.DailyActivity `json:"daily_stats"`
	Notice     *noticeResponse       `json:"notice,omitempty"`
}

type webhookListResponse struct {
	Webhooks    []webhookResponse `json:"webhooks"`
	CurrentPage int               `json:"current_page"`
	TotalPages  int               `json:"total_pages"`
}

type webhookDataResponse struct {
	Webhook     webhookResponse   `json:"webhook"`
	Payloads    []payloadResponse `json:"payloads"`
	CurrentPage int               `json:"current_page"`
	TotalPages  int               `json:"total_pages"`
}

// flashCookie carries the freshly generated endpoint from /generate to the
// next dashboard fetch, then disappears.
const flashCookie = "new_webhook"

// getDashboard handles GET /
func getDashboard(statsService *stats.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		overview, err := statsService.Overview(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		daily, err := statsService.DailyActivity(r.Context(), 7)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		response := dashboardResponse{
			Overview:   overview,
			DailyStats: daily,
			Notice:     popFlash(w, r),
		}

		respondJSON(w, http.StatusOK, response)
	})
}

// getWebhooks handles GET /webhooks
func getWebhooks(endpoints endpoint.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := pageParam(r)

		all, totalPages, err := endpoints.List(r.Context(), page)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		responses := make([]webhookResponse, 0, len(all))
		for _, e := range all {
			responses = append(responses, toWebhookResponse(e))
		}

		respondJSON(w, http.StatusOK, webhookListResponse{
			Webhooks:    responses,
			CurrentPage: page,
			TotalPages:  totalPages,
		})
	})
}

// postGenerate handles POST /generate
func postGenerate(endpoints endpoint.UseCase, baseURL string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e, err := endpoints.Create(r.Context(), baseURL)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		setFlash(w, e.ID, e.URL)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
}

// getWebhookData handles GET /data/{webhook_id}
func getWebhookData(endpoints endpoint.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookID := chi.URLParam(r, "webhook_id")

		e, err := endpoints.Get(r.Context(), webhookID)
		if err != nil {
			respondEndpointError(w, webhookID, err)
			return
		}

		page := pageParam(r)
		records, totalPages, err := endpoints.Payloads(r.Context(), webhookID, page)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		payloads := make([]payloadResponse, 0, len(records))
		for _, rec := range records {
			payloads = append(payloads, payloadResponse{
				ID:        rec.ID,
				Timestamp: rec.Timestamp.Format(time.RFC3339Nano),
				Payload:   json.RawMessage(rec.Body),
			})
		}

		respondJSON(w, http.StatusOK, webhookDataResponse{
			Webhook:     toWebhookResponse(e),
			Payloads:    payloads,
			CurrentPage: page,
			TotalPages:  totalPages,
		})
	})
}

// downloadWebhookData handles GET /download/{webhook_id}
func downloadWebhookData(endpoints endpoint.UseCase) http.Handler {
	type exportEntry struct {
		Timestamp string          `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookID := chi.URLParam(r, "webhook_id")

		if _, err := endpoints.Get(r.Context(), webhookID); err != nil {
			respondEndpointError(w, webhookID, err)
			return
		}

		records, err := endpoints.Export(r.Context(), webhookID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		entries := make([]exportEntry, 0, len(records))
		for _, rec := range records {
			entries = append(entries, exportEntry{
				Timestamp: rec.Timestamp.Format(time.RFC3339Nano),
				Payload:   json.RawMessage(rec.Body),
			})
		}

		body, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment;filename=webhook_%s.json", webhookID))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	})
}

// downloadPayload handles GET /download/payload/{payload_id}
func downloadPayload(endpoints endpoint.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payloadID, err := strconv.ParseInt(chi.URLParam(r, "payload_id"), 10, 64)
		if err != nil {
			respondError(w, http.StatusNotFound, "payload not found")
			return
		}

		rec, err := endpoints.Payload(r.Context(), payloadID)
		if err != nil {
			if errors.Is(err, endpoint.ErrNotFound) {
				respondError(w, http.StatusNotFound, "payload not found")
				return
			}
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, rec.Body, "", "  "); err != nil {
			// Stored bodies are validated at ingestion; serve as-is if not.
			pretty.Write(rec.Body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment;filename=payload_%d.json", payloadID))
		w.WriteHeader(http.StatusOK)
		w.Write(pretty.Bytes())
	})
}

// deleteWebhook handles POST /delete/{webhook_id}
func deleteWebhook(endpoints endpoint.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookID := chi.URLParam(r, "webhook_id")

		if err := endpoints.Delete(r.Context(), webhookID); err != nil {
			respondEndpointError(w, webhookID, err)
			return
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
}

func toWebhookResponse(e endpoint.Endpoint) webhookResponse {
	resp := webhookResponse{
		ID:           e.ID,
		URL:          e.URL,
		CreatedAt:    e.CreatedAt.Format(time.RFC3339Nano),
		SuccessCount: e.SuccessCount,
		FailureCount: e.FailureCount,
	}
	if e.LastPayloadAt != nil {
		ts := e.LastPayloadAt.Format(time.RFC3339Nano)
		resp.LastPayloadAt = &ts
	}
	return resp
}

func respondEndpointError(w http.ResponseWriter, webhookID string, err error) {
	if errors.Is(err, endpoint.ErrNotFound) {
		respondError(w, http.StatusNotFound, fmt.Sprintf("webhook ID %s not found", webhookID))
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

// pageParam reads ?page=N, defaulting to the first page.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func setFlash(w http.ResponseWriter, webhookID, url string) {
	value := base64.URLEncoding.EncodeToString([]byte(webhookID + "|" + url))
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
	})
}

func popFlash(w http.ResponseWriter, r *http.Request) *noticeResponse {
	cookie, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}

	// One-shot: clear it regardless of whether it decodes.
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	decoded, err := base64.URLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return nil
	}

	return &noticeResponse{
		WebhookID: parts[0],
		URL:       parts[1],
	}
}
