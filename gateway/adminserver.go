package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aperturestack/llmgateway/auth"
	"github.com/aperturestack/llmgateway/health"
)

// BucketStatus reports a provider's dual token bucket state (§4's
// per-provider token bucket snapshot).
type BucketStatus struct {
	PerSecondTokens float64 `json:"per_second_tokens"`
	PerMinuteTokens float64 `json:"per_minute_tokens"`
	PerSecondRate   float64 `json:"per_second_rate"`
	PerMinuteRate   float64 `json:"per_minute_rate"`
}

// StatusResponse is the JSON body of the /status endpoint.
type StatusResponse struct {
	Status    string           `json:"status"`
	Providers []ProviderStatus `json:"providers"`
}

// ProviderStatus reports one provider entry's current breaker-derived
// health, as seen by the failover director.
type ProviderStatus struct {
	Name     string       `json:"name"`
	Priority int          `json:"priority"`
	Status   string       `json:"status"`
	Message  string       `json:"message,omitempty"`
	Bucket   BucketStatus `json:"bucket"`
}

// AdminHandler returns the operator status surface: liveness and
// readiness probes backed by a health.Aggregator with one checker per
// configured provider, plus a /status endpoint reporting each
// provider's circuit breaker state. When cfg.AdminAPIKey is set, every
// route is guarded by auth.APIKeyAuthenticator — this is the one place
// auth earns a role in this repo, since request traffic itself never
// carries caller credentials through the gateway.
func (g *Gateway) AdminHandler() http.Handler {
	agg := health.NewAggregator()
	for _, entry := range g.director.Providers() {
		agg.Register(entry.Name, entry.Checker())
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health.LivenessHandler())
	mux.HandleFunc("/readyz", health.ReadinessHandler(agg))
	mux.HandleFunc("/status", g.statusHandler(agg))

	if g.cfg.AdminAPIKey == "" {
		return mux
	}

	store := auth.NewMemoryAPIKeyStore()
	_ = store.Add(&auth.APIKeyInfo{
		ID:        "admin",
		KeyHash:   auth.HashAPIKey(g.cfg.AdminAPIKey),
		Principal: "admin",
	})
	authenticator := auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, store)

	return auth.WithAuthHeaders(requireAPIKey(authenticator, mux))
}

func requireAPIKey(authenticator *auth.APIKeyAuthenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := &auth.AuthRequest{Headers: r.Header, Resource: r.URL.Path}

		result, err := authenticator.Authenticate(r.Context(), req)
		if err != nil {
			http.Error(w, "admin: internal authentication error", http.StatusInternalServerError)
			return
		}
		if !result.Authenticated {
			http.Error(w, "admin: unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), result.Identity)))
	})
}

func (g *Gateway) statusHandler(agg *health.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		results := agg.CheckAll(ctx)
		entries := g.director.Providers()

		providers := make([]ProviderStatus, 0, len(entries))
		for _, entry := range entries {
			result := results[entry.Name]
			snap := entry.BucketSnapshot()
			providers = append(providers, ProviderStatus{
				Name:     entry.Name,
				Priority: entry.Priority,
				Status:   result.Status.String(),
				Message:  result.Message,
				Bucket: BucketStatus{
					PerSecondTokens: snap.PerSecondTokens,
					PerMinuteTokens: snap.PerMinuteTokens,
					PerSecondRate:   snap.PerSecondRate,
					PerMinuteRate:   snap.PerMinuteRate,
				},
			})
		}

		resp := StatusResponse{
			Status:    agg.OverallStatus(results).String(),
			Providers: providers,
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
