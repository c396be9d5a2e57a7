// Package handler exposes the pricing engine over HTTP. Routing uses chi;
// payloads are plain JSON with decimal money encoded as strings.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/itadmit/quickshop-pricing/internal/domain/auth"
	"github.com/itadmit/quickshop-pricing/internal/domain/coupon"
	"github.com/itadmit/quickshop-pricing/internal/domain/pricing"
	"github.com/itadmit/quickshop-pricing/internal/domain/store"
	"github.com/itadmit/quickshop-pricing/internal/domain/usage"
)

// Handler wires the domain services to HTTP routes.
type Handler struct {
	engine    *pricing.Engine
	stores    store.Repository
	validator coupon.Validator
	recorder  *usage.Recorder
	stats     usage.StatsReader
	apikeys   auth.Repository
	pepper    []byte
}

// NewHandler constructs a Handler with the required domain dependencies.
// pepper is the HMAC key for API key hashing on the internal routes.
func NewHandler(
	engine *pricing.Engine,
	stores store.Repository,
	validator coupon.Validator,
	recorder *usage.Recorder,
	stats usage.StatsReader,
	apikeys auth.Repository,
	pepper []byte,
) *Handler {
	return &Handler{
		engine:    engine,
		stores:    stores,
		validator: validator,
		recorder:  recorder,
		stats:     stats,
		apikeys:   apikeys,
		pepper:    pepper,
	}
}

// Routes mounts all API routes on a fresh chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/stores/{slug}/cart/price", h.PriceCart)
		r.Post("/stores/{slug}/coupons/{code}/validate", h.ValidateCoupon)

		// Internal routes for the order-finalization and reporting
		// collaborators.
		r.Group(func(r chi.Router) {
			r.Use(h.requireAPIKey)
			r.Post("/coupon-usages", h.RecordUsage)
			r.Get("/influencers/{id}/stats", h.InfluencerStats)
		})
	})

	return r
}

// errorResponse is the uniform error envelope.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Code: status, Message: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body: "+err.Error())
		return false
	}
	return true
}
