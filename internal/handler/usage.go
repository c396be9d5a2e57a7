package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/itadmit/quickshop-pricing/internal/domain/usage"
)

type recordUsageRequest struct {
	CouponID       int64           `json:"couponId"`
	OrderID        string          `json:"orderId"`
	CustomerID     *int64          `json:"customerId,omitempty"`
	SessionID      string          `json:"sessionId,omitempty"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	OrderTotal     decimal.Decimal `json:"orderTotal"`
}

// RecordUsage persists a coupon redemption for a completed order. Callers
// invoke it only after the order is durably created; a duplicate order id is
// rejected with 409 and changes nothing.
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	var req recordUsageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.recorder.RecordUsage(r.Context(), usage.Record{
		CouponID:       req.CouponID,
		OrderID:        req.OrderID,
		CustomerID:     req.CustomerID,
		SessionID:      req.SessionID,
		DiscountAmount: req.DiscountAmount,
		OrderTotal:     req.OrderTotal,
	})
	switch {
	case err == nil:
		w.WriteHeader(http.StatusCreated)
	case errors.Is(err, usage.ErrDuplicateOrder):
		writeError(w, r, http.StatusConflict, "usage already recorded for this order")
	case errors.Is(err, usage.ErrUsageLimitExceeded):
		writeError(w, r, http.StatusConflict, "coupon usage limit exceeded")
	default:
		// The order itself stands regardless; this failure is reconciled out
		// of band by the caller.
		zctx.From(r.Context()).Error("record coupon usage",
			zap.String("order_id", req.OrderID),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, "failed to record usage")
	}
}

type influencerStatsResponse struct {
	Summary    statsSummaryJSON `json:"summary"`
	DailyStats []dailyStatJSON  `json:"dailyStats"`
}

type statsSummaryJSON struct {
	TotalOrders     int64           `json:"totalOrders"`
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
	TotalCommission decimal.Decimal `json:"totalCommission"`
	TotalCouponUses int64           `json:"totalCouponUses"`
}

type dailyStatJSON struct {
	Date       string          `json:"date"`
	Orders     int64           `json:"orders"`
	Revenue    decimal.Decimal `json:"revenue"`
	Commission decimal.Decimal `json:"commission"`
	CouponUses int64           `json:"couponUses"`
}

// InfluencerStats serves the affiliate dashboard: per-day aggregates plus a
// summary, optionally bounded by from/to date query params (YYYY-MM-DD).
func (h *Handler) InfluencerStats(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid influencer id")
		return
	}

	from, ok := parseDateParam(w, r, "from")
	if !ok {
		return
	}
	to, ok := parseDateParam(w, r, "to")
	if !ok {
		return
	}

	stats, err := h.stats.ListStats(r.Context(), id, from, to)
	if err != nil {
		zctx.From(r.Context()).Error("list influencer stats",
			zap.Int64("influencer_id", id),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, "failed to load stats")
		return
	}

	sum := usage.Summarize(stats)
	resp := influencerStatsResponse{
		Summary: statsSummaryJSON{
			TotalOrders:     sum.TotalOrders,
			TotalRevenue:    sum.TotalRevenue,
			TotalCommission: sum.TotalCommission,
			TotalCouponUses: sum.TotalCouponUses,
		},
		DailyStats: make([]dailyStatJSON, len(stats)),
	}
	for i, s := range stats {
		resp.DailyStats[i] = dailyStatJSON{
			Date:       s.Date.Format("2006-01-02"),
			Orders:     s.Orders,
			Revenue:    s.Revenue,
			Commission: s.Commission,
			CouponUses: s.CouponUses,
		}
	}

	writeJSON(w, r, http.StatusOK, resp)
}

func parseDateParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid "+name+" date, expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}
