package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/itadmit/quickshop-pricing/internal/domain/cart"
	"github.com/itadmit/quickshop-pricing/internal/domain/coupon"
	"github.com/itadmit/quickshop-pricing/internal/domain/store"
)

type validateCouponRequest struct {
	Items      []cartLineJSON `json:"items"`
	CustomerID *int64         `json:"customerId,omitempty"`
}

type validateCouponResponse struct {
	Valid          bool             `json:"valid"`
	Reason         string           `json:"reason,omitempty"`
	Message        string           `json:"message,omitempty"`
	Coupon         *couponInfoJSON  `json:"coupon,omitempty"`
	DiscountAmount *decimal.Decimal `json:"discountAmount,omitempty"`
	FreeShipping   bool             `json:"freeShipping"`
}

type couponInfoJSON struct {
	ID            int64           `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	DiscountType  string          `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
}

// ValidateCoupon checks a code against the supplied cart and previews the
// discount it would grant. Validation and pricing stay decoupled: a rejected
// code yields a reason, not an amount.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	slug := chi.URLParam(r, "slug")
	st, err := h.stores.FindBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "store not found")
			return
		}
		zctx.From(r.Context()).Error("resolve store", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "store lookup failed")
		return
	}

	lines := make([]cart.Line, len(req.Items))
	for i, item := range req.Items {
		lines[i] = cart.Line{
			ProductID:  item.ProductID,
			CategoryID: item.CategoryID,
			VariantID:  item.VariantID,
			Quantity:   item.Quantity,
			UnitPrice:  item.Price,
		}
	}
	if err := cart.Validate(lines); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	code := chi.URLParam(r, "code")
	c, err := h.validator.Validate(r.Context(), st.ID, code, lines, customerFromID(req.CustomerID))
	if err != nil {
		if rej, ok := coupon.IsRejection(err); ok {
			status := http.StatusUnprocessableEntity
			if rej.Code == coupon.RejectNotFound {
				status = http.StatusNotFound
			}
			writeJSON(w, r, status, validateCouponResponse{
				Valid:   false,
				Reason:  string(rej.Code),
				Message: rej.Message,
			})
			return
		}
		zctx.From(r.Context()).Error("validate coupon", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "failed to validate coupon")
		return
	}

	comp, err := coupon.PreviewAmount(c, lines)
	if err != nil {
		writeJSON(w, r, http.StatusUnprocessableEntity, validateCouponResponse{
			Valid:   false,
			Reason:  string(coupon.RejectNotApplicable),
			Message: "coupon does not apply to items in cart",
		})
		return
	}

	writeJSON(w, r, http.StatusOK, validateCouponResponse{
		Valid: true,
		Coupon: &couponInfoJSON{
			ID:            c.ID,
			Code:          c.Code,
			Name:          c.Name,
			DiscountType:  string(c.Type),
			DiscountValue: c.Value,
		},
		DiscountAmount: &comp.Amount,
		FreeShipping:   comp.FreeShipping,
	})
}
