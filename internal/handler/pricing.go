package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/itadmit/quickshop-pricing/internal/domain/cart"
	"github.com/itadmit/quickshop-pricing/internal/domain/discount"
	"github.com/itadmit/quickshop-pricing/internal/domain/pricing"
	"github.com/itadmit/quickshop-pricing/internal/domain/store"
)

type cartLineJSON struct {
	ProductID  int64           `json:"productId"`
	CategoryID int64           `json:"categoryId,omitempty"`
	VariantID  int64           `json:"variantId,omitempty"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

type priceRequest struct {
	Items      []cartLineJSON `json:"items"`
	CouponCode string         `json:"couponCode,omitempty"`
	CustomerID *int64         `json:"customerId,omitempty"`
}

type appliedDiscountJSON struct {
	Source       string          `json:"source"`
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	DiscountType string          `json:"discountType"`
}

type couponStatusJSON struct {
	Valid   bool   `json:"valid"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

type priceResponse struct {
	Subtotal         decimal.Decimal       `json:"subtotal"`
	OriginalShipping decimal.Decimal       `json:"originalShipping"`
	Shipping         decimal.Decimal       `json:"shipping"`
	DiscountAmount   decimal.Decimal       `json:"discountAmount"`
	Total            decimal.Decimal       `json:"total"`
	Savings          decimal.Decimal       `json:"savings"`
	AppliedDiscounts []appliedDiscountJSON `json:"appliedDiscounts"`
	Coupon           *couponStatusJSON     `json:"coupon,omitempty"`
}

// PriceCart evaluates a cart for the store identified by slug. Invoked for
// both pre-checkout previews and order finalization; finalization callers
// must not reuse a cached preview.
func (h *Handler) PriceCart(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if !decodeJSON(w, r, &req) {
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

	result, err := h.engine.Price(r.Context(), pricing.Request{
		StoreSlug:  chi.URLParam(r, "slug"),
		Lines:      lines,
		CouponCode: req.CouponCode,
		Customer:   customerFromID(req.CustomerID),
	})
	if err != nil {
		h.writePricingError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toPriceResponse(result))
}

func (h *Handler) writePricingError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "store not found")
		return
	}

	var cartErr *cart.ValidationError
	if errors.As(err, &cartErr) {
		writeError(w, r, http.StatusUnprocessableEntity, cartErr.Error())
		return
	}

	zctx.From(r.Context()).Error("pricing failed", zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "pricing failed")
}

func toPriceResponse(res *pricing.Result) priceResponse {
	applied := make([]appliedDiscountJSON, len(res.Applied))
	for i, a := range res.Applied {
		applied[i] = appliedDiscountJSON{
			Source:       string(a.Source),
			ID:           a.RuleID,
			Name:         a.Name,
			Amount:       a.Amount,
			DiscountType: string(a.Type),
		}
	}

	resp := priceResponse{
		Subtotal:         res.Subtotal,
		OriginalShipping: res.ShippingOriginal,
		Shipping:         res.ShippingFinal,
		DiscountAmount:   res.DiscountAmount,
		Total:            res.Total,
		Savings:          res.Savings,
		AppliedDiscounts: applied,
	}
	if res.CouponRejection != nil {
		resp.Coupon = &couponStatusJSON{
			Valid:   false,
			Reason:  string(res.CouponRejection.Code),
			Message: res.CouponRejection.Message,
		}
	}
	return resp
}

func customerFromID(id *int64) *discount.Customer {
	if id == nil {
		return nil
	}
	return &discount.Customer{ID: *id}
}
