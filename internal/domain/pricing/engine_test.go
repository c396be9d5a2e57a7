package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itadmit/quickshop-pricing/internal/domain/cart"
	"github.com/itadmit/quickshop-pricing/internal/domain/coupon"
	"github.com/itadmit/quickshop-pricing/internal/domain/discount"
	"github.com/itadmit/quickshop-pricing/internal/domain/store"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// testStore has a 200 free-shipping threshold and a flat 25 rate.
var testStore = store.Store{
	ID:                    1,
	Slug:                  "demo",
	Name:                  "Demo",
	Currency:              "ILS",
	FreeShippingThreshold: d("200"),
	ShippingRate:          d("25"),
}

type fakeStores struct {
	stores map[string]*store.Store
}

func (f *fakeStores) FindBySlug(_ context.Context, slug string) (*store.Store, error) {
	if s, ok := f.stores[slug]; ok {
		return s, nil
	}
	return nil, store.ErrNotFound
}

type fakeValidator struct {
	coupon *coupon.Coupon
	err    error
}

func (f *fakeValidator) Validate(context.Context, int64, string, []cart.Line, *discount.Customer) (*coupon.Coupon, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.coupon, nil
}

type fakeDiscounts struct {
	rules []discount.Automatic
	err   error
}

func (f *fakeDiscounts) ListActive(context.Context, int64, time.Time) ([]discount.Automatic, error) {
	return f.rules, f.err
}

func newTestEngine(v coupon.Validator, rules []discount.Automatic, opts ...Option) *Engine {
	stores := &fakeStores{stores: map[string]*store.Store{"demo": &testStore}}
	if v == nil {
		v = &fakeValidator{err: &coupon.Rejection{Code: coupon.RejectNotFound, Message: "coupon not found"}}
	}
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return NewEngine(stores, v, &fakeDiscounts{rules: rules}, opts...)
}

func cartOf(total string) []cart.Line {
	return []cart.Line{{ProductID: 1, Quantity: 1, UnitPrice: d(total)}}
}

func percentCoupon(value string, maxDiscount *decimal.Decimal) *coupon.Coupon {
	return &coupon.Coupon{
		Rule: discount.Rule{
			ID:              10,
			Name:            "test coupon",
			Status:          discount.StatusActive,
			Type:            discount.TypePercentage,
			Value:           d(value),
			MaximumDiscount: maxDiscount,
		},
		Code: "TEST",
	}
}

func autoRule(id int64, typ discount.Type, value string) discount.Automatic {
	return discount.Automatic{
		Rule: discount.Rule{
			ID:     id,
			Name:   "auto",
			Status: discount.StatusActive,
			Type:   typ,
			Value:  d(value),
		},
		Stackable: true,
		CreatedAt: testNow,
	}
}

func assertEq(t *testing.T, want string, got decimal.Decimal, label string) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "%s: got %s, want %s", label, got, want)
}

func TestPriceFreeShippingOverThreshold(t *testing.T) {
	// Subtotal 250 over a 200 threshold ships free with no discounts at all.
	e := newTestEngine(nil, nil)

	res, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("250")})
	require.NoError(t, err)

	assertEq(t, "250", res.Subtotal, "subtotal")
	assertEq(t, "0", res.ShippingOriginal, "original shipping")
	assertEq(t, "0", res.ShippingFinal, "final shipping")
	assertEq(t, "250", res.Total, "total")
	assert.Empty(t, res.Applied)
	assert.Nil(t, res.CouponRejection)
}

func TestPriceChargesShippingBelowThreshold(t *testing.T) {
	e := newTestEngine(nil, nil)

	res, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("100")})
	require.NoError(t, err)

	assertEq(t, "25", res.ShippingFinal, "final shipping")
	assertEq(t, "125", res.Total, "total")
}

func TestPriceCouponCappedByMaximumDiscount(t *testing.T) {
	// 10% of 100 is 10, capped at 5.
	v := &fakeValidator{coupon: percentCoupon("10", dp("5"))}
	e := newTestEngine(v, nil)

	res, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("100"), CouponCode: "TEST"})
	require.NoError(t, err)

	assertEq(t, "5", res.DiscountAmount, "discount")
	assertEq(t, "120", res.Total, "total") // 100 - 5 + 25 shipping
	require.Len(t, res.Applied, 1)
	assert.Equal(t, SourceCoupon, res.Applied[0].Source)
}

func TestPriceRejectedCouponDoesNotAbort(t *testing.T) {
	v := &fakeValidator{err: &coupon.Rejection{
		Code:    coupon.RejectBelowMinimum,
		Message: "minimum order amount is 100.00",
	}}
	e := newTestEngine(v, nil)

	res, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("50"), CouponCode: "MIN100"})
	require.NoError(t, err)

	require.NotNil(t, res.CouponRejection)
	assert.Equal(t, coupon.RejectBelowMinimum, res.CouponRejection.Code)
	assert.Empty(t, res.Applied)
	assertEq(t, "0", res.DiscountAmount, "discount")
	assertEq(t, "75", res.Total, "total") // 50 + 25 shipping
}

func TestPriceInvalidCouponMatchesNoCoupon(t *testing.T) {
	// A cart priced with a rejected code must total the same as without it.
	e := newTestEngine(nil, nil)

	withCode, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("120"), CouponCode: "BOGUS"})
	require.NoError(t, err)
	without, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("120")})
	require.NoError(t, err)

	assert.True(t, withCode.Total.Equal(without.Total))
	assert.NotNil(t, withCode.CouponRejection)
}

func TestPriceValidatorInfrastructureFailureDegrades(t *testing.T) {
	v := &fakeValidator{err: errors.New("connection refused")}
	e := newTestEngine(v, nil)

	res, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("100"), CouponCode: "ANY"})
	require.NoError(t, err, "a validator outage must not block checkout")
	require.NotNil(t, res.CouponRejection)
	assertEq(t, "125", res.Total, "total")
}

func TestPriceBuyXGetYScoped(t *testing.T) {
	// 5 units of product 7 at 20 under buy-2-get-1: 2 sets, 2 free units, 40 off.
	rule := autoRule(20, discount.TypeBuyXGetY, "0")
	rule.BuyQuantity = 2
	rule.GetQuantity = 1
	rule.Scope = discount.Scope{ApplicableProducts: []int64{7}}

	e := newTestEngine(nil, []discount.Automatic{rule})

	res, err := e.Price(t.Context(), Request{
		StoreSlug: "demo",
		Lines:     []cart.Line{{ProductID: 7, Quantity: 5, UnitPrice: d("20")}},
	})
	require.NoError(t, err)

	assertEq(t, "40", res.DiscountAmount, "discount")
	require.Len(t, res.Applied, 1)
	assert.Equal(t, SourceAutomatic, res.Applied[0].Source)
}

func TestPriceTieredSelectsHighestQualifying(t *testing.T) {
	rule := discount.Automatic{
		Rule: discount.Rule{
			ID:     30,
			Name:   "spend more",
			Status: discount.StatusActive,
			Type:   discount.TypeTiered,
			Tiers: []discount.Tier{
				{MinAmount: d("0"), Type: discount.TypePercentage, Value: d("5")},
				{MinAmount: d("200"), Type: discount.TypePercentage, Value: d("10")},
				{MinAmount: d("500"), Type: discount.TypePercentage, Value: d("15")},
			},
		},
		Stackable: true,
		CreatedAt: testNow,
	}
	e := newTestEngine(nil, []discount.Automatic{rule})

	res, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("300")})
	require.NoError(t, err)

	assertEq(t, "30", res.DiscountAmount, "discount") // 10% of 300
}

func TestPriceTotalNeverNegative(t *testing.T) {
	// Discounts exceeding the subtotal floor the item total at zero.
	rules := []discount.Automatic{
		autoRule(1, discount.TypeFixedAmount, "80"),
		autoRule(2, discount.TypeFixedAmount, "80"),
	}
	e := newTestEngine(nil, rules)

	res, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("100")})
	require.NoError(t, err)

	assertEq(t, "25", res.Total, "total") // floored items + shipping
	assert.False(t, res.Total.IsNegative())
}

func TestPriceFreeShippingIdempotent(t *testing.T) {
	// Multiple free-shipping rules zero the charge once; savings count it once.
	rules := []discount.Automatic{
		autoRule(1, discount.TypeFreeShipping, "0"),
		autoRule(2, discount.TypeFreeShipping, "0"),
	}
	e := newTestEngine(nil, rules)

	res, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("100")})
	require.NoError(t, err)

	assertEq(t, "25", res.ShippingOriginal, "original shipping")
	assertEq(t, "0", res.ShippingFinal, "final shipping")
	assertEq(t, "25", res.Savings, "savings")
	assertEq(t, "100", res.Total, "total")
}

func TestPriceAppliesPriorityOrder(t *testing.T) {
	older := autoRule(1, discount.TypePercentage, "5")
	older.Priority = 1
	older.CreatedAt = testNow.Add(-time.Hour)

	newer := autoRule(2, discount.TypePercentage, "10")
	newer.Priority = 1
	newer.CreatedAt = testNow

	top := autoRule(3, discount.TypePercentage, "15")
	top.Priority = 9
	top.CreatedAt = testNow.Add(-2 * time.Hour)

	// Supply in scrambled order: the engine must sort by priority descending,
	// then most recently created.
	e := newTestEngine(nil, []discount.Automatic{older, top, newer})

	res, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("100")})
	require.NoError(t, err)

	require.Len(t, res.Applied, 3)
	assert.Equal(t, int64(3), res.Applied[0].RuleID)
	assert.Equal(t, int64(2), res.Applied[1].RuleID)
	assert.Equal(t, int64(1), res.Applied[2].RuleID)
}

func TestPriceStackingPolicies(t *testing.T) {
	nonStackable := autoRule(1, discount.TypeFixedAmount, "10")
	nonStackable.Priority = 10
	nonStackable.Stackable = false

	stackable := autoRule(2, discount.TypeFixedAmount, "5")
	stackable.Priority = 1

	rules := []discount.Automatic{nonStackable, stackable}

	t.Run("stack all ignores the flag", func(t *testing.T) {
		e := newTestEngine(nil, rules)

		res, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("100")})
		require.NoError(t, err)

		assert.Len(t, res.Applied, 2)
		assertEq(t, "15", res.DiscountAmount, "discount")
	})

	t.Run("halt on non-stackable stops after it", func(t *testing.T) {
		e := newTestEngine(nil, rules, WithStackingPolicy(HaltOnNonStackable))

		res, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("100")})
		require.NoError(t, err)

		require.Len(t, res.Applied, 1)
		assert.Equal(t, int64(1), res.Applied[0].RuleID)
		assertEq(t, "10", res.DiscountAmount, "discount")
	})
}

func TestPriceSkipsMalformedAutomaticRule(t *testing.T) {
	broken := autoRule(1, discount.TypeBuyXGetY, "0") // missing quantities
	good := autoRule(2, discount.TypePercentage, "10")

	e := newTestEngine(nil, []discount.Automatic{broken, good})

	res, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("100")})
	require.NoError(t, err)

	require.Len(t, res.Applied, 1)
	assert.Equal(t, int64(2), res.Applied[0].RuleID)
}

func TestPriceSkipsZeroAmountRules(t *testing.T) {
	zero := autoRule(1, discount.TypePercentage, "0")
	e := newTestEngine(nil, []discount.Automatic{zero})

	res, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("100")})
	require.NoError(t, err)
	assert.Empty(t, res.Applied, "zero-amount rules are dropped from the breakdown")
}

func TestPriceFiltersByMinimumAndScope(t *testing.T) {
	belowMin := autoRule(1, discount.TypePercentage, "10")
	belowMin.MinimumAmount = dp("500")

	wrongScope := autoRule(2, discount.TypePercentage, "10")
	wrongScope.Scope = discount.Scope{ApplicableProducts: []int64{999}}

	e := newTestEngine(nil, []discount.Automatic{belowMin, wrongScope})

	res, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("100")})
	require.NoError(t, err)
	assert.Empty(t, res.Applied)
}

func TestPriceUnknownStore(t *testing.T) {
	e := newTestEngine(nil, nil)

	_, err := e.Price(t.Context(), Request{StoreSlug: "missing", Lines: cartOf("100")})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPriceInvalidCart(t *testing.T) {
	e := newTestEngine(nil, nil)

	_, err := e.Price(t.Context(), Request{StoreSlug: "demo"})
	var verr *cart.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestPriceDiscountRepoFailureFailsRequest(t *testing.T) {
	stores := &fakeStores{stores: map[string]*store.Store{"demo": &testStore}}
	v := &fakeValidator{err: &coupon.Rejection{Code: coupon.RejectNotFound, Message: "nope"}}
	e := NewEngine(stores, v, &fakeDiscounts{err: errors.New("db down")}, WithClock(fixedClock))

	_, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("100")})
	require.Error(t, err)
}

func TestPriceSubtotalAdditivity(t *testing.T) {
	e := newTestEngine(nil, nil)

	res, err := e.Price(t.Context(), Request{
		StoreSlug: "demo",
		Lines: []cart.Line{
			{ProductID: 1, Quantity: 2, UnitPrice: d("19.90")},
			{ProductID: 2, Quantity: 1, UnitPrice: d("45.50")},
			{ProductID: 3, Quantity: 3, UnitPrice: d("7.00")},
		},
	})
	require.NoError(t, err)
	assertEq(t, "106.30", res.Subtotal, "subtotal")
}

func TestPriceCouponAndAutomaticCombine(t *testing.T) {
	v := &fakeValidator{coupon: percentCoupon("10", nil)}
	auto := autoRule(5, discount.TypeFixedAmount, "20")

	e := newTestEngine(v, []discount.Automatic{auto})

	res, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("300"), CouponCode: "TEST"})
	require.NoError(t, err)

	require.Len(t, res.Applied, 2)
	assert.Equal(t, SourceCoupon, res.Applied[0].Source)
	assert.Equal(t, SourceAutomatic, res.Applied[1].Source)
	assertEq(t, "50", res.DiscountAmount, "discount") // 30 + 20
	assertEq(t, "250", res.Total, "total")            // 300 - 50, free shipping over threshold
	assertEq(t, "50", res.Savings, "savings")
}

func TestPriceSegmentMatcherFilters(t *testing.T) {
	rule := autoRule(1, discount.TypePercentage, "10")
	e := newTestEngine(nil, []discount.Automatic{rule},
		WithSegmentMatcher(segmentFunc(func(_ context.Context, _ *discount.Automatic, c *discount.Customer) bool {
			return c != nil && c.ID == 42
		})),
	)

	res, err := e.Price(t.Context(), Request{StoreSlug: "demo", Lines: cartOf("100")})
	require.NoError(t, err)
	assert.Empty(t, res.Applied, "guest fails the segment predicate")

	res, err = e.Price(t.Context(), Request{
		StoreSlug: "demo",
		Lines:     cartOf("100"),
		Customer:  &discount.Customer{ID: 42},
	})
	require.NoError(t, err)
	assert.Len(t, res.Applied, 1)
}

type segmentFunc func(context.Context, *discount.Automatic, *discount.Customer) bool

func (f segmentFunc) Matches(ctx context.Context, r *discount.Automatic, c *discount.Customer) bool {
	return f(ctx, r, c)
}
