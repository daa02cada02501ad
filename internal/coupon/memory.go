package coupon

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/reservation"
)

// MemoryProvider is an in-process Provider backed by a fixed coupon catalogue.
// The quote tool and tests use it where no database is available.
type MemoryProvider struct {
	mu          sync.Mutex
	coupons     map[string]Coupon
	allowed     map[string]map[string]bool
	redemptions map[string]map[string]int
	seq         int64
	now         func() time.Time
}

func NewMemoryProvider(coupons ...Coupon) *MemoryProvider {
	p := &MemoryProvider{
		coupons:     map[string]Coupon{},
		allowed:     map[string]map[string]bool{},
		redemptions: map[string]map[string]int{},
		now:         time.Now,
	}
	for _, c := range coupons {
		p.Put(c)
	}
	return p
}

// Put adds or replaces a coupon.
func (p *MemoryProvider) Put(c Coupon) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.coupons[c.Code] = c
}

// Allow restricts code to the given redeemers. Without a call every redeemer
// is allowed.
func (p *MemoryProvider) Allow(code string, redeemers ...reservation.Redeemer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.allowed[code]
	if set == nil {
		set = map[string]bool{}
		p.allowed[code] = set
	}
	for _, r := range redeemers {
		set[r.Key()] = true
	}
}

func (p *MemoryProvider) Lookup(_ context.Context, code string) (Coupon, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.coupons[code]
	if !ok {
		return Coupon{}, common.WithDetails(ErrNotFound, code)
	}
	return c, nil
}

func (p *MemoryProvider) Eligibility(_ context.Context, code string, r reservation.Redeemer) (Eligibility, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	allowed := true
	if set, ok := p.allowed[code]; ok {
		allowed = set[r.Key()]
	}
	return Eligibility{Allowed: allowed, Redeemed: p.redemptions[code][r.Key()]}, nil
}

func (p *MemoryProvider) Redeem(_ context.Context, code string, r reservation.Redeemer, orderAmount decimal.Decimal) (Redemption, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.coupons[code]
	if !ok {
		return Redemption{}, common.WithDetails(ErrNotFound, code)
	}
	if !c.Enabled {
		return Redemption{}, common.WithDetails(ErrDisabled, code)
	}
	if c.Quantity != nil {
		if *c.Quantity <= 0 {
			return Redemption{}, common.WithDetails(ErrOverQuantity, code)
		}
		left := *c.Quantity - 1
		c.Quantity = &left
		p.coupons[code] = c
	}
	if p.redemptions[code] == nil {
		p.redemptions[code] = map[string]int{}
	}
	p.redemptions[code][r.Key()]++
	p.seq++
	return Redemption{ID: p.seq, Code: code, Redeemer: r, OrderAmount: orderAmount, RedeemedAt: p.now()}, nil
}
