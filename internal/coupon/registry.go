package coupon

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/reservation"
)

// Entry is one registered coupon.
type Entry struct {
	Coupon        Coupon          `json:"coupon"`
	AppliesTarget pricing.Level   `json:"appliesTarget"`
	Applied       bool            `json:"applied"`
	Discount      decimal.Decimal `json:"discount"`
	// HeldBy is the redeemer whose reservation backs the applied entry.
	HeldBy *reservation.Redeemer `json:"heldBy,omitempty"`
}

// Registry keeps entries in insertion order, one per code. It is owned by a
// single cart and is not safe for concurrent use.
type Registry struct {
	order   []string
	entries map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]*Entry{}}
}

// Insert registers a coupon that is not applied yet.
func (r *Registry) Insert(c Coupon) error {
	if r.Has(c.Code) {
		return common.WithDetails(ErrAlreadyRegistered, c.Code)
	}
	r.order = append(r.order, c.Code)
	r.entries[c.Code] = &Entry{Coupon: c, AppliesTarget: c.Target(), Discount: decimal.Zero}
	return nil
}

// put inserts c or swaps the DTO of an existing entry in place.
func (r *Registry) put(c Coupon) {
	if e, ok := r.entries[c.Code]; ok {
		e.Coupon = c
		e.AppliesTarget = c.Target()
		return
	}
	_ = r.Insert(c)
}

func (r *Registry) Has(code string) bool {
	_, ok := r.entries[code]
	return ok
}

func (r *Registry) Get(code string) (Entry, bool) {
	e, ok := r.entries[code]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (r *Registry) MarkApplied(code string, discount decimal.Decimal) error {
	e, ok := r.entries[code]
	if !ok {
		return common.WithDetails(ErrNotFound, code)
	}
	e.AppliesTarget = e.Coupon.Target()
	e.Applied = true
	e.Discount = discount
	return nil
}

func (r *Registry) MarkUnapplied(code string) error {
	e, ok := r.entries[code]
	if !ok {
		return common.WithDetails(ErrNotFound, code)
	}
	e.Applied = false
	e.Discount = decimal.Zero
	e.HeldBy = nil
	return nil
}

func (r *Registry) hold(code string, by reservation.Redeemer) {
	if e, ok := r.entries[code]; ok {
		held := by
		e.HeldBy = &held
	}
}

// Delete removes the entry and reports whether it existed.
func (r *Registry) Delete(code string) bool {
	if !r.Has(code) {
		return false
	}
	delete(r.entries, code)
	for i, c := range r.order {
		if c == code {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// All returns every entry in insertion order.
func (r *Registry) All() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, *r.entries[code])
	}
	return out
}

// Applied returns the applied entries in insertion order.
func (r *Registry) Applied() []Entry {
	var out []Entry
	for _, code := range r.order {
		if e := r.entries[code]; e.Applied {
			out = append(out, *e)
		}
	}
	return out
}

// Inputs returns the pricing inputs of the applied entries.
func (r *Registry) Inputs() []pricing.CouponInput {
	var out []pricing.CouponInput
	for _, e := range r.Applied() {
		out = append(out, e.Coupon.Input())
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }

func (r *Registry) clone() *Registry {
	out := &Registry{order: append([]string(nil), r.order...), entries: make(map[string]*Entry, len(r.entries))}
	for code, e := range r.entries {
		cp := *e
		out.entries[code] = &cp
	}
	return out
}

func (r *Registry) Clear() {
	r.order = nil
	r.entries = map[string]*Entry{}
}
