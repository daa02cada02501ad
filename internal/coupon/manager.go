package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/reservation"
)

// Manager runs the coupon lifecycle for one cart against a shared Provider
// and reservation Store.
type Manager struct {
	Provider Provider
	Store    reservation.Store
	TTL      time.Duration
	Now      func() time.Time
	Logger   zerolog.Logger

	registry *Registry
}

func NewManager(provider Provider, store reservation.Store, ttl time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{
		Provider: provider,
		Store:    store,
		TTL:      ttl,
		Now:      time.Now,
		Logger:   obs.Component(logger, "coupon"),
		registry: NewRegistry(),
	}
}

// Registry exposes the entries managed for the cart.
func (m *Manager) Registry() *Registry {
	if m.registry == nil {
		m.registry = NewRegistry()
	}
	return m.registry
}

func (m *Manager) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

// Add registers code without applying it. Adding a registered code is a no-op.
func (m *Manager) Add(ctx context.Context, code string) (err error) {
	defer func() { obs.ObserveCouponOperation("add", err) }()
	if m.Registry().Has(code) {
		return nil
	}
	c, err := m.lookup(ctx, code)
	if err != nil {
		return err
	}
	if err := m.Registry().Insert(c); err != nil {
		return err
	}
	m.Logger.Debug().Str("code", code).Msg("coupon registered")
	return nil
}

func (m *Manager) lookup(ctx context.Context, code string) (Coupon, error) {
	c, err := m.Provider.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Coupon{}, err
		}
		return Coupon{}, fmt.Errorf("lookup coupon %s: %w", code, err)
	}
	return c, nil
}

// Verify fetches a fresh copy of the coupon and checks it against the cart
// and the redeemer. It never changes the registry or the store.
func (m *Manager) Verify(ctx context.Context, code string, cart Cart, r reservation.Redeemer) (c Coupon, err error) {
	defer func() { obs.ObserveCouponOperation("verify", err) }()
	if r.Kind == "" || r.ID == "" {
		return Coupon{}, ErrNoRedeemer
	}
	c, err = m.lookup(ctx, code)
	if err != nil {
		return Coupon{}, err
	}
	if !c.Enabled {
		return Coupon{}, common.WithDetails(ErrDisabled, code)
	}
	if c.IsExpired(m.now()) {
		return Coupon{}, common.WithDetails(ErrExpired, code)
	}
	if c.Quantity != nil {
		held, err := m.Store.CountActiveExcept(ctx, code, r)
		if err != nil {
			return Coupon{}, fmt.Errorf("count reservations: %w", err)
		}
		if *c.Quantity-held <= 0 {
			return Coupon{}, common.WithDetails(ErrOverQuantity, code)
		}
	}
	if c.MinOrderValue != nil && cart != nil && cart.InitialSubtotal().LessThan(*c.MinOrderValue) {
		return Coupon{}, common.WithDetails(ErrBelowMinimumOrder, code)
	}
	elig, err := m.Provider.Eligibility(ctx, code, r)
	if err != nil {
		return Coupon{}, fmt.Errorf("coupon eligibility: %w", err)
	}
	if !elig.Allowed {
		return Coupon{}, common.WithDetails(ErrNotAllowed, code)
	}
	if c.LimitPerRedeemer != nil && elig.Redeemed >= *c.LimitPerRedeemer {
		return Coupon{}, common.WithDetails(ErrOverLimit, code)
	}
	return c, nil
}

// Apply verifies code, reserves it for r and marks the entry applied with the
// discount computed by a fresh recalculation of cart.
func (m *Manager) Apply(ctx context.Context, code string, cart Cart, r reservation.Redeemer) (entry Entry, err error) {
	defer func() { obs.ObserveCouponOperation("apply", err) }()
	c, err := m.Verify(ctx, code, cart, r)
	if err != nil {
		return Entry{}, err
	}

	limit := -1
	if c.Quantity != nil {
		limit = *c.Quantity
	}
	ok, err := m.Store.TryReserve(ctx, code, r, m.TTL, limit)
	if err != nil {
		return Entry{}, fmt.Errorf("reserve coupon %s: %w", code, err)
	}
	if !ok {
		return Entry{}, common.WithDetails(ErrOverQuantity, code)
	}

	reg := m.Registry()
	var previous *reservation.Redeemer
	if prev, found := reg.Get(code); found && prev.HeldBy != nil && prev.HeldBy.Key() != r.Key() {
		previous = prev.HeldBy
	}
	reg.put(c)
	if err := reg.MarkApplied(code, decimal.Zero); err != nil {
		m.release(ctx, code, r)
		return Entry{}, err
	}
	reg.hold(code, r)
	if previous != nil {
		m.release(ctx, code, *previous)
	}
	if cart != nil {
		cart.Recalculate()
		if amount, found := cart.CouponAmount(code); found {
			_ = reg.MarkApplied(code, amount)
		}
	}
	entry, _ = reg.Get(code)
	m.Logger.Info().Str("code", code).Str("redeemer", r.Key()).Str("discount", entry.Discount.String()).Msg("coupon applied")
	return entry, nil
}

// Unapply releases the reservation backing code and drops the entry.
// Unknown codes are ignored.
func (m *Manager) Unapply(ctx context.Context, code string) (err error) {
	defer func() { obs.ObserveCouponOperation("unapply", err) }()
	entry, ok := m.Registry().Get(code)
	if !ok {
		return nil
	}
	if entry.HeldBy != nil {
		if err := m.Store.Release(ctx, code, *entry.HeldBy); err != nil {
			return fmt.Errorf("release coupon %s: %w", code, err)
		}
	}
	m.Registry().Delete(code)
	m.Logger.Info().Str("code", code).Msg("coupon unapplied")
	return nil
}

// Remove releases r's reservation on code and drops the entry.
func (m *Manager) Remove(ctx context.Context, code string, r reservation.Redeemer) (err error) {
	defer func() { obs.ObserveCouponOperation("remove", err) }()
	entry, ok := m.Registry().Get(code)
	if !ok {
		return nil
	}
	if r.Kind != "" && r.ID != "" {
		if err := m.Store.Release(ctx, code, r); err != nil {
			return fmt.Errorf("release coupon %s: %w", code, err)
		}
	}
	if entry.HeldBy != nil && entry.HeldBy.Key() != r.Key() {
		if err := m.Store.Release(ctx, code, *entry.HeldBy); err != nil {
			return fmt.Errorf("release coupon %s: %w", code, err)
		}
	}
	m.Registry().Delete(code)
	m.Logger.Info().Str("code", code).Msg("coupon removed")
	return nil
}

// ApplyUsage redeems an applied code against the cart's final subtotal, then
// releases the reservation and drops the entry. Registered but unapplied codes
// are rejected with ErrNotApplied. When redemption fails the reservation
// is released, the entry stays applied and ErrRedemptionFailed is returned;
// the caller decides whether to retry.
func (m *Manager) ApplyUsage(ctx context.Context, code string, cart Cart, r reservation.Redeemer) (red Redemption, err error) {
	defer func() { obs.ObserveCouponOperation("apply_usage", err) }()
	entry, ok := m.Registry().Get(code)
	if !ok {
		return Redemption{}, common.WithDetails(ErrNotFound, code)
	}
	if !entry.Applied {
		return Redemption{}, common.WithDetails(ErrNotApplied, code)
	}
	if r.Kind == "" || r.ID == "" {
		if entry.HeldBy == nil {
			return Redemption{}, ErrNoRedeemer
		}
		r = *entry.HeldBy
	}

	amount := decimal.Zero
	if cart != nil {
		amount = cart.FinalSubtotal()
	}
	red, err = m.Provider.Redeem(ctx, code, r, amount)
	if err != nil {
		m.release(ctx, code, r)
		m.Logger.Error().Err(err).Str("code", code).Str("redeemer", r.Key()).Msg("coupon redemption failed")
		return Redemption{}, common.Wrap(ErrRedemptionFailed, err)
	}
	m.release(ctx, code, r)
	m.Registry().Delete(code)
	m.Logger.Info().Str("code", code).Str("redeemer", r.Key()).Int64("redemption_id", red.ID).Msg("coupon used")
	return red, nil
}

// ApplyAllUsage redeems every applied entry in registration order and stops
// at the first failure.
func (m *Manager) ApplyAllUsage(ctx context.Context, cart Cart, r reservation.Redeemer) ([]Redemption, error) {
	var out []Redemption
	for _, e := range m.Registry().Applied() {
		red, err := m.ApplyUsage(ctx, e.Coupon.Code, cart, r)
		if err != nil {
			return out, err
		}
		out = append(out, red)
	}
	return out, nil
}

// Restore rehydrates entries from a snapshot without verifying them. On error
// the registry is left as it was.
func (m *Manager) Restore(entries []Entry) error {
	reg := m.Registry().clone()
	if err := restoreInto(reg, entries); err != nil {
		return err
	}
	m.registry = reg
	return nil
}

// Replace swaps the registry for one rebuilt from entries. On error the
// current entries are kept.
func (m *Manager) Replace(entries []Entry) error {
	reg := NewRegistry()
	if err := restoreInto(reg, entries); err != nil {
		return err
	}
	m.registry = reg
	return nil
}

func restoreInto(reg *Registry, entries []Entry) error {
	for _, e := range entries {
		if err := reg.Insert(e.Coupon); err != nil {
			return err
		}
		if e.Applied {
			if err := reg.MarkApplied(e.Coupon.Code, e.Discount); err != nil {
				return err
			}
			if e.HeldBy != nil {
				reg.hold(e.Coupon.Code, *e.HeldBy)
			}
		}
	}
	return nil
}

// Snapshot returns the entries for persistence.
func (m *Manager) Snapshot() []Entry {
	return m.Registry().All()
}

// Clear drops every entry without touching reservations.
func (m *Manager) Clear() {
	m.Registry().Clear()
}

func (m *Manager) release(ctx context.Context, code string, r reservation.Redeemer) {
	if err := m.Store.Release(ctx, code, r); err != nil {
		m.Logger.Warn().Err(err).Str("code", code).Str("redeemer", r.Key()).Msg("release reservation failed")
	}
}
