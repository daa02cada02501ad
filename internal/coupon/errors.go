package coupon

import (
	"net/http"

	"github.com/noah-isme/toko-cart/internal/common"
)

var (
	ErrNotFound          = common.NewAppError("coupon_not_found", "coupon not found", http.StatusNotFound, nil)
	ErrDisabled          = common.NewAppError("coupon_disabled", "coupon is disabled", http.StatusUnprocessableEntity, nil)
	ErrExpired           = common.NewAppError("coupon_expired", "coupon has expired", http.StatusUnprocessableEntity, nil)
	ErrOverQuantity      = common.NewAppError("coupon_over_quantity", "coupon quantity exhausted", http.StatusConflict, nil)
	ErrOverLimit         = common.NewAppError("coupon_over_limit", "coupon usage limit reached for redeemer", http.StatusConflict, nil)
	ErrNotAllowed        = common.NewAppError("coupon_not_allowed", "coupon not allowed for redeemer", http.StatusForbidden, nil)
	ErrBelowMinimumOrder = common.NewAppError("coupon_minimum_order", "cart below coupon minimum order value", http.StatusUnprocessableEntity, nil)
	ErrAlreadyRegistered = common.NewAppError("coupon_already_registered", "coupon already registered", http.StatusConflict, nil)
	ErrRedemptionFailed  = common.NewAppError("coupon_redemption_failed", "coupon redemption failed", http.StatusBadGateway, nil)
	ErrNoRedeemer        = common.NewAppError("coupon_no_redeemer", "no redeemer resolved", http.StatusUnauthorized, nil)
	ErrNotApplied        = common.NewAppError("coupon_not_applied", "coupon is registered but not applied", http.StatusConflict, nil)
)
