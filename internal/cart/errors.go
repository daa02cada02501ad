package cart

import (
	"net/http"

	"github.com/noah-isme/toko-cart/internal/common"
)

var (
	ErrInvalidLineItem = common.NewAppError("invalid_line_item", "invalid line item", http.StatusUnprocessableEntity, nil)
	ErrInvalidAmount   = common.NewAppError("invalid_amount", "amount must not be negative", http.StatusUnprocessableEntity, nil)
	ErrUnknownRow      = common.NewAppError("unknown_row", "cart does not contain row", http.StatusNotFound, nil)
	ErrAlreadyStored   = common.NewAppError("cart_already_stored", "cart already stored under identifier", http.StatusConflict, nil)
)
