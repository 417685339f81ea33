package service

import "errors"

// Business rejections. Returned as typed results for the caller to map to
// user-facing messaging; never logged as system errors.
var (
	ErrBelowMinimumOrder   = errors.New("item total below minimum order value")
	ErrOutOfDeliveryRadius = errors.New("delivery address outside restaurant service area")
	ErrInvalidLineItem     = errors.New("invalid or unavailable menu item")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrNoPartnerAvailable  = errors.New("no delivery partner available")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrUnauthorized        = errors.New("not allowed for this principal")
)

// ErrSignatureMismatch rejects an unverifiable payment callback outright:
// no state is mutated and the event is logged as security-relevant.
var ErrSignatureMismatch = errors.New("payment signature mismatch")
