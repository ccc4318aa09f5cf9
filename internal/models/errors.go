package models

import "errors"

// Domain errors. Every mutating operation fails with one of these and no
// partial state change; handlers map them to HTTP codes with errors.Is.
var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidParameters  = errors.New("invalid parameters")
	ErrUnauthorized       = errors.New("caller not authorized for this record")
	ErrAlreadyPurchased   = errors.New("policy already purchased")
	ErrPremiumMismatch    = errors.New("paid amount does not match premium")
	ErrPolicyInactive     = errors.New("policy not active or outside claim window")
	ErrAlreadyAdjudicated = errors.New("claim already verified or rejected")
	ErrNotVerified        = errors.New("claim not verified")
	ErrAlreadyPaid        = errors.New("claim already paid")
	ErrInsufficientEscrow = errors.New("escrow balance below payable amount")
)
