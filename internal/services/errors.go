package services

import (
	"errors"

	"raffle-engine/internal/auth"
	"raffle-engine/internal/ledger"
	"raffle-engine/internal/prizepool"
)

var (
	ErrUnauthenticated    = auth.ErrUnauthenticated
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failed")
	ErrRaffleNotFound     = errors.New("raffle not found")
	ErrRaffleNotActive    = errors.New("raffle is not active")
	ErrRaffleNotDrawable  = errors.New("raffle is not ready to draw")
	ErrRaffleStarted      = errors.New("raffle already started")
	ErrDuplicateEntry     = errors.New("player already entered this raffle")
	ErrEntryLimitExceeded = errors.New("entry limit exceeded")
	ErrCapacityExceeded   = errors.New("raffle is full")
	ErrInsufficientFee    = errors.New("insufficient balance for entry fee")
	ErrPoolExhausted      = prizepool.ErrPoolExhausted
	ErrDrawFailed         = errors.New("draw failed")
	ErrParticipantMissing = errors.New("participant not found")
	ErrNotDrawn           = errors.New("entry has not been drawn yet")
	ErrNoUnrevealed       = errors.New("no unrevealed entries")
	ErrWalletMissing      = errors.New("player has no default wallet")
	ErrInvalidSignature   = errors.New("invalid wallet signature")
	ErrChainUnavailable   = errors.New("chain adapter not configured")
	ErrPayoutFailed       = errors.New("payout failed")
)

// Error codes exposed to clients
const (
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeForbidden          = "FORBIDDEN"
	CodeValidation         = "VALIDATION_ERROR"
	CodeRaffleNotFound     = "RAFFLE_NOT_FOUND"
	CodeRaffleNotActive    = "RAFFLE_NOT_ACTIVE"
	CodeRaffleNotDrawable  = "RAFFLE_NOT_DRAWABLE"
	CodeRaffleStarted      = "RAFFLE_STARTED"
	CodeDuplicateEntry     = "DUPLICATE_ENTRY"
	CodeEntryLimitExceeded = "ENTRY_LIMIT_EXCEEDED"
	CodeCapacityExceeded   = "CAPACITY_EXCEEDED"
	CodeInsufficientFee    = "INSUFFICIENT_FEE"
	CodePoolExhausted      = "POOL_EXHAUSTED"
	CodeDrawFailed         = "DRAW_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeNotDrawn           = "NOT_DRAWN"
	CodeWalletMissing      = "WALLET_MISSING"
	CodeInvalidSignature   = "INVALID_SIGNATURE"
	CodeChainUnavailable   = "CHAIN_UNAVAILABLE"
	CodePayoutFailed       = "PAYOUT_FAILED"
	CodeInternal           = "INTERNAL_ERROR"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrUnauthenticated, CodeUnauthenticated},
	{ErrForbidden, CodeForbidden},
	{ErrValidation, CodeValidation},
	{ErrRaffleNotFound, CodeRaffleNotFound},
	{ErrRaffleNotActive, CodeRaffleNotActive},
	{ErrRaffleNotDrawable, CodeRaffleNotDrawable},
	{ErrRaffleStarted, CodeRaffleStarted},
	{ErrDuplicateEntry, CodeDuplicateEntry},
	{ErrEntryLimitExceeded, CodeEntryLimitExceeded},
	{ErrCapacityExceeded, CodeCapacityExceeded},
	{ErrInsufficientFee, CodeInsufficientFee},
	{ledger.ErrInsufficientBalance, CodeInsufficientFee},
	{ErrPoolExhausted, CodePoolExhausted},
	{ErrDrawFailed, CodeDrawFailed},
	{ErrParticipantMissing, CodeNotFound},
	{ErrNoUnrevealed, CodeNotFound},
	{ErrNotDrawn, CodeNotDrawn},
	{ErrWalletMissing, CodeWalletMissing},
	{ErrInvalidSignature, CodeInvalidSignature},
	{ErrChainUnavailable, CodeChainUnavailable},
	{ErrPayoutFailed, CodePayoutFailed},
}

// ErrorCode maps err to a stable client code. Unknown errors are internal.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// PublicMessage returns the client facing message of err. Internal errors
// never leak their cause.
func PublicMessage(err error) string {
	if ErrorCode(err) == CodeInternal {
		return "internal error"
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			if ec.err == ErrValidation {
				return err.Error()
			}
			return ec.err.Error()
		}
	}
	return err.Error()
}
