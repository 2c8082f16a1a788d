package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrUserNotFound    = errors.New("user not found")
	// ErrAuctionClosed is terminal for the auction; callers should not retry.
	ErrAuctionClosed = errors.New("auction closed")
	ErrUserExists    = errors.New("user name or email already registered")
)

// BidTooLowError reports the price the caller must exceed so it can retry
// with a higher amount.
type BidTooLowError struct {
	CurrentPrice float64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid must be greater than the current price %.2f", e.CurrentPrice)
}
