package pool

import "errors"

var (
	// ErrNotInitialized is returned by every operation before Initialize.
	ErrNotInitialized = errors.New("pool: not initialized")
	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("pool: already initialized")
	// ErrPoolPaused is returned by position-opening operations while paused.
	ErrPoolPaused = errors.New("pool: paused")
	// ErrMinimumTransactionAmount rejects trades below the configured floor.
	ErrMinimumTransactionAmount = errors.New("pool: below minimum transaction amount")
	// ErrOutputLimit rejects trades whose result breaches the caller's limit:
	// a deposit above maxDeposit or proceeds below minOutput.
	ErrOutputLimit = errors.New("pool: output limit breached")
	// ErrNegativeInterest rejects trades that would push the spot price above
	// one, implying a negative fixed rate.
	ErrNegativeInterest = errors.New("pool: negative interest")
	// ErrInvalidShareReserves rejects mutations that would drop the share
	// reserves below the share adjustment.
	ErrInvalidShareReserves = errors.New("pool: share reserves below share adjustment")
	// ErrBaseBufferExceedsShareReserves rejects mutations that would leave the
	// pool unable to cover outstanding exposure plus the minimum buffer.
	ErrBaseBufferExceedsShareReserves = errors.New("pool: base buffer exceeds share reserves")
)
