// Package codegen produces the short join codes handed to family members.
// Codes are random draws over a fixed alphabet; global uniqueness is
// resolved against a local check and a remote check with retry, backoff
// and a configurable fallback policy when one of the checks cannot run.
package codegen

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"tribeboard/internal/errs"
)

// Alphabet is the full set of characters a code may contain.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	MinLength     = 6
	MaxLength     = 8
	DefaultLength = 6
)

// CheckFunc answers whether a candidate code is free in one store. An
// error means the check could not run, not that the code is taken.
type CheckFunc func(ctx context.Context, code string) (free bool, err error)

// Options configures generation and the retry policy.
type Options struct {
	Length     int
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64

	// EnableLocalFallback accepts a code on the local check alone when
	// the remote check cannot run.
	EnableLocalFallback bool

	// EnableRemoteFallback accepts the remote check alone when the local
	// check cannot run.
	EnableRemoteFallback bool
}

// DefaultOptions returns the standard generation policy.
func DefaultOptions() Options {
	return Options{
		Length:               DefaultLength,
		MaxRetries:           10,
		BaseDelay:            100 * time.Millisecond,
		MaxDelay:             2 * time.Second,
		Multiplier:           2.0,
		EnableLocalFallback:  true,
		EnableRemoteFallback: true,
	}
}

// Generator draws candidate codes and resolves uniqueness.
type Generator struct {
	opts Options
}

// New creates a generator, clamping options into their valid ranges.
func New(opts Options) *Generator {
	if opts.Length < MinLength {
		opts.Length = DefaultLength
	}
	if opts.Length > MaxLength {
		opts.Length = MaxLength
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 10
	}
	if opts.Multiplier < 1.0 {
		opts.Multiplier = 2.0
	}
	if opts.MaxDelay > 0 && opts.BaseDelay > opts.MaxDelay {
		opts.BaseDelay = opts.MaxDelay
	}
	return &Generator{opts: opts}
}

// Generate draws codes until one passes both uniqueness checks or the
// retry budget is exhausted. Backoff is applied between collision retries,
// never before the first attempt, and is cancellable through ctx.
func (g *Generator) Generate(ctx context.Context, checkLocal, checkRemote CheckFunc) (string, error) {
	delay := g.opts.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= g.opts.MaxRetries; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, delay); err != nil {
				return "", err
			}
			delay = g.nextDelay(delay)
		}

		code, err := g.draw()
		if err != nil {
			return "", err
		}

		localFree, localErr := runCheck(ctx, checkLocal, code)
		if localErr == nil && !localFree {
			lastErr = errs.Newf(errs.CodeCollisionDetected, "code %s taken locally", code)
			continue
		}
		if localErr != nil && !g.opts.EnableRemoteFallback {
			return "", errs.Wrap(errs.CodeUniquenessUnknown, "local uniqueness check failed", localErr)
		}

		remoteFree, remoteErr := runCheck(ctx, checkRemote, code)
		if remoteErr == nil && !remoteFree {
			lastErr = errs.Newf(errs.CodeCollisionDetected, "code %s taken remotely", code)
			continue
		}
		if remoteErr != nil {
			if localErr != nil {
				return "", errs.Wrap(errs.CodeUniquenessUnknown, "neither uniqueness check could run", remoteErr)
			}
			if !g.opts.EnableLocalFallback {
				return "", errs.Wrap(errs.CodeUniquenessUnknown, "remote uniqueness check failed", remoteErr)
			}
			// Remote unknown, local said free: trust the local check.
		}

		return code, nil
	}

	return "", errs.Wrap(errs.CodeMaxRetriesExceeded,
		"exhausted code generation attempts", lastErr)
}

// draw produces a random candidate of the configured length.
func (g *Generator) draw() (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, g.opts.Length)
	for i := range buf {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = Alphabet[num.Int64()]
	}
	return string(buf), nil
}

func (g *Generator) nextDelay(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * g.opts.Multiplier)
	if g.opts.MaxDelay > 0 && next > g.opts.MaxDelay {
		next = g.opts.MaxDelay
	}
	if next < current {
		next = current
	}
	return next
}

func runCheck(ctx context.Context, check CheckFunc, code string) (bool, error) {
	if check == nil {
		return true, nil
	}
	return check(ctx, code)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Normalize case-normalizes a code for comparison, e.g. a scanned code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks a code's format: length in [6,8] and all characters in
// the alphabet. Pure function; used on generated output and external
// input alike.
func Validate(code string) error {
	if len(code) < MinLength || len(code) > MaxLength {
		return errs.Newf(errs.CodeValidationFailed,
			"code must be %d-%d characters", MinLength, MaxLength)
	}
	for _, r := range code {
		if !strings.ContainsRune(Alphabet, r) {
			return errs.Newf(errs.CodeValidationFailed,
				"code contains invalid character %q", r)
		}
	}
	return nil
}
