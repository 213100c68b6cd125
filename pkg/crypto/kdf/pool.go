package kdf

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/Caqil/solana-share-signer/internal/security"
)

// Pool bounds how many Argon2 derivations run at once so a burst of unlock
// requests cannot take every CPU away from the rest of the process.
type Pool struct {
	sem      *semaphore.Weighted
	size     int
	inflight atomic.Int64
}

// NewPool creates a pool with the given number of workers.
// workers <= 0 selects runtime.NumCPU().
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(workers)),
		size: workers,
	}
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// InFlight returns the number of derivations currently running
func (p *Pool) InFlight() int64 {
	return p.inflight.Load()
}

// Argon2id runs the derivation on a pool worker and waits for it.
//
// If ctx ends first the call returns ctx.Err() immediately; the worker still
// finishes, and the key it produces is zeroed without ever being handed out.
func (p *Pool) Argon2id(ctx context.Context, secret, salt []byte, params Argon2Params) (*security.SecretBuffer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, ErrInvalidIKM
	}
	if len(salt) < MinArgon2SaltLength {
		return nil, ErrInvalidSalt
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	// the worker gets its own copies; the caller may wipe its credential
	// as soon as this call returns
	secretCopy := security.CopySecret(secret)
	saltCopy := append([]byte(nil), salt...)

	done := make(chan derived, 1)
	p.inflight.Add(1)
	go func() {
		defer p.sem.Release(1)
		defer p.inflight.Add(-1)
		defer secretCopy.Destroy()

		key, err := Argon2id(secretCopy.Bytes(), saltCopy, params)
		done <- derived{key: key, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return security.TakeSecret(res.key), nil
	case <-ctx.Done():
		go func() {
			res := <-done
			security.SecureZero(res.key)
		}()
		return nil, ctx.Err()
	}
}

type derived struct {
	key []byte
	err error
}
