// Package reaper reclaims tasks whose lease deadline has passed.
//
// The reaper has no timer of its own; an external scheduler invokes
// Sweep. Each sweep runs under an advisory lock so overlapping
// triggers cannot double-process a batch, and evaluates every task
// against a single time boundary captured at the start of the sweep.
package reaper

import (
	"time"

	"github.com/vinayprograms/leasekit/errors"
	"github.com/vinayprograms/leasekit/lifecycle"
	"github.com/vinayprograms/leasekit/logging"
	"github.com/vinayprograms/leasekit/state"
)

const lockKey = "reaper.sweep"

// Reaper sweeps expired tasks through the lifecycle engine.
type Reaper struct {
	engine *lifecycle.Engine
	store  state.StateStore
	log    *logging.Logger

	// lockTTL bounds how long a crashed sweep can block the next one.
	lockTTL time.Duration
}

// Config configures a Reaper.
type Config struct {
	// Engine performs the actual expiry transitions.
	Engine *lifecycle.Engine

	// Store provides the advisory sweep lock.
	Store state.StateStore

	// LockTTL defaults to one minute when zero.
	LockTTL time.Duration

	// Logger defaults to a new logger when nil.
	Logger *logging.Logger
}

// New creates a reaper.
func New(cfg Config) *Reaper {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	return &Reaper{
		engine:  cfg.Engine,
		store:   cfg.Store,
		log:     log.WithComponent("reaper"),
		lockTTL: ttl,
	}
}

// Sweep fails every active task whose lease expired before the sweep
// started and returns how many were reclaimed. A sweep that finds
// nothing returns zero. If another sweep holds the lock, this one
// returns zero without scanning.
func (r *Reaper) Sweep() (int, error) {
	lock, err := r.store.Lock(lockKey, r.lockTTL)
	if err != nil {
		if err == state.ErrLockHeld {
			r.log.SweepSkipped("another sweep is in progress")
			return 0, nil
		}
		return 0, errors.Wrap(err, "acquiring sweep lock")
	}
	defer lock.Unlock()

	// One boundary for the whole batch: a lease expiring mid-scan
	// waits for the next sweep.
	boundary := time.Now().UTC()
	r.log.SweepStart(boundary)
	start := time.Now()

	candidates, err := r.engine.ExpiryCandidates(boundary)
	if err != nil {
		return 0, err
	}

	var reclaimed int
	for _, id := range candidates {
		ok, err := r.expireOne(id, boundary)
		if err != nil {
			return reclaimed, err
		}
		if ok {
			reclaimed++
		}
	}

	r.log.SweepComplete(reclaimed, time.Since(start))
	return reclaimed, nil
}

// expireOne expires a single candidate, absorbing the race with an
// in-flight status change: on a conflict the task is re-read once and
// re-evaluated; if it is still expired the second attempt settles it,
// otherwise the caller got there first and the task is skipped.
//
// A partial commit means the row moved to failed but its history
// record was not written. The engine already logged it; the task still
// counts as reclaimed and the batch continues.
func (r *Reaper) expireOne(id string, boundary time.Time) (bool, error) {
	ok, err := r.engine.Expire(id, boundary)
	if err == nil || errors.Is(err, errors.ErrCodePartialCommit) {
		return ok, nil
	}
	if !errors.Is(err, errors.ErrCodeConflict) {
		return false, err
	}

	ok, err = r.engine.Expire(id, boundary)
	if err != nil {
		if errors.Is(err, errors.ErrCodePartialCommit) {
			return ok, nil
		}
		if errors.Is(err, errors.ErrCodeConflict) {
			r.log.Warn("task contended twice during sweep, skipping", map[string]interface{}{
				"task_id": id,
			})
			return false, nil
		}
		return false, err
	}
	return ok, nil
}
