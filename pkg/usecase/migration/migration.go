package migration

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/dreamlog/pkg/model"
	"github.com/m-mizutani/dreamlog/pkg/repository"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidKeepCount = goerr.New("keep count must be positive")
	ErrMigrationRunning = goerr.New("migration is already running")
)

// UseCase migrates legacy records in a Store to the current schema.
//
// The store is assumed to have a single writer: nothing else may mutate
// candidate keys while a migration (eager or background) is in progress.
type UseCase struct {
	store  repository.Store
	policy Policy
	idle   IdleScheduler
	now    func() time.Time
	newID  func() model.RecordID

	running atomic.Bool

	bgMu       sync.Mutex
	background *Background
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithPolicy replaces the default policy
func WithPolicy(p Policy) Option {
	return func(uc *UseCase) {
		uc.policy = p
	}
}

// WithIdleScheduler sets the host idle primitive used to start background migration
func WithIdleScheduler(s IdleScheduler) Option {
	return func(uc *UseCase) {
		uc.idle = s
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// WithIDGenerator sets the record ID generator
func WithIDGenerator(f func() model.RecordID) Option {
	return func(uc *UseCase) {
		uc.newID = f
	}
}

// New creates a new migration UseCase instance
func New(store repository.Store, opts ...Option) *UseCase {
	uc := &UseCase{
		store:  store,
		policy: DefaultPolicy(),
		now:    time.Now,
		newID:  model.NewRecordID,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Policy returns the active policy
func (u *UseCase) Policy() Policy {
	return u.policy
}

// Background returns the most recently started background run, or nil.
func (u *UseCase) Background() *Background {
	u.bgMu.Lock()
	defer u.bgMu.Unlock()
	return u.background
}
