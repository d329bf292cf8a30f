// Package recurring schedules transactions for repeated submission to the
// mempool. A recurring transaction never bypasses the ledger's time-lock
// gate: it materializes an ordinary transaction whose ExecuteAtTimestamp
// is set to its own next-execution time, so the ledger enforces the same
// admission rules it would for a one-off time-locked transfer.
package recurring

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"

	"daglayer/internal/hashid"
	"daglayer/internal/txn"
)

var (
	ErrNotFound         = errors.New("recurring: transaction not found")
	ErrAlreadyCancelled = errors.New("recurring: already cancelled")
	ErrNotActive        = errors.New("recurring: transaction is not active")
	ErrNotPaused        = errors.New("recurring: transaction is not paused")
)

// maxFailures is the failure count at which a schedule is retired,
// ported from the original manager's fixed constant.
const maxFailures = 5

// Kind distinguishes how Schedule.Param is interpreted.
type Kind int

const (
	Daily Kind = iota
	Weekly
	Monthly
	Custom
)

func (k Kind) String() string {
	switch k {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	case Custom:
		return "custom"
	default:
		return "unknown"
	}
}

// The fixed advance in seconds for Daily/Weekly/Monthly schedules; Custom
// instead uses Schedule.IntervalSeconds.
const (
	dayAdvanceSeconds   = 86400
	weekAdvanceSeconds  = 604800
	monthAdvanceSeconds = 2592000
)

// Schedule describes a recurring cadence. HourOfDay/DayOfWeek/DayOfMonth
// are descriptive only (the original implementation advances by a fixed
// offset regardless of calendar alignment); IntervalSeconds is
// authoritative for Custom schedules.
type Schedule struct {
	Kind            Kind
	HourOfDay       uint8
	MinuteOfHour    uint8
	DayOfWeek       uint8
	DayOfMonth      uint8
	IntervalSeconds uint64
}

// NextFrom returns the next execution timestamp after currentTime.
func (s Schedule) NextFrom(currentTime uint64) uint64 {
	switch s.Kind {
	case Daily:
		return currentTime + dayAdvanceSeconds
	case Weekly:
		return currentTime + weekAdvanceSeconds
	case Monthly:
		return currentTime + monthAdvanceSeconds
	case Custom:
		return currentTime + s.IntervalSeconds
	default:
		return currentTime + s.IntervalSeconds
	}
}

// Status is a recurring transaction's lifecycle state.
type Status int

const (
	Active Status = iota
	Paused
	Cancelled
	Completed
	Failed
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Paused:
		return "paused"
	case Cancelled:
		return "cancelled"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Entry is one registered recurring transfer.
type Entry struct {
	ID               hashid.Hash
	From             hashid.Address
	To               hashid.Address
	Value            *big.Int
	Schedule         Schedule
	CreatedAt        uint64
	StartDate        uint64
	HasEndDate       bool
	EndDate          uint64
	HasMaxExecutions bool
	MaxExecutions    uint64
	ExecutionCount   uint64
	Status           Status
	NextExecution    uint64
	HasLastExecution bool
	LastExecution    uint64
	FailureCount     uint64
}

// ShouldExecute reports whether the entry is due at currentTime.
func (e *Entry) ShouldExecute(currentTime uint64) bool {
	if e.Status != Active {
		return false
	}
	if currentTime < e.StartDate {
		return false
	}
	if e.HasEndDate && currentTime > e.EndDate {
		return false
	}
	if e.HasMaxExecutions && e.ExecutionCount >= e.MaxExecutions {
		return false
	}
	return currentTime >= e.NextExecution
}

// MaterializeTransaction builds the concrete time-locked transaction the
// mempool should receive for this round's execution, carrying nonce as
// supplied by the caller (the ledger's current nonce for From).
func (e *Entry) MaterializeTransaction(nonce uint64, fee *big.Int) *txn.Transaction {
	tx := txn.New(e.From, e.To, new(big.Int).Set(e.Value), fee, nonce, nil, 0)
	return tx.WithTimeLock(0, false, e.NextExecution, true)
}

type rlpScheduleID struct {
	From            []byte
	To              []byte
	Value           []byte
	Kind            uint8
	IntervalSeconds uint64
	CreatedAt       uint64
}

func computeID(from, to hashid.Address, value *big.Int, sched Schedule, createdAt uint64) hashid.Hash {
	enc, err := rlp.EncodeToBytes(&rlpScheduleID{
		From:            from.Bytes(),
		To:              to.Bytes(),
		Value:           value.Bytes(),
		Kind:            uint8(sched.Kind),
		IntervalSeconds: sched.IntervalSeconds,
		CreatedAt:       createdAt,
	})
	if err != nil {
		panic("recurring: rlp encode of schedule identity failed: " + err.Error())
	}
	return hashid.Keccak256(enc)
}

// Registry tracks all recurring transactions known to this node.
type Registry struct {
	mu      sync.RWMutex
	entries map[hashid.Hash]*Entry
	log     *logrus.Entry
}

// New constructs an empty Registry.
func New(log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		entries: make(map[hashid.Hash]*Entry),
		log:     log.WithField("component", "recurring"),
	}
}

// Create registers a new recurring transaction and returns it.
func (r *Registry) Create(from, to hashid.Address, value *big.Int, sched Schedule, startDate uint64, hasEndDate bool, endDate uint64, hasMaxExecutions bool, maxExecutions uint64, createdAt uint64) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := &Entry{
		ID:               computeID(from, to, value, sched, createdAt),
		From:             from,
		To:               to,
		Value:            new(big.Int).Set(value),
		Schedule:         sched,
		CreatedAt:        createdAt,
		StartDate:        startDate,
		HasEndDate:       hasEndDate,
		EndDate:          endDate,
		HasMaxExecutions: hasMaxExecutions,
		MaxExecutions:    maxExecutions,
		Status:           Active,
		NextExecution:    startDate,
	}
	r.entries[e.ID] = e
	r.log.WithField("id", e.ID).Info("recurring transaction registered")
	return e
}

// Get returns the entry for id, if known.
func (r *Registry) Get(id hashid.Hash) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// ForAddress returns every entry where addr is sender or recipient.
func (r *Registry) ForAddress(addr hashid.Address) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Entry
	for _, e := range r.entries {
		if e.From == addr || e.To == addr {
			out = append(out, e)
		}
	}
	return out
}

// ReadyToExecute returns every Active entry due at currentTime.
func (r *Registry) ReadyToExecute(currentTime uint64) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Entry
	for _, e := range r.entries {
		if e.ShouldExecute(currentTime) {
			out = append(out, e)
		}
	}
	return out
}

// MarkExecuted records a successful round, advancing NextExecution and
// retiring the schedule once its end date or execution cap is reached.
func (r *Registry) MarkExecuted(id hashid.Hash, currentTime uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.ExecutionCount++
	e.HasLastExecution = true
	e.LastExecution = currentTime
	e.NextExecution = e.Schedule.NextFrom(currentTime)

	if e.HasMaxExecutions && e.ExecutionCount >= e.MaxExecutions {
		e.Status = Completed
	}
	if e.HasEndDate && currentTime >= e.EndDate {
		e.Status = Completed
	}
	return nil
}

// MarkFailed records a failed execution attempt, retiring the schedule
// once maxFailures failures have been reported in total; MarkExecuted does
// not reset the count.
func (r *Registry) MarkFailed(id hashid.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.FailureCount++
	if e.FailureCount >= maxFailures {
		e.Status = Failed
	}
	return nil
}

// Cancel permanently retires a schedule.
func (r *Registry) Cancel(id hashid.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.Status == Cancelled {
		return ErrAlreadyCancelled
	}
	e.Status = Cancelled
	return nil
}

// Pause suspends an Active schedule without losing its progress.
func (r *Registry) Pause(id hashid.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.Status != Active {
		return ErrNotActive
	}
	e.Status = Paused
	return nil
}

// Resume reactivates a Paused schedule.
func (r *Registry) Resume(id hashid.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.Status != Paused {
		return ErrNotPaused
	}
	e.Status = Active
	return nil
}
