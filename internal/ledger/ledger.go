// Package ledger implements the account-balance state machine: per-address
// balance and nonce, with sponsored and time-locked transaction admission.
package ledger

import (
	"errors"
	"math/big"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"daglayer/internal/hashid"
	"daglayer/internal/txn"
)

// Admission/application failure taxonomy (§4.2, §7 "Application" kinds).
var (
	ErrStaleNonce         = errors.New("ledger: stale nonce")
	ErrInsufficientFunds  = errors.New("ledger: insufficient funds")
	ErrSponsorInsufficient = errors.New("ledger: sponsor insufficient funds")
	ErrNotYetExecutable   = errors.New("ledger: not yet executable")
	ErrOverflowInvariant  = errors.New("ledger: overflow invariant violated")
)

// Account is the per-address ledger entry. Balance never goes negative;
// Nonce is monotonically non-decreasing.
type Account struct {
	Balance *big.Int
	Nonce   uint64
}

func zeroAccount() Account { return Account{Balance: new(big.Int), Nonce: 0} }

// Clone returns a deep copy of the account.
func (a Account) Clone() Account {
	return Account{Balance: new(big.Int).Set(a.Balance), Nonce: a.Nonce}
}

// BlockContext carries the height and timestamp a transaction is being
// applied under, used to evaluate time-lock gates.
type BlockContext struct {
	Height    uint64
	Timestamp uint64
}

// Ledger is the single-writer, many-reader account state machine for one
// shard's address partition.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[hashid.Address]Account
	log      *logrus.Entry
}

// New constructs an empty Ledger.
func New(log *logrus.Entry) *Ledger {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Ledger{
		accounts: make(map[hashid.Address]Account),
		log:      log.WithField("component", "ledger"),
	}
}

// Balance returns addr's balance, zero for unknown addresses.
func (l *Ledger) Balance(addr hashid.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if acc, ok := l.accounts[addr]; ok {
		return new(big.Int).Set(acc.Balance)
	}
	return new(big.Int)
}

// Nonce returns addr's nonce, zero for unknown addresses.
func (l *Ledger) Nonce(addr hashid.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accounts[addr].Nonce
}

// Credit adds amount to addr's balance unconditionally. Used for genesis
// allocation and reward distribution; amount must be non-negative.
func (l *Ledger) Credit(addr hashid.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.getOrZero(addr)
	acc.Balance.Add(acc.Balance, amount)
	l.accounts[addr] = acc
}

func (l *Ledger) getOrZero(addr hashid.Address) Account {
	acc, ok := l.accounts[addr]
	if !ok {
		return zeroAccount()
	}
	return acc.Clone()
}

// Apply validates and applies tx against the ledger under ctx. It mutates
// the ledger iff every admission rule holds; otherwise the ledger is left
// unchanged and a typed error is returned (§4.2 rules 1-5).
func (l *Ledger) Apply(tx *txn.Transaction, ctx BlockContext) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.applyLocked(tx, ctx)
}

func (l *Ledger) applyLocked(tx *txn.Transaction, ctx BlockContext) error {
	touched := tx.AddressSet()
	snap := make(map[hashid.Address]Account, len(touched))
	for _, a := range touched {
		snap[a] = l.getOrZero(a)
	}
	if err := ApplyToAccounts(snap, tx, ctx); err != nil {
		return err
	}
	for addr, acc := range snap {
		l.accounts[addr] = acc
	}
	return nil
}

// ApplyToAccounts applies tx's effects directly against accounts, a plain
// map of the addresses tx touches (as returned by tx.AddressSet()). It is
// the pure core of the admission rules in §4.2, shared by Ledger.Apply and
// the execution planner's branch-snapshot evaluation. An address missing
// from accounts reads as a zero account, and the From, fee-payer and
// non-zero To entries are written back whether or not they were present;
// callers normally pre-populate it via Ledger.SnapshotFor.
func ApplyToAccounts(accounts map[hashid.Address]Account, tx *txn.Transaction, ctx BlockContext) error {
	get := func(addr hashid.Address) Account {
		if acc, ok := accounts[addr]; ok && acc.Balance != nil {
			return acc
		}
		return zeroAccount()
	}

	// Rule 1: time-lock gate.
	if tx.HasExecuteAtBlock && ctx.Height < tx.ExecuteAtBlock {
		return ErrNotYetExecutable
	}
	if tx.HasExecuteAtTimestamp && ctx.Timestamp < tx.ExecuteAtTimestamp {
		return ErrNotYetExecutable
	}

	from := get(tx.From)

	// Rule 2: nonce match.
	if tx.Nonce != from.Nonce {
		return ErrStaleNonce
	}

	// Rule 3: fee payer selection.
	feePayer := tx.FeePayer()
	sameFeePayer := feePayer == tx.From

	// Rule 4: funds availability.
	if sameFeePayer {
		total := new(big.Int).Add(tx.Value, tx.Fee)
		if from.Balance.Cmp(total) < 0 {
			return ErrInsufficientFunds
		}
	} else {
		if from.Balance.Cmp(tx.Value) < 0 {
			return ErrInsufficientFunds
		}
		payer := get(feePayer)
		if payer.Balance.Cmp(tx.Fee) < 0 {
			return ErrSponsorInsufficient
		}
	}

	// Rule 5: apply atomically.
	from.Balance = new(big.Int).Sub(from.Balance, tx.Value)
	if sameFeePayer {
		from.Balance.Sub(from.Balance, tx.Fee)
	}
	from.Nonce++
	if from.Balance.Sign() < 0 {
		return ErrOverflowInvariant
	}
	accounts[tx.From] = from

	if !sameFeePayer {
		payer := get(feePayer)
		payer.Balance = new(big.Int).Sub(payer.Balance, tx.Fee)
		if payer.Balance.Sign() < 0 {
			return ErrOverflowInvariant
		}
		accounts[feePayer] = payer
	}

	if !tx.To.IsZero() {
		to := get(tx.To)
		to.Balance = new(big.Int).Add(to.Balance, tx.Value)
		accounts[tx.To] = to
	}

	return nil
}

// ApplyBlock applies every transaction in block order with per-transaction
// isolation: a failing transaction's effects are rolled back individually
// and reported, while prior and subsequent successful transactions still
// apply. It returns a multierr aggregate of per-transaction failures, or
// nil if all succeeded.
func (l *Ledger) ApplyBlock(txs []*txn.Transaction, ctx BlockContext) error {
	var errs error
	for _, tx := range txs {
		if err := l.Apply(tx, ctx); err != nil {
			errs = multierr.Append(errs, wrapTxErr(tx.Hash(), err))
		}
	}
	return errs
}

// ApplyBlockAtomic applies every transaction in block order, rolling back
// the entire block on the first failure. It returns the first error
// encountered, or nil if every transaction succeeded.
func (l *Ledger) ApplyBlockAtomic(txs []*txn.Transaction, ctx BlockContext) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	checkpoint := make(map[hashid.Address]Account, len(l.accounts))
	for addr, acc := range l.accounts {
		checkpoint[addr] = acc.Clone()
	}

	for _, tx := range txs {
		if err := l.applyLocked(tx, ctx); err != nil {
			l.accounts = checkpoint
			return wrapTxErr(tx.Hash(), err)
		}
	}
	return nil
}

func wrapTxErr(h hashid.Hash, err error) error {
	return &TxError{TxHash: h, Err: err}
}

// TxError associates a ledger application failure with the transaction
// that caused it.
type TxError struct {
	TxHash hashid.Hash
	Err    error
}

func (e *TxError) Error() string { return e.TxHash.String() + ": " + e.Err.Error() }
func (e *TxError) Unwrap() error { return e.Err }

// SnapshotFor returns copies of the accounts named by addrs, used by the
// execution planner to build a branch snapshot for a batch.
func (l *Ledger) SnapshotFor(addrs []hashid.Address) map[hashid.Address]Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[hashid.Address]Account, len(addrs))
	for _, a := range addrs {
		out[a] = l.getOrZeroRLocked(a)
	}
	return out
}

func (l *Ledger) getOrZeroRLocked(addr hashid.Address) Account {
	if acc, ok := l.accounts[addr]; ok {
		return acc.Clone()
	}
	return zeroAccount()
}

// Commit writes a merged set of account states back into the ledger. It is
// the sole mutation path used by the execution planner after a conflict-
// free batch merge.
func (l *Ledger) Commit(writes map[hashid.Address]Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for addr, acc := range writes {
		l.accounts[addr] = acc
	}
}
