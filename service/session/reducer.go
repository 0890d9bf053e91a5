package session

import (
	"fmt"
	"math"
	"time"
)

// state is the committed session state. It is only touched by reduce,
// which the store calls with its mutex held.
type state struct {
	status    Status
	address   string
	network   string
	currency  string
	provider  string
	balance   float64
	lastError string

	// reserved is the sum of in-flight transfer amounts; inFlight counts them.
	reserved float64
	inFlight int

	// balanceVersion advances whenever the balance is set or debited. A
	// refresh fetched under an older version would overwrite a newer value.
	balanceVersion uint64

	txns []TransactionRecord // newest first

	// epoch advances on every connect attempt and every disconnect.
	// Completions started under an older epoch are stale.
	epoch uint64
}

func initialState(network string, epoch uint64) state {
	return state{
		status:  StatusDisconnected,
		network: network,
		epoch:   epoch,
	}
}

func (s state) available() float64 {
	return math.Max(0, s.balance-s.reserved)
}

// action is the tagged union of everything that can change a session.
type action interface {
	name() string
}

type beginConnect struct{}

type connectSucceeded struct {
	epoch   uint64
	account Account
	history []TransactionRecord
}

type connectFailed struct {
	epoch uint64
	err   error
}

type disconnect struct {
	defaultNetwork string
}

type beginTransfer struct {
	record TransactionRecord
}

type settleTransfer struct {
	epoch uint64
	id    string
	hash  string
	err   error
	at    time.Time
}

type balanceRefreshed struct {
	epoch   uint64
	version uint64
	balance float64
}

func (beginConnect) name() string     { return "begin_connect" }
func (connectSucceeded) name() string { return "connect_succeeded" }
func (connectFailed) name() string    { return "connect_failed" }
func (disconnect) name() string       { return "disconnect" }
func (beginTransfer) name() string    { return "begin_transfer" }
func (settleTransfer) name() string   { return "settle_transfer" }
func (balanceRefreshed) name() string { return "balance_refreshed" }

// transition describes an applied action. A nil transition means the
// action was a no-op.
type transition struct {
	kind   EventKind
	from   Status
	to     Status
	record *TransactionRecord
}

// reduce applies a to s. It returns the next state, the transition to
// broadcast, and an error if the action was rejected. A rejected action
// leaves the state unchanged.
func reduce(s state, a action) (state, *transition, error) {
	from := s.status

	switch a := a.(type) {
	case beginConnect:
		switch s.status {
		case StatusConnecting:
			return s, nil, ErrConnectInProgress
		case StatusConnected:
			return s, nil, ErrAlreadyConnected
		}
		s.status = StatusConnecting
		s.epoch++
		return s, &transition{kind: EventConnecting, from: from, to: s.status}, nil

	case connectSucceeded:
		if a.epoch != s.epoch || s.status != StatusConnecting {
			return s, nil, ErrSessionReset
		}
		s.status = StatusConnected
		s.address = a.account.Address
		s.balance = a.account.Balance
		if a.account.Network != "" {
			s.network = a.account.Network
		}
		s.currency = a.account.Currency
		s.provider = a.account.Provider
		s.balanceVersion++
		s.lastError = ""
		s.reserved, s.inFlight = 0, 0
		s.txns = append([]TransactionRecord(nil), a.history...)
		return s, &transition{kind: EventConnected, from: from, to: s.status}, nil

	case connectFailed:
		if a.epoch != s.epoch || s.status != StatusConnecting {
			return s, nil, ErrSessionReset
		}
		s.status = StatusDisconnected
		s.lastError = a.err.Error()
		return s, &transition{kind: EventConnectFailed, from: from, to: StatusError}, nil

	case disconnect:
		next := initialState(a.defaultNetwork, s.epoch)
		if isInitial(s, next) {
			return s, nil, nil
		}
		next.epoch = s.epoch + 1
		return next, &transition{kind: EventDisconnected, from: from, to: next.status}, nil

	case beginTransfer:
		if s.status != StatusConnected {
			return s, nil, ErrNotConnected
		}
		if a.record.To == "" {
			return s, nil, ErrInvalidRecipient
		}
		if !validAmount(a.record.Amount) {
			return s, nil, ErrInvalidAmount
		}
		if avail := s.available(); a.record.Amount > avail {
			return s, nil, &InsufficientBalanceError{Amount: a.record.Amount, Available: avail}
		}
		rec := a.record
		rec.Status = TxPending
		rec.From = s.address
		rec.Currency = s.currency
		s.reserved += rec.Amount
		s.inFlight++
		s.txns = append([]TransactionRecord{rec}, s.txns...)
		return s, &transition{kind: EventTransactionPending, from: from, to: s.status, record: &rec}, nil

	case settleTransfer:
		if a.epoch != s.epoch || s.status != StatusConnected {
			return s, nil, ErrSessionReset
		}
		idx := -1
		for i := range s.txns {
			if s.txns[i].ID == a.id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return s, nil, fmt.Errorf("transaction %s not found", a.id)
		}
		if s.txns[idx].Status.Settled() {
			return s, nil, fmt.Errorf("transaction %s already settled", a.id)
		}

		txns := make([]TransactionRecord, len(s.txns))
		copy(txns, s.txns)
		rec := txns[idx]
		at := a.at
		rec.SettledAt = &at

		s.inFlight--
		s.reserved -= rec.Amount
		if s.inFlight == 0 {
			s.reserved = 0
		}
		s.balanceVersion++

		kind := EventTransactionConfirmed
		if a.err != nil {
			rec.Status = TxFailed
			rec.Error = a.err.Error()
			kind = EventTransactionFailed
		} else {
			rec.Status = TxConfirmed
			rec.Hash = a.hash
			s.balance = math.Max(0, s.balance-rec.Amount)
		}
		txns[idx] = rec
		s.txns = txns
		return s, &transition{kind: kind, from: from, to: s.status, record: &rec}, nil

	case balanceRefreshed:
		if a.epoch != s.epoch || s.status != StatusConnected {
			return s, nil, ErrSessionReset
		}
		// A transfer settled or started since the fetch; the provider value
		// may not include it, or include a debit settle has yet to apply.
		if a.version != s.balanceVersion || s.inFlight > 0 {
			return s, nil, errStaleBalance
		}
		s.balance = a.balance
		s.balanceVersion++
		return s, &transition{kind: EventBalanceRefreshed, from: from, to: s.status}, nil

	default:
		return s, nil, fmt.Errorf("unknown action %T", a)
	}
}

func isInitial(s, initial state) bool {
	return s.status == initial.status &&
		s.address == "" &&
		s.balance == 0 &&
		s.currency == "" &&
		s.provider == "" &&
		s.lastError == "" &&
		s.network == initial.network &&
		s.inFlight == 0 &&
		len(s.txns) == 0
}

func validAmount(amount float64) bool {
	return amount > 0 && !math.IsInf(amount, 0) && !math.IsNaN(amount)
}
