package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/brojonat/genesis/service/metrics"
	"github.com/google/uuid"
)

const (
	// DefaultNetwork is the network a fresh session reports before connecting.
	DefaultNetwork = "testnet"

	// DefaultHistoryLimit is how many recent transactions are imported on
	// connect when the provider supports it.
	DefaultHistoryLimit = 20
)

// Options configures a Store. The zero value is usable.
type Options struct {
	// ID identifies the session. A random UUID is used if empty.
	ID string

	// Network is reported while disconnected. Defaults to DefaultNetwork.
	Network string

	// HistoryLimit caps the history imported on connect. Negative disables it.
	HistoryLimit int

	Observers []Observer
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() string
}

// Store is the single source of truth for one wallet session.
//
// All state changes go through dispatch, which applies one action at a time
// under the store mutex. Provider calls happen outside the mutex; their
// results are applied as separate actions tagged with the epoch they started
// under, so a disconnect in the meantime turns them into no-ops.
type Store struct {
	id       string
	provider Provider
	network  string
	history  int
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	mu     sync.Mutex
	st     state
	seq    uint64
	closed bool

	// Event queue drained by the dispatcher goroutine.
	qmu      sync.Mutex
	qcond    *sync.Cond
	queue    []Event
	stopping bool
	done     chan struct{}

	observers []Observer

	subMu   sync.Mutex
	subs    map[uint64]chan Event
	nextSub uint64
}

// NewStore creates a disconnected session backed by provider.
// Callers must Close the store to stop its dispatcher goroutine.
func NewStore(provider Provider, opts Options) *Store {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Network == "" {
		opts.Network = DefaultNetwork
	}
	if opts.HistoryLimit == 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	s := &Store{
		id:        opts.ID,
		provider:  provider,
		network:   opts.Network,
		history:   opts.HistoryLimit,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With("component", "session", "session_id", opts.ID),
		now:       opts.Now,
		newID:     opts.NewID,
		st:        initialState(opts.Network, 0),
		done:      make(chan struct{}),
		observers: append([]Observer(nil), opts.Observers...),
		subs:      make(map[uint64]chan Event),
	}
	s.qcond = sync.NewCond(&s.qmu)

	go s.run()

	return s
}

// ID returns the session id.
func (s *Store) ID() string {
	return s.id
}

// Snapshot returns the current committed state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Transactions returns a copy of the transaction history, newest first.
func (s *Store) Transactions() []TransactionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRecords(s.st.txns)
}

// Connect performs the wallet handshake. It fails with ErrConnectInProgress
// if another attempt is running, ErrAlreadyConnected if connected, and a
// *ConnectionError if the provider handshake fails. A failed handshake
// leaves the session disconnected with LastError set.
func (s *Store) Connect(ctx context.Context) (Snapshot, error) {
	res, err := s.dispatch(beginConnect{})
	if err != nil {
		return s.Snapshot(), err
	}
	epoch := res.epoch

	start := time.Now()
	account, err := s.provider.Connect(ctx)
	if err == nil {
		err = validateAccount(account)
	}
	s.metrics.RecordProviderCall("connect", err, metrics.Since(start))

	if err != nil {
		s.logger.WarnContext(ctx, "wallet connection failed", "error", err)
		cerr := &ConnectionError{Err: err}
		res, derr := s.dispatch(connectFailed{epoch: epoch, err: cerr})
		if derr != nil {
			return s.Snapshot(), derr
		}
		return res.snapshot, cerr
	}

	history := s.loadHistory(ctx, account.Address)

	res, err = s.dispatch(connectSucceeded{epoch: epoch, account: *account, history: history})
	if err != nil {
		s.logger.InfoContext(ctx, "discarding stale connection", "address", account.Address)
		return s.Snapshot(), err
	}

	s.logger.InfoContext(ctx, "wallet connected",
		"address", account.Address,
		"network", res.snapshot.Network,
		"balance", account.Balance,
		"history", len(history),
	)
	return res.snapshot, nil
}

// Disconnect resets the session to its initial state and discards the
// transaction history. It is idempotent.
func (s *Store) Disconnect() Snapshot {
	res, err := s.dispatch(disconnect{defaultNetwork: s.network})
	if err != nil {
		return s.Snapshot()
	}
	return res.snapshot
}

// SendTransaction transfers amount to the given recipient. The balance check
// runs atomically against the committed balance minus in-flight transfers,
// so concurrent sends cannot overdraw. On success the balance is debited and
// the hash returned. Failures are reported as *TransactionError; a pre-flight
// balance rejection wraps *InsufficientBalanceError and creates no record.
//
// The provider call does not observe ctx cancellation: once submitted, a
// transfer is settled from the provider's answer alone.
//
// If the session is disconnected while the provider is settling, the result
// is discarded from the session. A transfer that did settle is then reported
// with its hash and ErrSessionReset.
func (s *Store) SendTransaction(ctx context.Context, to string, amount float64) (string, error) {
	rec := TransactionRecord{
		ID:        s.newID(),
		Kind:      KindTransfer,
		Amount:    amount,
		To:        to,
		Timestamp: s.now().UTC(),
	}

	res, err := s.dispatch(beginTransfer{record: rec})
	if err != nil {
		var insufficient *InsufficientBalanceError
		if errors.As(err, &insufficient) {
			s.metrics.RecordInsufficientBalance()
			s.logger.InfoContext(ctx, "transfer rejected for insufficient balance",
				"amount", amount,
				"available", insufficient.Available,
			)
		}
		return "", &TransactionError{Err: err}
	}
	epoch := res.epoch

	// Once the Pending record is committed the transfer may be broadcast at
	// any point, so the caller going away must not turn it into a failure.
	start := time.Now()
	hash, err := s.provider.SubmitTransfer(context.WithoutCancel(ctx), to, amount)
	if err == nil && hash == "" {
		err = errors.New("provider returned an empty transaction hash")
	}
	s.metrics.RecordProviderCall("submit_transfer", err, metrics.Since(start))

	res, derr := s.dispatch(settleTransfer{
		epoch: epoch,
		id:    rec.ID,
		hash:  hash,
		err:   err,
		at:    s.now().UTC(),
	})
	if derr != nil {
		s.logger.WarnContext(ctx, "transfer settled after session reset",
			"record_id", rec.ID,
			"hash", hash,
			"error", err,
		)
		if err != nil {
			return "", &TransactionError{RecordID: rec.ID, Err: err}
		}
		return hash, derr
	}

	s.metrics.RecordTransaction(string(res.record.Status), res.record.Currency, amount)

	if err != nil {
		s.logger.WarnContext(ctx, "transfer failed", "record_id", rec.ID, "to", to, "amount", amount, "error", err)
		return "", &TransactionError{RecordID: rec.ID, Err: err}
	}

	s.logger.InfoContext(ctx, "transfer confirmed",
		"record_id", rec.ID,
		"hash", hash,
		"to", to,
		"amount", amount,
		"balance", res.snapshot.Balance,
	)
	return hash, nil
}

// RefreshBalance replaces the balance with the provider's current value.
// It is a no-op unless the session is connected, and fails with
// ErrTransferInFlight while a transfer is settling. A provider failure is
// returned as *RefreshError and leaves the session untouched. A fetched
// balance is discarded if a transfer started or settled in the meantime,
// since the committed balance is then the newer one.
func (s *Store) RefreshBalance(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.st.status != StatusConnected {
		s.mu.Unlock()
		return nil
	}
	if s.st.inFlight > 0 {
		s.mu.Unlock()
		return ErrTransferInFlight
	}
	epoch, version, address := s.st.epoch, s.st.balanceVersion, s.st.address
	s.mu.Unlock()

	start := time.Now()
	balance, err := s.provider.GetBalance(ctx, address)
	if err == nil && !validBalance(balance) {
		err = fmt.Errorf("provider returned invalid balance %v", balance)
	}
	s.metrics.RecordProviderCall("get_balance", err, metrics.Since(start))
	if err != nil {
		s.logger.WarnContext(ctx, "balance refresh failed", "address", address, "error", err)
		return &RefreshError{Err: err}
	}

	if _, err := s.dispatch(balanceRefreshed{epoch: epoch, version: version, balance: balance}); err != nil {
		if errors.Is(err, ErrClosed) {
			return err
		}
		s.logger.DebugContext(ctx, "discarding stale balance", "address", address, "reason", err)
	}
	return nil
}

// Subscribe returns a channel receiving every subsequent event and a
// function that cancels the subscription. Events are dropped for a
// subscriber whose buffer is full; every event carries a full snapshot.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.subs == nil {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close rejects further commands, delivers queued events, stops the
// dispatcher and closes all subscriptions. It is safe to call twice.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.qmu.Lock()
	s.stopping = true
	s.qcond.Broadcast()
	s.qmu.Unlock()

	<-s.done

	s.subMu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subs = nil
	s.subMu.Unlock()
}

// applied is the outcome of a dispatched action.
type applied struct {
	epoch    uint64
	snapshot Snapshot
	record   *TransactionRecord
}

// dispatch applies a under the store mutex and queues its event.
func (s *Store) dispatch(a action) (applied, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return applied{}, ErrClosed
	}

	next, tr, err := reduce(s.st, a)
	if err != nil {
		s.logger.Debug("action rejected", "action", a.name(), "error", err)
		return applied{}, err
	}
	s.st = next
	if tr != nil {
		s.seq++
	}

	res := applied{epoch: s.st.epoch, snapshot: s.snapshotLocked()}
	if tr == nil {
		return res, nil
	}
	res.record = tr.record

	ev := Event{
		Seq:      s.seq,
		Kind:     tr.kind,
		From:     tr.from,
		To:       tr.to,
		Snapshot: res.snapshot,
		Record:   tr.record,
		Time:     s.now().UTC(),
	}
	s.metrics.RecordSessionTransition(string(ev.Kind))

	s.qmu.Lock()
	s.queue = append(s.queue, ev)
	s.qcond.Signal()
	s.qmu.Unlock()

	return res, nil
}

// run delivers queued events in order until Close.
func (s *Store) run() {
	defer close(s.done)

	for {
		s.qmu.Lock()
		for len(s.queue) == 0 && !s.stopping {
			s.qcond.Wait()
		}
		if len(s.queue) == 0 {
			s.qmu.Unlock()
			return
		}
		batch := s.queue
		s.queue = nil
		s.qmu.Unlock()

		for _, ev := range batch {
			s.deliver(ev)
		}
	}
}

func (s *Store) deliver(ev Event) {
	ctx := context.Background()
	for _, o := range s.observers {
		o.Observe(ctx, ev)
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.metrics.RecordSubscriberDrop(string(ev.Kind))
			s.logger.Warn("subscriber buffer full, dropping event", "seq", ev.Seq, "kind", ev.Kind)
		}
	}
}

func (s *Store) loadHistory(ctx context.Context, address string) []TransactionRecord {
	hp, ok := s.provider.(HistoryProvider)
	if !ok || s.history < 0 {
		return nil
	}

	start := time.Now()
	records, err := hp.RecentTransactions(ctx, address, s.history)
	s.metrics.RecordProviderCall("recent_transactions", err, metrics.Since(start))
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load transaction history", "address", address, "error", err)
		return nil
	}

	// Only settled records are imported; the list is newest first.
	out := make([]TransactionRecord, 0, len(records))
	for _, r := range records {
		if !r.Status.Settled() {
			continue
		}
		if r.ID == "" {
			r.ID = s.newID()
		}
		out = append(out, r)
		if len(out) == s.history {
			break
		}
	}
	return out
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:    s.id,
		Status:       s.st.status,
		Network:      s.st.network,
		LastError:    s.st.lastError,
		Seq:          s.seq,
		Transactions: copyRecords(s.st.txns),
	}
	if s.st.status == StatusConnected {
		snap.Address = s.st.address
		snap.Balance = s.st.balance
		snap.Available = s.st.available()
		snap.Currency = s.st.currency
		snap.Provider = s.st.provider
	}
	return snap
}

func copyRecords(in []TransactionRecord) []TransactionRecord {
	out := make([]TransactionRecord, len(in))
	copy(out, in)
	return out
}

func validateAccount(a *Account) error {
	if a == nil {
		return errors.New("provider returned no account")
	}
	if a.Address == "" {
		return errors.New("provider returned an empty address")
	}
	if !validBalance(a.Balance) {
		return fmt.Errorf("provider returned invalid balance %v", a.Balance)
	}
	return nil
}

func validBalance(b float64) bool {
	return b >= 0 && !math.IsNaN(b) && !math.IsInf(b, 0)
}
