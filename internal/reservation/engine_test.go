package reservation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkline/tonpark/internal/model"
	"github.com/parkline/tonpark/internal/payment"
	"github.com/parkline/tonpark/internal/queue"
	"github.com/parkline/tonpark/internal/repository"
)

// clock is a controllable time source shared by engine and tests.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// memSpaceStore counts persistence calls and can be told to fail.
type memSpaceStore struct {
	mu    sync.Mutex
	saves int
	fail  bool
}

func (m *memSpaceStore) SaveState(_ context.Context, _ *model.ParkingSpace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("db down")
	}
	m.saves++
	return nil
}

// memPayments is an in-memory ConsumedStore with the same
// at-most-once semantics as the MySQL unique key.
type memPayments struct {
	mu   sync.Mutex
	used map[string]string
}

func newMemPayments() *memPayments { return &memPayments{used: make(map[string]string)} }

func (m *memPayments) Consume(_ context.Context, p *model.VerifiedPayment, spaceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.used[p.TxHash]; ok {
		return repository.ErrPaymentConsumed
	}
	m.used[p.TxHash] = spaceID
	return nil
}

func (m *memPayments) Release(_ context.Context, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.used, txHash)
	return nil
}

type stubVerifier struct {
	mu     sync.Mutex
	res    payment.Result
	gotExp payment.Expectation
}

func (s *stubVerifier) Verify(_ context.Context, exp payment.Expectation) payment.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gotExp = exp
	return s.res
}

type memPublisher struct {
	mu     sync.Mutex
	events []queue.SpaceEvent
}

func (m *memPublisher) PublishSpaceEvent(_ context.Context, ev queue.SpaceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memPublisher) last() (queue.SpaceEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return queue.SpaceEvent{}, false
	}
	return m.events[len(m.events)-1], true
}

type fixture struct {
	engine   *Engine
	clock    *clock
	store    *memSpaceStore
	payments *memPayments
	verifier *stubVerifier
	events   *memPublisher
}

const operatorWallet = "0:00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"

func verifiedResult(hash string, amount int64) payment.Result {
	return payment.Result{
		Status: payment.StatusVerified,
		Payment: &model.VerifiedPayment{
			TxHash:     hash,
			AmountNano: amount,
			Sender:     "0:aa",
			Recipient:  operatorWallet,
		},
	}
}

func newFixture() *fixture {
	f := &fixture{
		clock:    newClock(),
		store:    &memSpaceStore{},
		payments: newMemPayments(),
		verifier: &stubVerifier{},
		events:   &memPublisher{},
	}
	f.engine = New(Config{
		Zones: []model.Zone{
			{ID: "street", Name: "Street Level", MaxDurationHours: 12},
			{ID: "covered", Name: "Covered Premium", Premium: true, HourlyRateNano: 1_000_000_000, MaxDurationHours: 4},
		},
		Spaces: []model.ParkingSpace{
			{ID: "s1", ZoneID: "street", Status: model.StatusVacant},
			{ID: "s2", ZoneID: "street", Status: model.StatusVacant},
			{ID: "p1", ZoneID: "covered", Status: model.StatusVacant},
			{ID: "p2", ZoneID: "covered", Status: model.StatusVacant},
		},
		Registry: NewRegistry(nil),
		Verifier: f.verifier,
		Payments: f.payments,
		Store:    f.store,
		Events:   f.events,
		Wallet:   operatorWallet,
		Now:      f.clock.Now,
	})
	return f
}

func TestReserveFreeZone(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	sess, err := f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s1", Plate: "AB123CD", DurationHours: 2})
	require.NoError(t, err)
	assert.Equal(t, "AB123CD", sess.Plate)
	assert.Equal(t, model.SessionReserved, sess.Status)

	sp, ok := f.engine.Space("s1")
	require.True(t, ok)
	assert.Equal(t, model.StatusReserved, sp.Status)
	assert.Equal(t, "AB123CD", sp.Plate)
	require.NotNil(t, sp.Deadline)
	assert.Equal(t, f.clock.Now().Add(2*time.Hour), *sp.Deadline)
	assert.Empty(t, sp.PaymentHash)

	ev, ok := f.events.last()
	require.True(t, ok)
	assert.Equal(t, queue.EventReserved, ev.Event)
	assert.Equal(t, sess.ID, ev.SessionID)
}

func TestReserveValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.engine.Reserve(ctx, ReserveRequest{SpaceID: "nope", Plate: "X", DurationHours: 1})
	assert.ErrorIs(t, err, ErrSpaceNotFound)

	_, err = f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s1", Plate: "X", DurationHours: 0})
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s1", Plate: "X", DurationHours: 13})
	assert.ErrorIs(t, err, ErrDurationTooLong)
}

func TestReserveNotVacant(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s1", Plate: "FIRST", DurationHours: 1})
	require.NoError(t, err)

	_, err = f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s1", Plate: "SECOND", DurationHours: 1})
	assert.ErrorIs(t, err, ErrNotVacant)
}

func TestReserveDuplicatePlate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s1", Plate: "AB123CD", DurationHours: 1})
	require.NoError(t, err)

	_, err = f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s2", Plate: "AB123CD", DurationHours: 1})
	var dup *DuplicateSessionError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "s1", dup.SpaceID)

	// The losing attempt must not have claimed the second space.
	sp, _ := f.engine.Space("s2")
	assert.True(t, sp.Vacant())
}

func TestReservePremiumRequiresPayment(t *testing.T) {
	f := newFixture()
	_, err := f.engine.Reserve(context.Background(), ReserveRequest{SpaceID: "p1", Plate: "X", DurationHours: 2})
	assert.ErrorIs(t, err, ErrPaymentRequired)
}

func TestReservePremiumVerified(t *testing.T) {
	f := newFixture()
	f.verifier.res = verifiedResult("tx-hash-1", 2_000_000_000)
	ctx := context.Background()

	_, err := f.engine.Reserve(ctx, ReserveRequest{
		SpaceID: "p1", Plate: "AB123CD", DurationHours: 2, PaymentRef: "ref",
	})
	require.NoError(t, err)

	// The verifier saw the zone price for two hours and the operator
	// wallet as recipient.
	assert.Equal(t, int64(2_000_000_000), f.verifier.gotExp.AmountNano)
	assert.Equal(t, operatorWallet, f.verifier.gotExp.Recipient)

	sp, _ := f.engine.Space("p1")
	assert.Equal(t, model.StatusReserved, sp.Status)
	assert.Equal(t, "tx-hash-1", sp.PaymentHash)
	assert.Equal(t, "p1", f.payments.used["tx-hash-1"])
}

func TestReservePremiumPending(t *testing.T) {
	f := newFixture()
	f.verifier.res = payment.Result{Status: payment.StatusPending, Reason: "not yet indexed"}

	_, err := f.engine.Reserve(context.Background(), ReserveRequest{
		SpaceID: "p1", Plate: "AB123CD", DurationHours: 1, PaymentRef: "ref",
	})
	var pending *PaymentPendingError
	require.ErrorAs(t, err, &pending)

	// Nothing may change on a pending verification: no hold, no
	// session, nothing consumed.
	sp, _ := f.engine.Space("p1")
	assert.True(t, sp.Vacant())
	_, ok := f.engine.Registry().Lookup("AB123CD")
	assert.False(t, ok)
	assert.Empty(t, f.payments.used)
}

func TestReservePremiumRejected(t *testing.T) {
	f := newFixture()
	f.verifier.res = payment.Result{Status: payment.StatusRejected, Reason: "amount mismatch"}

	_, err := f.engine.Reserve(context.Background(), ReserveRequest{
		SpaceID: "p1", Plate: "AB123CD", DurationHours: 1, PaymentRef: "ref",
	})
	var rejected *PaymentRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "amount mismatch", rejected.Reason)
}

func TestReserveReplayedPayment(t *testing.T) {
	f := newFixture()
	f.verifier.res = verifiedResult("tx-hash-1", 1_000_000_000)
	ctx := context.Background()

	_, err := f.engine.Reserve(ctx, ReserveRequest{
		SpaceID: "p1", Plate: "FIRST", DurationHours: 1, PaymentRef: "ref",
	})
	require.NoError(t, err)

	// A different plate replays the same transaction on another space.
	_, err = f.engine.Reserve(ctx, ReserveRequest{
		SpaceID: "p2", Plate: "SECOND", DurationHours: 1, PaymentRef: "ref",
	})
	var rejected *PaymentRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Reason, "already used")

	sp, _ := f.engine.Space("p2")
	assert.True(t, sp.Vacant())
	_, ok := f.engine.Registry().Lookup("SECOND")
	assert.False(t, ok)
	assert.Equal(t, "p1", f.payments.used["tx-hash-1"])
}

func TestReservePersistFailureRollsBack(t *testing.T) {
	f := newFixture()
	f.verifier.res = verifiedResult("tx-hash-1", 1_000_000_000)
	f.store.fail = true

	_, err := f.engine.Reserve(context.Background(), ReserveRequest{
		SpaceID: "p1", Plate: "AB123CD", DurationHours: 1, PaymentRef: "ref",
	})
	require.Error(t, err)

	sp, _ := f.engine.Space("p1")
	assert.True(t, sp.Vacant())
	_, ok := f.engine.Registry().Lookup("AB123CD")
	assert.False(t, ok)
	// The consumed hash must be released so the client can retry.
	assert.Empty(t, f.payments.used)
}

func TestOccupy(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s1", Plate: "AB123CD", DurationHours: 2})
	require.NoError(t, err)

	assert.ErrorIs(t, f.engine.MarkOccupied(ctx, "s1", "OTHER"), ErrNotOwner)
	assert.ErrorIs(t, f.engine.MarkOccupied(ctx, "s2", "AB123CD"), ErrNotReserved)

	require.NoError(t, f.engine.MarkOccupied(ctx, "s1", "AB123CD"))
	sp, _ := f.engine.Space("s1")
	assert.Equal(t, model.StatusOccupied, sp.Status)
	require.NotNil(t, sp.OccupiedSince)

	sess, ok := f.engine.Registry().Lookup("AB123CD")
	require.True(t, ok)
	assert.Equal(t, model.SessionOccupied, sess.Status)

	// Occupying twice fails: the space left Reserved.
	assert.ErrorIs(t, f.engine.MarkOccupied(ctx, "s1", "AB123CD"), ErrNotReserved)
}

func TestComplete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s1", Plate: "AB123CD", DurationHours: 2})
	require.NoError(t, err)
	require.NoError(t, f.engine.MarkOccupied(ctx, "s1", "AB123CD"))

	require.NoError(t, f.engine.Complete(ctx, "s1"))
	sp, _ := f.engine.Space("s1")
	assert.True(t, sp.Vacant())
	_, ok := f.engine.Registry().Lookup("AB123CD")
	assert.False(t, ok)

	// Completing a vacant space is a no-op, not an error.
	require.NoError(t, f.engine.Complete(ctx, "s1"))
}

func TestCompleteFromReserved(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s1", Plate: "AB123CD", DurationHours: 2})
	require.NoError(t, err)
	require.NoError(t, f.engine.Complete(ctx, "s1"))

	sp, _ := f.engine.Space("s1")
	assert.True(t, sp.Vacant())
}

func TestCancel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s1", Plate: "AB123CD", DurationHours: 2})
	require.NoError(t, err)

	assert.ErrorIs(t, f.engine.Cancel(ctx, "s1", "OTHER"), ErrNotOwner)
	require.NoError(t, f.engine.Cancel(ctx, "s1", "AB123CD"))

	sp, _ := f.engine.Space("s1")
	assert.True(t, sp.Vacant())
	ev, ok := f.events.last()
	require.True(t, ok)
	assert.Equal(t, queue.EventCancelled, ev.Event)

	// After arrival cancellation is no longer possible.
	_, err = f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s1", Plate: "AB123CD", DurationHours: 2})
	require.NoError(t, err)
	require.NoError(t, f.engine.MarkOccupied(ctx, "s1", "AB123CD"))
	assert.ErrorIs(t, f.engine.Cancel(ctx, "s1", "AB123CD"), ErrNotReserved)
}

func TestExpire(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s1", Plate: "AB123CD", DurationHours: 1})
	require.NoError(t, err)

	// Before the deadline expiry is a no-op.
	require.NoError(t, f.engine.Expire(ctx, "s1", f.clock.Now().Add(30*time.Minute)))
	sp, _ := f.engine.Space("s1")
	assert.Equal(t, model.StatusReserved, sp.Status)

	require.NoError(t, f.engine.Expire(ctx, "s1", f.clock.Now().Add(61*time.Minute)))
	sp, _ = f.engine.Space("s1")
	assert.True(t, sp.Vacant())
	_, ok := f.engine.Registry().Lookup("AB123CD")
	assert.False(t, ok)
	ev, ok := f.events.last()
	require.True(t, ok)
	assert.Equal(t, queue.EventExpired, ev.Event)
}

func TestExpireNeverTouchesOccupied(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s1", Plate: "AB123CD", DurationHours: 1})
	require.NoError(t, err)
	require.NoError(t, f.engine.MarkOccupied(ctx, "s1", "AB123CD"))

	require.NoError(t, f.engine.Expire(ctx, "s1", f.clock.Now().Add(48*time.Hour)))
	sp, _ := f.engine.Space("s1")
	assert.Equal(t, model.StatusOccupied, sp.Status)
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			plate := string(rune('A'+i)) + "-PLATE"
			_, errs[i] = f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s1", Plate: plate, DurationHours: 1})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrNotVacant)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, f.engine.Registry().Active())
}
