package rides

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gocomet/ride-dispatch/internal/domain/ride"
	"github.com/gocomet/ride-dispatch/pkg/errors"
	"github.com/gocomet/ride-dispatch/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []ride.Event
}

func (e *eventRecorder) Publish(ev ride.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *eventRecorder) byKind(kind ride.EventKind) []ride.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []ride.Event
	for _, ev := range e.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type vehicleFunc func(driverID uuid.UUID) bool

func (f vehicleFunc) HasVerifiedVehicle(_ context.Context, driverID uuid.UUID) bool {
	return f(driverID)
}

func allVerified(uuid.UUID) bool { return true }

var (
	pickup  = ride.Coordinate{Latitude: 12.9, Longitude: 77.6}
	dropoff = ride.Coordinate{Latitude: 12.95, Longitude: 77.65}
)

func newTestService(vehicles vehicleFunc) (*Service, *eventRecorder) {
	rec := &eventRecorder{}
	return NewService(rec, vehicles, nil, logger.NewNop()), rec
}

func TestRequest_CreatesPendingRide(t *testing.T) {
	svc, rec := newTestService(allVerified)
	riderID := uuid.New()

	r, err := svc.Request(context.Background(), riderID, pickup, dropoff)
	require.NoError(t, err)

	assert.Equal(t, ride.StatusPending, r.Status)
	assert.Equal(t, riderID, r.RiderID)
	assert.Nil(t, r.DriverID, "driver is unset exactly while pending")
	assert.False(t, r.RequestedAt.IsZero())
	assert.Len(t, rec.byKind(ride.EventRequested), 1)
}

func TestAccept_SingleWinner(t *testing.T) {
	svc, rec := newTestService(allVerified)
	r, err := svc.Request(context.Background(), uuid.New(), pickup, dropoff)
	require.NoError(t, err)

	const drivers = 8
	results := make([]error, drivers)
	ids := make([]uuid.UUID, drivers)

	var wg sync.WaitGroup
	for i := 0; i < drivers; i++ {
		ids[i] = uuid.New()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Accept(context.Background(), r.ID, ids[i])
		}(i)
	}
	wg.Wait()

	winners := 0
	var winnerID uuid.UUID
	for i, err := range results {
		if err == nil {
			winners++
			winnerID = ids[i]
		} else {
			assert.True(t, errors.HasCode(err, errors.CodeInvalidTransition),
				"losers must fail with InvalidTransition, got %v", err)
		}
	}
	assert.Equal(t, 1, winners, "exactly one driver wins the race")

	final, err := svc.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusAccepted, final.Status)
	require.NotNil(t, final.DriverID)
	assert.Equal(t, winnerID, *final.DriverID)
	assert.NotNil(t, final.AcceptedAt)
	assert.Len(t, rec.byKind(ride.EventAccepted), 1, "exactly one acceptance event")
}

func TestAccept_Errors(t *testing.T) {
	svc, _ := newTestService(vehicleFunc(func(id uuid.UUID) bool { return false }))

	_, err := svc.Accept(context.Background(), uuid.New(), uuid.New())
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	r, err := svc.Request(context.Background(), uuid.New(), pickup, dropoff)
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), r.ID, uuid.New())
	assert.True(t, errors.HasCode(err, errors.CodePreconditionFailed),
		"driver without a verified vehicle must be refused")

	got, _ := svc.Get(r.ID)
	assert.Equal(t, ride.StatusPending, got.Status, "failed accept leaves the ride pending")
}

// driveTo advances a fresh ride along the happy path until it reaches
// the wanted status, returning the ride and its participants.
func driveTo(t *testing.T, svc *Service, want ride.Status) (*ride.Ride, uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	riderID := uuid.New()
	driverID := uuid.New()

	r, err := svc.Request(ctx, riderID, pickup, dropoff)
	require.NoError(t, err)
	if want == ride.StatusPending {
		return r, riderID, driverID
	}

	r, err = svc.Accept(ctx, r.ID, driverID)
	require.NoError(t, err)

	path := []ride.Status{ride.StatusEnRoute, ride.StatusPickedUp, ride.StatusInProgress, ride.StatusCompleted}
	for _, next := range path {
		if r.Status == want {
			break
		}
		r, err = svc.Advance(ctx, r.ID, driverID, next)
		require.NoError(t, err)
	}
	require.Equal(t, want, r.Status)
	return r, riderID, driverID
}

func TestAdvance_HappyPathStampsTimestamps(t *testing.T) {
	svc, rec := newTestService(allVerified)
	r, _, _ := driveTo(t, svc, ride.StatusCompleted)

	assert.NotNil(t, r.AcceptedAt)
	assert.NotNil(t, r.StartedAt, "StartedAt stamped at pickup")
	assert.NotNil(t, r.CompletedAt)
	assert.Nil(t, r.CancelledAt)
	assert.Len(t, rec.byKind(ride.EventStatusChanged), 4)
}

func TestAdvance_TransitionTableClosure(t *testing.T) {
	all := []ride.Status{
		ride.StatusPending, ride.StatusAccepted, ride.StatusEnRoute,
		ride.StatusPickedUp, ride.StatusInProgress, ride.StatusCompleted,
		ride.StatusCancelled,
	}

	for _, from := range []ride.Status{
		ride.StatusPending, ride.StatusAccepted, ride.StatusEnRoute,
		ride.StatusPickedUp, ride.StatusInProgress,
	} {
		svc, _ := newTestService(allVerified)
		r, riderID, _ := driveTo(t, svc, from)
		successor, _ := from.Successor()

		for _, target := range all {
			if target == successor {
				continue
			}
			actor := riderID
			_, err := svc.Advance(context.Background(), r.ID, actor, target)
			assert.True(t, errors.HasCode(err, errors.CodeInvalidTransition),
				"advance %s -> %s must be rejected", from, target)

			got, _ := svc.Get(r.ID)
			assert.Equal(t, from, got.Status, "rejected advance must not change state")
		}
	}
}

func TestAdvance_RiderMayAdvanceToo(t *testing.T) {
	svc, _ := newTestService(allVerified)
	r, riderID, _ := driveTo(t, svc, ride.StatusAccepted)

	got, err := svc.Advance(context.Background(), r.ID, riderID, ride.StatusEnRoute)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusEnRoute, got.Status)
}

func TestMembership_StrangersForbidden(t *testing.T) {
	stranger := uuid.New()

	for _, status := range []ride.Status{
		ride.StatusPending, ride.StatusAccepted, ride.StatusEnRoute,
		ride.StatusPickedUp, ride.StatusInProgress, ride.StatusCompleted,
	} {
		svc, _ := newTestService(allVerified)
		r, _, _ := driveTo(t, svc, status)

		_, err := svc.Advance(context.Background(), r.ID, stranger, ride.StatusEnRoute)
		assert.True(t, errors.HasCode(err, errors.CodeForbidden),
			"stranger advance at %s must be Forbidden", status)

		_, err = svc.Cancel(context.Background(), r.ID, stranger, "nope")
		assert.True(t, errors.HasCode(err, errors.CodeForbidden),
			"stranger cancel at %s must be Forbidden", status)

		got, _ := svc.Get(r.ID)
		assert.Equal(t, status, got.Status)
	}
}

func TestCancel_FromEveryNonTerminalState(t *testing.T) {
	for _, status := range []ride.Status{
		ride.StatusPending, ride.StatusAccepted, ride.StatusEnRoute,
		ride.StatusPickedUp, ride.StatusInProgress,
	} {
		svc, rec := newTestService(allVerified)
		r, riderID, _ := driveTo(t, svc, status)

		got, err := svc.Cancel(context.Background(), r.ID, riderID, "changed my mind")
		require.NoError(t, err, "cancel from %s", status)
		assert.Equal(t, ride.StatusCancelled, got.Status)
		assert.NotNil(t, got.CancelledAt)
		assert.Equal(t, "changed my mind", got.CancellationReason)
		assert.Len(t, rec.byKind(ride.EventCancelled), 1)
	}
}

func TestTerminalImmutability(t *testing.T) {
	ctx := context.Background()

	check := func(t *testing.T, svc *Service, r *ride.Ride, actorID uuid.UUID, terminal ride.Status) {
		_, err := svc.Accept(ctx, r.ID, uuid.New())
		assert.True(t, errors.HasCode(err, errors.CodeInvalidTransition))

		_, err = svc.Advance(ctx, r.ID, actorID, ride.StatusEnRoute)
		assert.True(t, errors.HasCode(err, errors.CodeInvalidTransition))

		_, err = svc.Cancel(ctx, r.ID, actorID, "too late")
		assert.True(t, errors.HasCode(err, errors.CodeInvalidTransition))

		got, _ := svc.Get(r.ID)
		assert.Equal(t, terminal, got.Status)
	}

	t.Run("completed", func(t *testing.T) {
		svc, _ := newTestService(allVerified)
		r, riderID, _ := driveTo(t, svc, ride.StatusCompleted)
		check(t, svc, r, riderID, ride.StatusCompleted)
	})

	t.Run("cancelled", func(t *testing.T) {
		svc, _ := newTestService(allVerified)
		r, riderID, _ := driveTo(t, svc, ride.StatusPending)
		_, err := svc.Cancel(ctx, r.ID, riderID, "")
		require.NoError(t, err)
		check(t, svc, r, riderID, ride.StatusCancelled)
	})
}

func TestRate(t *testing.T) {
	ctx := context.Background()

	t.Run("requires completion", func(t *testing.T) {
		svc, _ := newTestService(allVerified)
		r, riderID, _ := driveTo(t, svc, ride.StatusInProgress)

		_, err := svc.Rate(ctx, r.ID, riderID, 5, "great")
		assert.True(t, errors.HasCode(err, errors.CodeInvalidTransition))
	})

	t.Run("participants rate once each", func(t *testing.T) {
		svc, _ := newTestService(allVerified)
		r, riderID, driverID := driveTo(t, svc, ride.StatusCompleted)

		rt, err := svc.Rate(ctx, r.ID, riderID, 5, "smooth trip")
		require.NoError(t, err)
		assert.Equal(t, 5, rt.Score)

		_, err = svc.Rate(ctx, r.ID, riderID, 4, "second thoughts")
		assert.True(t, errors.HasCode(err, errors.CodeAlreadyRated))

		// The other direction is independent.
		_, err = svc.Rate(ctx, r.ID, driverID, 4, "")
		require.NoError(t, err)
	})

	t.Run("strangers and bad scores rejected", func(t *testing.T) {
		svc, _ := newTestService(allVerified)
		r, riderID, _ := driveTo(t, svc, ride.StatusCompleted)

		_, err := svc.Rate(ctx, r.ID, uuid.New(), 5, "")
		assert.True(t, errors.HasCode(err, errors.CodeForbidden))

		_, err = svc.Rate(ctx, r.ID, riderID, 0, "")
		assert.True(t, errors.HasCode(err, errors.CodePreconditionFailed))

		_, err = svc.Rate(ctx, r.ID, riderID, 6, "")
		assert.True(t, errors.HasCode(err, errors.CodePreconditionFailed))
	})
}
