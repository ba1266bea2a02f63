package rides

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gocomet/ride-dispatch/internal/domain/ride"
	"github.com/gocomet/ride-dispatch/internal/observability"
	"github.com/gocomet/ride-dispatch/pkg/errors"
	"github.com/gocomet/ride-dispatch/pkg/logger"
)

// EventSink consumes domain events emitted on every state transition.
// Implemented by the dispatch layer; Publish must not block.
type EventSink interface {
	Publish(ev ride.Event)
}

// VehicleRegistry answers whether a driver may accept rides. Consulted
// only by Accept.
type VehicleRegistry interface {
	HasVerifiedVehicle(ctx context.Context, driverID uuid.UUID) bool
}

// Store is the optional persistence collaborator. The core calls it
// opportunistically; a failure never rolls back the in-memory transition.
type Store interface {
	SaveRide(ctx context.Context, r *ride.Ride) error
	SaveRating(ctx context.Context, rt *ride.Rating) error
}

type ratingKey struct {
	rideID  uuid.UUID
	raterID uuid.UUID
}

// rideState wraps a ride with its exclusive section. Every transition of
// one ride is applied under st.mu, which is what makes the accept race
// produce exactly one winner.
type rideState struct {
	mu   sync.Mutex
	ride ride.Ride
}

// Service owns the authoritative status of every ride for the duration
// of the trip and validates, applies and announces transitions.
type Service struct {
	mu      sync.RWMutex
	rides   map[uuid.UUID]*rideState
	ratings map[ratingKey]*ride.Rating

	events   EventSink
	vehicles VehicleRegistry
	store    Store
	logger   *logger.Logger
}

// NewService creates the state machine. store may be nil when no
// persistence collaborator is configured.
func NewService(events EventSink, vehicles VehicleRegistry, store Store, log *logger.Logger) *Service {
	return &Service{
		rides:    make(map[uuid.UUID]*rideState),
		ratings:  make(map[ratingKey]*ride.Rating),
		events:   events,
		vehicles: vehicles,
		store:    store,
		logger:   log,
	}
}

// Request creates a new PENDING ride for the rider and announces it to
// every online driver via the dispatch layer.
func (s *Service) Request(ctx context.Context, riderID uuid.UUID, pickup, dropoff ride.Coordinate) (*ride.Ride, error) {
	r := ride.Ride{
		ID:          uuid.New(),
		RiderID:     riderID,
		Status:      ride.StatusPending,
		Pickup:      pickup,
		Dropoff:     dropoff,
		RequestedAt: time.Now(),
	}

	s.mu.Lock()
	s.rides[r.ID] = &rideState{ride: r}
	s.mu.Unlock()

	observability.RideTransitionsTotal.WithLabelValues(string(ride.StatusPending)).Inc()
	s.logger.Info("Ride requested",
		logger.String("ride_id", r.ID.String()),
		logger.String("rider_id", riderID.String()),
		logger.Float64("pickup_lat", pickup.Latitude),
		logger.Float64("pickup_lng", pickup.Longitude),
	)

	snapshot := r.Clone()
	s.emit(ride.EventRequested, snapshot)
	s.persist(ctx, snapshot)
	return snapshot, nil
}

// Accept assigns a driver to a PENDING ride. The status check and the
// driver assignment happen under the ride's exclusive section, so two
// drivers racing for the same ride deterministically produce one
// ACCEPTED winner; the loser gets InvalidTransition.
func (s *Service) Accept(ctx context.Context, rideID, driverID uuid.UUID) (*ride.Ride, error) {
	st, err := s.lookup(rideID)
	if err != nil {
		return nil, err
	}

	// Vehicle check talks to external stores, so it runs before the
	// exclusive section. Losing the race after a successful check is
	// fine: the status check below still rejects the loser.
	if !s.vehicles.HasVerifiedVehicle(ctx, driverID) {
		return nil, errors.PreconditionFailed("Driver has no verified vehicle", nil)
	}

	st.mu.Lock()
	if st.ride.Status != ride.StatusPending {
		status := st.ride.Status
		st.mu.Unlock()
		return nil, errors.InvalidTransition("Ride is not pending, current status: "+string(status), nil)
	}
	now := time.Now()
	st.ride.DriverID = &driverID
	st.ride.AcceptedAt = &now
	st.ride.Status = ride.StatusAccepted
	snapshot := st.ride.Clone()
	// Emitted under the ride's lock so per-ride events reach dispatch in
	// transition order. Publish never blocks.
	s.emit(ride.EventAccepted, snapshot)
	st.mu.Unlock()

	observability.RideTransitionsTotal.WithLabelValues(string(ride.StatusAccepted)).Inc()
	s.logger.Info("Ride accepted",
		logger.String("ride_id", rideID.String()),
		logger.String("driver_id", driverID.String()),
	)

	s.persist(ctx, snapshot)
	return snapshot, nil
}

// Advance moves a ride to the single table-defined successor of its
// current status. Only the ride's rider or driver may advance it.
func (s *Service) Advance(ctx context.Context, rideID, actorID uuid.UUID, target ride.Status) (*ride.Ride, error) {
	st, err := s.lookup(rideID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	if !st.ride.IsParticipant(actorID) {
		st.mu.Unlock()
		return nil, errors.Forbidden("Actor is not a participant of this ride", nil)
	}
	next, ok := st.ride.Status.Successor()
	if !ok || target != next {
		status := st.ride.Status
		st.mu.Unlock()
		return nil, errors.InvalidTransition("Cannot move from "+string(status)+" to "+string(target), nil)
	}
	now := time.Now()
	st.ride.Status = target
	switch target {
	case ride.StatusPickedUp:
		st.ride.StartedAt = &now
	case ride.StatusCompleted:
		st.ride.CompletedAt = &now
	}
	snapshot := st.ride.Clone()
	s.emit(ride.EventStatusChanged, snapshot)
	st.mu.Unlock()

	observability.RideTransitionsTotal.WithLabelValues(string(target)).Inc()
	s.logger.Info("Ride status changed",
		logger.String("ride_id", rideID.String()),
		logger.String("actor_id", actorID.String()),
		logger.String("status", string(target)),
	)

	s.persist(ctx, snapshot)
	return snapshot, nil
}

// Cancel terminates a non-terminal ride. Cancellation is one-way: every
// later transition attempt, including accept races that lose, fails with
// InvalidTransition.
func (s *Service) Cancel(ctx context.Context, rideID, actorID uuid.UUID, reason string) (*ride.Ride, error) {
	st, err := s.lookup(rideID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	if !st.ride.IsParticipant(actorID) {
		st.mu.Unlock()
		return nil, errors.Forbidden("Actor is not a participant of this ride", nil)
	}
	if st.ride.Status.IsTerminal() {
		status := st.ride.Status
		st.mu.Unlock()
		return nil, errors.InvalidTransition("Ride already "+string(status), nil)
	}
	now := time.Now()
	st.ride.Status = ride.StatusCancelled
	st.ride.CancelledAt = &now
	st.ride.CancellationReason = reason
	snapshot := st.ride.Clone()
	s.emit(ride.EventCancelled, snapshot)
	st.mu.Unlock()

	observability.RideTransitionsTotal.WithLabelValues(string(ride.StatusCancelled)).Inc()
	s.logger.Info("Ride cancelled",
		logger.String("ride_id", rideID.String()),
		logger.String("actor_id", actorID.String()),
		logger.String("reason", reason),
	)

	s.persist(ctx, snapshot)
	return snapshot, nil
}

// Rate records a participant's score for a completed ride. At most one
// rating per (ride, rater).
func (s *Service) Rate(ctx context.Context, rideID, actorID uuid.UUID, score int, review string) (*ride.Rating, error) {
	st, err := s.lookup(rideID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	participant := st.ride.IsParticipant(actorID)
	status := st.ride.Status
	st.mu.Unlock()

	if !participant {
		return nil, errors.Forbidden("Actor is not a participant of this ride", nil)
	}
	if status != ride.StatusCompleted {
		return nil, errors.InvalidTransition("Ride is not completed, current status: "+string(status), nil)
	}
	if score < 1 || score > 5 {
		return nil, errors.PreconditionFailed("Score must be between 1 and 5", nil)
	}

	rt := &ride.Rating{
		ID:        uuid.New(),
		RideID:    rideID,
		RaterID:   actorID,
		Score:     score,
		Review:    review,
		CreatedAt: time.Now(),
	}

	key := ratingKey{rideID: rideID, raterID: actorID}
	s.mu.Lock()
	if _, exists := s.ratings[key]; exists {
		s.mu.Unlock()
		return nil, errors.AlreadyRated("Ride already rated by this user", nil)
	}
	s.ratings[key] = rt
	s.mu.Unlock()

	s.logger.Info("Ride rated",
		logger.String("ride_id", rideID.String()),
		logger.String("rater_id", actorID.String()),
		logger.Int("score", score),
	)

	if s.store != nil {
		if err := s.store.SaveRating(ctx, rt); err != nil {
			s.logger.Warn("Failed to persist rating", logger.Err(err))
		}
	}
	return rt, nil
}

// Get returns a snapshot of the ride.
func (s *Service) Get(rideID uuid.UUID) (*ride.Ride, error) {
	st, err := s.lookup(rideID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.ride.Clone(), nil
}

func (s *Service) lookup(rideID uuid.UUID) (*rideState, error) {
	s.mu.RLock()
	st, ok := s.rides[rideID]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.ErrRideNotFound
	}
	return st, nil
}

func (s *Service) emit(kind ride.EventKind, snapshot *ride.Ride) {
	if s.events == nil {
		return
	}
	s.events.Publish(ride.Event{
		RideID:     snapshot.ID,
		Kind:       kind,
		Ride:       snapshot,
		OccurredAt: time.Now(),
	})
}

// persist hands the snapshot to the persistence collaborator. The
// in-memory state stays authoritative even when the durable copy lags.
func (s *Service) persist(ctx context.Context, snapshot *ride.Ride) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveRide(ctx, snapshot); err != nil {
		s.logger.Warn("Failed to persist ride",
			logger.String("ride_id", snapshot.ID.String()),
			logger.Err(err),
		)
	}
}
