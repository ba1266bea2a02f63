package presence

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gocomet/ride-dispatch/internal/observability"
	"github.com/gocomet/ride-dispatch/pkg/logger"
)

// Record is the last-known position of one online driver.
type Record struct {
	DriverID     uuid.UUID  `json:"driver_id"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	CapturedAt   time.Time  `json:"captured_at"`
	ActiveRideID *uuid.UUID `json:"active_ride_id,omitempty"`
}

// Mirror receives best-effort copies of presence changes, e.g. a Redis
// geo set read by external dashboards. Failures never affect the
// in-memory state, which stays authoritative.
type Mirror interface {
	Upsert(rec Record)
	Remove(driverID uuid.UUID)
}

// Store holds driver presence in memory for the lifetime of the process.
// Transport does not guarantee ordering across reconnects, so CapturedAt
// is kept monotonically non-decreasing per driver: stale updates are
// dropped, not applied.
type Store struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
	mirror  Mirror
	logger  *logger.Logger
}

// NewStore creates an empty presence store. mirror may be nil.
func NewStore(mirror Mirror, log *logger.Logger) *Store {
	return &Store{
		records: make(map[uuid.UUID]Record),
		mirror:  mirror,
		logger:  log,
	}
}

// Update applies a location fix for a driver. It returns false, leaving
// the stored record untouched, when capturedAt is older than the record
// already held for that driver.
func (s *Store) Update(driverID uuid.UUID, lat, lon float64, capturedAt time.Time, activeRideID *uuid.UUID) bool {
	rec := Record{
		DriverID:     driverID,
		Latitude:     lat,
		Longitude:    lon,
		CapturedAt:   capturedAt,
		ActiveRideID: activeRideID,
	}

	s.mu.Lock()
	if prev, ok := s.records[driverID]; ok && capturedAt.Before(prev.CapturedAt) {
		s.mu.Unlock()
		observability.StaleLocationsTotal.Inc()
		s.logger.Debug("Stale location update dropped",
			logger.String("driver_id", driverID.String()),
		)
		return false
	}
	s.records[driverID] = rec
	s.mu.Unlock()

	if s.mirror != nil {
		s.mirror.Upsert(rec)
	}
	return true
}

// Clear forgets a driver; called on disconnect so a disconnected driver
// is never matched or shown as tracked. Unknown drivers are a no-op.
func (s *Store) Clear(driverID uuid.UUID) {
	s.mu.Lock()
	_, ok := s.records[driverID]
	delete(s.records, driverID)
	s.mu.Unlock()

	if ok && s.mirror != nil {
		s.mirror.Remove(driverID)
	}
}

// Get returns the record for one driver.
func (s *Store) Get(driverID uuid.UUID) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[driverID]
	return rec, ok
}

// Snapshot returns every tracked driver. O(online drivers), which this
// core assumes is a bounded set.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out
}

// NearestTo returns drivers within radiusKm of the point, ranked by
// ascending great-circle distance. Radius is inclusive; ties prefer the
// fresher CapturedAt.
func (s *Store) NearestTo(lat, lon, radiusKm float64) []Record {
	type candidate struct {
		rec  Record
		dist float64
	}

	s.mu.RLock()
	cands := make([]candidate, 0, len(s.records))
	for _, rec := range s.records {
		d := Haversine(lat, lon, rec.Latitude, rec.Longitude)
		if d <= radiusKm {
			cands = append(cands, candidate{rec: rec, dist: d})
		}
	}
	s.mu.RUnlock()

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].rec.CapturedAt.After(cands[j].rec.CapturedAt)
	})

	out := make([]Record, len(cands))
	for i, c := range cands {
		out[i] = c.rec
	}
	return out
}

// Haversine returns the great-circle distance between two points in km.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371

	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
