package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gocomet/ride-dispatch/internal/domain/identity"
	"github.com/gocomet/ride-dispatch/internal/observability"
	"github.com/gocomet/ride-dispatch/pkg/logger"
)

// Conn is a live connection handle. The registry never touches the
// transport; Send is best-effort and must not block (it reports false
// when the frame could not be queued).
type Conn interface {
	Identity() identity.Identity
	Send(data []byte) bool
}

// Session ties one connection handle to the identity that authenticated it.
type Session struct {
	ID       uuid.UUID
	Identity identity.Identity
	JoinedAt time.Time
}

// Registry tracks which identities currently hold live connections. One
// identity may hold several concurrent connections (multi-device); each
// handle is tracked independently. Lifetime is process uptime; there is
// no persistence and resetting on restart is safe.
type Registry struct {
	mu       sync.RWMutex
	sessions map[Conn]Session
	byUser   map[uuid.UUID]map[Conn]struct{}
	logger   *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		sessions: make(map[Conn]Session),
		byUser:   make(map[uuid.UUID]map[Conn]struct{}),
		logger:   log,
	}
}

// Register tracks a new connection for id and returns the session id.
// Registering the same identity from several devices is always allowed.
func (r *Registry) Register(id identity.Identity, conn Conn) uuid.UUID {
	s := Session{ID: uuid.New(), Identity: id, JoinedAt: time.Now()}

	r.mu.Lock()
	r.sessions[conn] = s
	conns, ok := r.byUser[id.UserID]
	if !ok {
		conns = make(map[Conn]struct{})
		r.byUser[id.UserID] = conns
	}
	conns[conn] = struct{}{}
	total := len(r.sessions)
	r.mu.Unlock()

	observability.ConnectionsActive.Set(float64(total))
	if id.Role == identity.RoleDriver {
		observability.DriversOnline.Set(float64(r.countByRole(identity.RoleDriver)))
	}

	r.logger.Info("Session registered",
		logger.String("session_id", s.ID.String()),
		logger.String("user_id", id.UserID.String()),
		logger.String("role", string(id.Role)),
	)
	return s.ID
}

// Unregister removes a connection. Removing an unknown handle is a no-op.
// It returns the identity that owned the connection, if it was tracked.
func (r *Registry) Unregister(conn Conn) (identity.Identity, bool) {
	r.mu.Lock()
	s, ok := r.sessions[conn]
	if !ok {
		r.mu.Unlock()
		return identity.Identity{}, false
	}
	delete(r.sessions, conn)
	if conns, found := r.byUser[s.Identity.UserID]; found {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(r.byUser, s.Identity.UserID)
		}
	}
	total := len(r.sessions)
	r.mu.Unlock()

	observability.ConnectionsActive.Set(float64(total))
	if s.Identity.Role == identity.RoleDriver {
		observability.DriversOnline.Set(float64(r.countByRole(identity.RoleDriver)))
	}

	r.logger.Info("Session unregistered",
		logger.String("session_id", s.ID.String()),
		logger.String("user_id", s.Identity.UserID.String()),
	)
	return s.Identity, true
}

// ConnectionsFor returns the live connections of a user; empty if offline.
func (r *Registry) ConnectionsFor(userID uuid.UUID) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.byUser[userID]
	out := make([]Conn, 0, len(conns))
	for c := range conns {
		out = append(out, c)
	}
	return out
}

// IsOnline reports whether the user holds at least one live connection.
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// ConnectionsByRole returns every live connection whose identity carries
// the given role. Used by dispatch to address the "online drivers" group.
func (r *Registry) ConnectionsByRole(role identity.Role) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Conn
	for conn, s := range r.sessions {
		if s.Identity.Role == role {
			out = append(out, conn)
		}
	}
	return out
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// countByRole counts distinct online users carrying the role.
func (r *Registry) countByRole(role identity.Role) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, conns := range r.byUser {
		for c := range conns {
			if c.Identity().Role == role {
				n++
			}
			break
		}
	}
	return n
}
