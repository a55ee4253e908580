package core

import "sync"

// Registry tracks which connections belong to which user. It is the
// process-local session registry behind presence aggregation: a user is
// online iff at least one of their connections is registered.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]map[*Client]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[int64]map[*Client]struct{}),
	}
}

// Register adds a connection under its user. Returns true if this is the
// user's first active connection (the 0->1 transition).
func (r *Registry) Register(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		r.conns[c.UserID] = set
	}
	set[c] = struct{}{}
	return len(set) == 1
}

// Unregister removes a connection. Returns true if the user has no
// remaining connections (the 1->0 transition).
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[c.UserID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, c.UserID)
		return true
	}
	return false
}

// ClientsOf returns the active connections of one user.
func (r *Registry) ClientsOf(userID int64) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.conns[userID]))
	for c := range r.conns[userID] {
		clients = append(clients, c)
	}
	return clients
}

// AllClients returns every registered connection.
func (r *Registry) AllClients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var clients []*Client
	for _, set := range r.conns {
		for c := range set {
			clients = append(clients, c)
		}
	}
	return clients
}

// OnlineUserIDs returns the IDs of users with at least one connection.
func (r *Registry) OnlineUserIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// Online reports whether the user has at least one connection.
func (r *Registry) Online(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}
