package websocket

import "sync"

// Registry maps a user to the single live socket of that user.
type Registry interface {
	Get(userID string) (*Client, bool)
	// Set stores client and returns the handle it replaced, if any.
	Set(client *Client) (replaced *Client)
	// Remove deletes the entry only when it still points at client, so a
	// stale socket closing late cannot evict a newer login.
	Remove(client *Client) bool
	Range(fn func(client *Client) bool)
	Len() int
}

type localRegistry struct {
	mutex   sync.RWMutex
	clients map[string]*Client
}

func NewLocalRegistry() Registry {
	return &localRegistry{
		clients: make(map[string]*Client),
	}
}

func (r *localRegistry) Get(userID string) (*Client, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	client, ok := r.clients[userID]
	return client, ok
}

func (r *localRegistry) Set(client *Client) *Client {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	replaced := r.clients[client.UserID]
	r.clients[client.UserID] = client
	if replaced == client {
		return nil
	}
	return replaced
}

func (r *localRegistry) Remove(client *Client) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if current, ok := r.clients[client.UserID]; ok && current == client {
		delete(r.clients, client.UserID)
		return true
	}
	return false
}

func (r *localRegistry) Range(fn func(client *Client) bool) {
	r.mutex.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mutex.RUnlock()

	for _, c := range clients {
		if !fn(c) {
			return
		}
	}
}

func (r *localRegistry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.clients)
}
