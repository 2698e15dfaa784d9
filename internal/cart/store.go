package cart

import (
	"hash/fnv"
	"sort"
	"sync"
)

// Cart is the in-memory set of course ids for one shopping session.
// All methods are safe for concurrent use.
type Cart struct {
	mu    sync.RWMutex
	items map[string]struct{}
}

func newCart() *Cart {
	return &Cart{items: make(map[string]struct{})}
}

// Add inserts a course id. Adding an id twice is a no-op.
func (c *Cart) Add(courseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[courseID] = struct{}{}
}

// Remove deletes a course id if present.
func (c *Cart) Remove(courseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, courseID)
}

// Contains reports whether the course id is in the cart.
func (c *Cart) Contains(courseID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[courseID]
	return ok
}

// Items returns a sorted snapshot copy of the current course ids, never the
// live set.
func (c *Cart) Items() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the current item count.
func (c *Cart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]struct{})
}

// Store is a sharded registry of carts keyed by session id. It is always
// injected, never a package-level singleton, so lifetime and test isolation
// stay explicit. The registry is process-local: running multiple server
// instances requires moving cart state to a shared store.
type Store struct {
	shards []*shard
}

type shard struct {
	mu    sync.Mutex
	carts map[string]*Cart
}

// NewStore builds a Store with the given shard count.
func NewStore(shardCount int) *Store {
	if shardCount <= 0 {
		shardCount = 16
	}
	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = &shard{carts: make(map[string]*Cart)}
	}
	return &Store{shards: shards}
}

// GetOrCreate returns the cart for the session id, creating it on first
// access. The lookup-or-insert is atomic per shard: concurrent calls with the
// same id always observe the same Cart instance.
func (s *Store) GetOrCreate(cartID string) *Cart {
	sh := s.shardFor(cartID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if c, ok := sh.carts[cartID]; ok {
		return c
	}
	c := newCart()
	sh.carts[cartID] = c
	return c
}

// Get returns the cart for the session id without creating one.
func (s *Store) Get(cartID string) (*Cart, bool) {
	sh := s.shardFor(cartID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	c, ok := sh.carts[cartID]
	return c, ok
}

// Drop destroys the cart for the session id, e.g. on logout or checkout.
func (s *Store) Drop(cartID string) {
	sh := s.shardFor(cartID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.carts, cartID)
}

func (s *Store) shardFor(cartID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(cartID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}
