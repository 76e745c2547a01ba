package fee

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type poolEntry struct {
	mu     sync.Mutex
	config PoolConfig
	state  PoolFeeState
}

// Store maps pools to their fee state. Each entry carries its own lock so
// updates to one pool are serialized while different pools run in parallel.
type Store struct {
	mu    sync.RWMutex
	pools map[common.Address]*poolEntry
}

func NewStore() *Store {
	return &Store{pools: make(map[common.Address]*poolEntry)}
}

func (s *Store) get(pool common.Address) (*poolEntry, bool) {
	s.mu.RLock()
	entry, ok := s.pools[pool]
	s.mu.RUnlock()
	return entry, ok
}

// insert adds an entry; it reports false if the pool already exists.
func (s *Store) insert(config PoolConfig, state PoolFeeState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pools[config.Pool]; ok {
		return false
	}
	s.pools[config.Pool] = &poolEntry{config: config, state: state}
	return true
}

// Len returns the number of registered pools.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pools)
}

// Pools returns registered pool addresses in byte order.
func (s *Store) Pools() []common.Address {
	s.mu.RLock()
	out := make([]common.Address, 0, len(s.pools))
	for pool := range s.pools {
		out = append(out, pool)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// read returns copies of the pool's config and state.
func (s *Store) read(pool common.Address) (PoolConfig, PoolFeeState, error) {
	entry, ok := s.get(pool)
	if !ok {
		return PoolConfig{}, PoolFeeState{}, ErrUnknownPool
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.config, entry.state, nil
}

// update applies fn under the pool's lock. State is committed only when fn succeeds.
func (s *Store) update(pool common.Address, fn func(PoolConfig, PoolFeeState) (PoolFeeState, error)) (PoolFeeState, PoolFeeState, error) {
	entry, ok := s.get(pool)
	if !ok {
		return PoolFeeState{}, PoolFeeState{}, ErrUnknownPool
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	prev := entry.state
	next, err := fn(entry.config, prev)
	if err != nil {
		return prev, prev, err
	}
	entry.state = next
	return prev, next, nil
}
