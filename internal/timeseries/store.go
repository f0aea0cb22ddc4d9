package timeseries

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrAlreadyLoaded is returned when loading a series under a name that is
// already taken. Loaded series are immutable; there is no replace.
var ErrAlreadyLoaded = errors.New("timeseries: series already loaded")

// ErrNotFound is returned when looking up a series that was never loaded.
var ErrNotFound = errors.New("timeseries: series not found")

// Store holds named series, append-only. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	series map[string]*Series
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{series: make(map[string]*Series)}
}

// Load registers a series under its name. Loading the same name twice fails.
func (st *Store) Load(s *Series) error {
	if s == nil || s.Len() == 0 {
		return ErrEmpty
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.series[s.Name]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyLoaded, s.Name)
	}
	st.series[s.Name] = s
	return nil
}

// Get returns the series loaded under name.
func (st *Store) Get(name string) (*Series, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.series[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return s, nil
}

// Names returns the loaded series names in sorted order.
func (st *Store) Names() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	names := make([]string, 0, len(st.series))
	for name := range st.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
