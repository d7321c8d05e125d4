package mockmc

import "sync"

type item struct {
	value []byte
	flags uint32
	cas   uint64
}

// store holds the key space. A stored item keeps the token it was written with; a plain set
// writes token 0.
type store struct {
	items         map[string]item
	ignoreCAS     bool
	forgetDeletes bool
	keyLength     int
	lock          sync.Mutex
}

func newStore(config serverConfig) *store {
	return &store{
		items:         make(map[string]item),
		ignoreCAS:     config.ignoreCAS,
		forgetDeletes: config.forgetDeletes,
		keyLength:     config.keyLength,
	}
}

func (s *store) key(k string) string {
	if s.keyLength > 0 && len(k) > s.keyLength {
		return k[:s.keyLength]
	}
	return k
}

func (s *store) get(key string) (item, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	it, ok := s.items[s.key(key)]
	return it, ok
}

// set stores the value. With a nonzero token it fails if the key exists with a different token.
func (s *store) set(key string, value []byte, flags uint32, cas uint64) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	k := s.key(key)
	if cas > 0 && !s.ignoreCAS {
		if old, ok := s.items[k]; ok && old.cas != cas {
			return false
		}
	}
	s.items[k] = item{value: append([]byte(nil), value...), flags: flags, cas: cas}
	return true
}

// remove deletes the key. It fails if the key is missing, or if a nonzero token does not match.
func (s *store) remove(key string, cas uint64) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	k := s.key(key)
	old, ok := s.items[k]
	if !ok {
		return false
	}
	if cas > 0 && !s.ignoreCAS && old.cas != cas {
		return false
	}
	if !s.forgetDeletes {
		delete(s.items, k)
	}
	return true
}

func (s *store) len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.items)
}
