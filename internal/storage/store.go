package storage

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Store is the persistence surface the validator depends on. It is
// satisfied by MemoryStore; a networked or disk-backed implementation can
// substitute without the validator package changing.
type Store interface {
	CardByNumber(number string) (Card, bool)
	UserByMatricula(matricula string) (User, bool)
	MostRecentGrantedLog(userID int64) (AccessLog, bool)
	AppendLog(entry AccessLog) AccessLog
	Logs() []AccessLog
}

// MemoryStore is a RWMutex-guarded in-memory Store, the "external storage
// collaborator" the validator writes through without owning.
type MemoryStore struct {
	mu sync.RWMutex

	cards     map[string]Card
	users     map[string]User
	logs      []AccessLog
	nextLogID int64
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cards: make(map[string]Card),
		users: make(map[string]User),
	}
}

// PutCard inserts or replaces a card record, keyed by its normalized
// number.
func (s *MemoryStore) PutCard(c Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[c.Number] = c
}

// PutUser inserts or replaces a user record, keyed by matricula.
func (s *MemoryStore) PutUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Matricula] = u
}

// CardByNumber looks up a card by its normalized number.
func (s *MemoryStore) CardByNumber(number string) (Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[number]
	return c, ok
}

// UserByMatricula looks up a user by matricula.
func (s *MemoryStore) UserByMatricula(matricula string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[matricula]
	return u, ok
}

// MostRecentGrantedLog returns the most recent granted log entry for
// userID, if any.
func (s *MemoryStore) MostRecentGrantedLog(userID int64) (AccessLog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best AccessLog
	found := false
	for _, l := range s.logs {
		if !l.Granted || l.UserID == nil || *l.UserID != userID {
			continue
		}
		if !found || l.EventTime.After(best.EventTime) {
			best = l
			found = true
		}
	}
	return best, found
}

// AppendLog assigns an id and creation timestamp (if unset) and appends
// the record to the audit log.
func (s *MemoryStore) AppendLog(entry AccessLog) AccessLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLogID++
	entry.ID = s.nextLogID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.logs = append(s.logs, entry)
	return entry
}

// Logs returns a copy of every audit record, oldest first.
func (s *MemoryStore) Logs() []AccessLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AccessLog, len(s.logs))
	copy(out, s.logs)
	return out
}

// DailyGrantStats summarizes the mean and standard deviation of granted
// accesses per calendar day across the stored audit log, giving
// operations a cheap anomaly signal (a day far outside the mean may
// indicate a stuck-open turnstile or a credential sweep).
type DailyGrantStats struct {
	Days   int
	Mean   float64
	StdDev float64
}

// GrantStats computes DailyGrantStats over every day with at least one
// granted log entry; days with only denied entries are not counted.
func (s *MemoryStore) GrantStats() DailyGrantStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]float64)
	for _, l := range s.logs {
		if !l.Granted {
			continue
		}
		day := l.EventTime.Format("2006-01-02")
		counts[day]++
	}
	if len(counts) == 0 {
		return DailyGrantStats{}
	}

	values := make([]float64, 0, len(counts))
	for _, v := range counts {
		values = append(values, v)
	}
	sort.Float64s(values)

	mean := stat.Mean(values, nil)
	stddev := stat.StdDev(values, nil)
	return DailyGrantStats{Days: len(values), Mean: mean, StdDev: stddev}
}
