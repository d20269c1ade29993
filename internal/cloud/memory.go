package cloud

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryService is an in-memory RecordService. It backs the engine tests
// and the demo daemon, and can be scripted to fail saves or fetches to
// exercise degradation paths.
type MemoryService struct {
	mu      sync.Mutex
	records map[string]Record
	status  AccountStatus
	zones   map[string]bool
	subs    map[string]string

	saveErr       error
	fetchErr      error
	rejectComplex bool

	now func() time.Time
}

// NewMemoryService creates an empty in-memory service with an available
// account.
func NewMemoryService() *MemoryService {
	return &MemoryService{
		records: make(map[string]Record),
		status:  AccountAvailable,
		zones:   make(map[string]bool),
		subs:    make(map[string]string),
		now:     time.Now,
	}
}

// SetNow overrides the clock used for server-assigned modification times.
func (s *MemoryService) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetAccountStatus scripts the account status.
func (s *MemoryService) SetAccountStatus(status AccountStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// FailSavesWith makes subsequent saves fail with err. Pass nil to restore.
func (s *MemoryService) FailSavesWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// FailFetchesWith makes subsequent fetches fail with err. Pass nil to
// restore.
func (s *MemoryService) FailFetchesWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchErr = err
}

// RejectComplexQueries makes the service reject every non-All query shape,
// forcing the client onto its filter fallback.
func (s *MemoryService) RejectComplexQueries(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectComplex = reject
}

// Put stores a record directly, bypassing the failure script. Used to seed
// remote state in tests.
func (s *MemoryService) Put(record Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.ModifiedAt.IsZero() {
		record.ModifiedAt = s.now()
	}
	s.records[record.ID] = record
}

// Len reports the number of stored records.
func (s *MemoryService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// AccountStatus implements RecordService.
func (s *MemoryService) AccountStatus(ctx context.Context) (AccountStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, nil
}

// EnsureZone implements RecordService.
func (s *MemoryService) EnsureZone(ctx context.Context, zone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[zone] = true
	return nil
}

// Subscribe implements RecordService.
func (s *MemoryService) Subscribe(ctx context.Context, familyID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.subs[familyID]; ok {
		return id, nil
	}
	id := uuid.NewString()
	s.subs[familyID] = id
	return id, nil
}

// Save implements RecordService. The saved record gets a server-assigned
// modification time; records without an ID get one assigned.
func (s *MemoryService) Save(ctx context.Context, record Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return Record{}, s.saveErr
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.ModifiedAt = s.now()
	s.records[record.ID] = record
	return record, nil
}

// Fetch implements RecordService.
func (s *MemoryService) Fetch(ctx context.Context, kind string, query Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if s.rejectComplex && query.Kind != QueryAll {
		return nil, ErrComplexQuery
	}

	var matched []Record
	for _, r := range s.records {
		if r.Kind != kind {
			continue
		}
		if query.Matches(r) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}
