package application_test

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/gatecheck/internal/application"
	"github.com/ericfisherdev/gatecheck/internal/domain/model"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// --- In-memory AttendeeStore ---

// memStore is a mutex-guarded AttendeeStore for service tests. failures
// maps an operation name to the number of upcoming calls that fail with
// ErrStorageUnavailable; lostCommits does the same but only after the
// write has been applied, simulating a response lost in transit.
// beforeMark, when set, runs once ahead of the next mark call.
type memStore struct {
	mu          sync.Mutex
	nextID      int64
	rows        []model.Attendee
	photos      map[int64]model.Photo
	failures    map[string]int
	lostCommits map[string]int
	calls       map[string]int
	beforeMark  func()
}

func newMemStore() *memStore {
	return &memStore{
		photos:      make(map[int64]model.Photo),
		failures:    make(map[string]int),
		lostCommits: make(map[string]int),
		calls:       make(map[string]int),
	}
}

func (m *memStore) enter(op string) error {
	m.calls[op]++
	if m.failures[op] > 0 {
		m.failures[op]--
		return driven.ErrStorageUnavailable
	}
	return nil
}

func (m *memStore) lose(op string) bool {
	if m.lostCommits[op] > 0 {
		m.lostCommits[op]--
		return true
	}
	return false
}

func (m *memStore) callCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *memStore) index(match func(model.Attendee) bool) int {
	return slices.IndexFunc(m.rows, match)
}

func clone(a model.Attendee) *model.Attendee {
	c := a
	if a.ScanTime != nil {
		t := *a.ScanTime
		c.ScanTime = &t
	}
	return &c
}

func (m *memStore) Create(_ context.Context, a model.Attendee) (*model.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("create"); err != nil {
		return nil, err
	}
	if m.index(func(x model.Attendee) bool { return x.TicketID == a.TicketID }) >= 0 {
		return nil, driven.ErrDuplicateTicketID
	}
	if m.index(func(x model.Attendee) bool { return x.Token == a.Token }) >= 0 {
		return nil, driven.ErrDuplicateToken
	}
	m.nextID++
	a.ID = m.nextID
	a.Used = false
	a.ScanTime = nil
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC).Add(time.Duration(a.ID) * time.Second)
	}
	m.rows = append(m.rows, a)
	if m.lose("create") {
		return nil, driven.ErrStorageUnavailable
	}
	return clone(a), nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*model.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("get"); err != nil {
		return nil, err
	}
	i := m.index(func(x model.Attendee) bool { return x.ID == id })
	if i < 0 {
		return nil, nil
	}
	return clone(m.rows[i]), nil
}

func (m *memStore) GetByToken(_ context.Context, token string) (*model.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("get"); err != nil {
		return nil, err
	}
	i := m.index(func(x model.Attendee) bool { return x.Token == token })
	if i < 0 {
		return nil, nil
	}
	return clone(m.rows[i]), nil
}

func (m *memStore) UpdateFields(_ context.Context, id int64, p model.AttendeePatch) (*model.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("update"); err != nil {
		return nil, err
	}
	i := m.index(func(x model.Attendee) bool { return x.ID == id })
	if i < 0 {
		return nil, driven.ErrAttendeeNotFound
	}
	if p.TicketID != nil && m.index(func(x model.Attendee) bool { return x.TicketID == *p.TicketID && x.ID != id }) >= 0 {
		return nil, driven.ErrDuplicateTicketID
	}
	if p.Name != nil {
		m.rows[i].Name = *p.Name
	}
	if p.TicketID != nil {
		m.rows[i].TicketID = *p.TicketID
	}
	if p.Email != nil {
		m.rows[i].Email = *p.Email
	}
	return clone(m.rows[i]), nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("delete"); err != nil {
		return err
	}
	i := m.index(func(x model.Attendee) bool { return x.ID == id })
	if i < 0 {
		return driven.ErrAttendeeNotFound
	}
	m.rows = slices.Delete(m.rows, i, i+1)
	delete(m.photos, id)
	return nil
}

func (m *memStore) ListAll(_ context.Context) iter.Seq2[model.Attendee, error] {
	return func(yield func(model.Attendee, error) bool) {
		m.mu.Lock()
		snapshot := slices.Clone(m.rows)
		m.mu.Unlock()

		slices.Reverse(snapshot)
		for _, a := range snapshot {
			if !yield(*clone(a), nil) {
				return
			}
		}
	}
}

func (m *memStore) Search(_ context.Context, q model.SearchQuery, limit int) ([]model.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("search"); err != nil {
		return nil, err
	}
	if q.IsEmpty() {
		return nil, nil
	}
	var out []model.Attendee
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		a := m.rows[i]
		if q.NameContains != "" && !strings.Contains(strings.ToLower(a.Name), strings.ToLower(q.NameContains)) {
			continue
		}
		if q.TicketID != "" && a.TicketID != q.TicketID {
			continue
		}
		out = append(out, *clone(a))
	}
	return out, nil
}

func (m *memStore) mark(match func(model.Attendee) bool, at time.Time, attempt string) (*model.Attendee, bool, error) {
	if hook := m.beforeMark; hook != nil {
		m.beforeMark = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("mark"); err != nil {
		return nil, false, err
	}
	i := m.index(match)
	if i < 0 {
		return nil, false, nil
	}
	if m.rows[i].Used {
		return clone(m.rows[i]), false, nil
	}
	t := at
	if m.rows[i].CreatedAt.After(t) {
		t = m.rows[i].CreatedAt
	}
	m.rows[i].Used = true
	m.rows[i].ScanTime = &t
	m.rows[i].ScanAttempt = attempt
	if m.lose("mark") {
		return nil, false, driven.ErrStorageUnavailable
	}
	return clone(m.rows[i]), true, nil
}

func (m *memStore) MarkUsedByToken(_ context.Context, token string, at time.Time, attempt string) (*model.Attendee, bool, error) {
	return m.mark(func(x model.Attendee) bool { return x.Token == token }, at, attempt)
}

func (m *memStore) MarkUsedByID(_ context.Context, id int64, at time.Time, attempt string) (*model.Attendee, bool, error) {
	return m.mark(func(x model.Attendee) bool { return x.ID == id }, at, attempt)
}

func (m *memStore) SetPhoto(_ context.Context, id int64, photo model.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("set_photo"); err != nil {
		return err
	}
	i := m.index(func(x model.Attendee) bool { return x.ID == id })
	if i < 0 {
		return driven.ErrAttendeeNotFound
	}
	m.photos[id] = model.Photo{ContentType: photo.ContentType, Data: slices.Clone(photo.Data)}
	m.rows[i].HasPhoto = true
	return nil
}

func (m *memStore) GetPhoto(_ context.Context, id int64) (*model.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index(func(x model.Attendee) bool { return x.ID == id }) < 0 {
		return nil, driven.ErrAttendeeNotFound
	}
	p, ok := m.photos[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) DeletePhoto(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(func(x model.Attendee) bool { return x.ID == id })
	if i < 0 {
		return driven.ErrAttendeeNotFound
	}
	delete(m.photos, id)
	m.rows[i].HasPhoto = false
	return nil
}

func (m *memStore) ResetScan(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(func(x model.Attendee) bool { return x.ID == id })
	if i < 0 {
		return driven.ErrAttendeeNotFound
	}
	m.rows[i].Used = false
	m.rows[i].ScanTime = nil
	m.rows[i].ScanAttempt = ""
	return nil
}

func (m *memStore) ResetAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.rows {
		if m.rows[i].Used {
			m.rows[i].Used = false
			m.rows[i].ScanTime = nil
			m.rows[i].ScanAttempt = ""
			n++
		}
	}
	return n, nil
}

func (m *memStore) ClearAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.rows))
	m.rows = nil
	clear(m.photos)
	return n, nil
}

func (m *memStore) Stats(_ context.Context) (model.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("stats"); err != nil {
		return model.Stats{}, err
	}
	var s model.Stats
	for _, a := range m.rows {
		s.Total++
		if a.Used {
			s.Used++
		}
	}
	s.Pending = s.Total - s.Used
	return s, nil
}

// --- Scan event recorder ---

type mockScanEvents struct {
	mu     sync.Mutex
	events []model.ScanEvent
	ctxErr []error
}

func (m *mockScanEvents) Record(ctx context.Context, e model.ScanEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	m.ctxErr = append(m.ctxErr, ctx.Err())
	return nil
}

func (m *mockScanEvents) ListRecent(_ context.Context, limit int) ([]model.ScanEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.events)
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockScanEvents) statuses() []model.CheckInStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.CheckInStatus, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Status)
	}
	return out
}

// --- Observer recorder ---

type recordingObserver struct {
	mu       sync.Mutex
	checkIns map[model.CheckInStatus]int
	imported int
	rejected int
	retries  map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		checkIns: make(map[model.CheckInStatus]int),
		retries:  make(map[string]int),
	}
}

func (o *recordingObserver) CheckIn(_ model.CheckInSource, status model.CheckInStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.checkIns[status]++
}

func (o *recordingObserver) Import(imported, rejected int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.imported += imported
	o.rejected += rejected
}

func (o *recordingObserver) StorageRetry(op string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries[op]++
}

// --- In-memory SessionStore ---

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	swept    int
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]model.Session)}
}

func (m *memSessions) Create(_ context.Context, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.TokenHash] = s
	return nil
}

func (m *memSessions) Get(_ context.Context, hash string, now time.Time) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[hash]
	if !ok || s.Expired(now) {
		return nil, driven.ErrSessionNotFound
	}
	return &s, nil
}

func (m *memSessions) Extend(_ context.Context, hash string, expiresAt, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[hash]
	if !ok || s.Expired(now) {
		return driven.ErrSessionNotFound
	}
	s.ExpiresAt = expiresAt
	m.sessions[hash] = s
	return nil
}

func (m *memSessions) Delete(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, hash)
	return nil
}

func (m *memSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swept++
	var n int64
	for k, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, k)
			n++
		}
	}
	return n, nil
}

func (m *memSessions) sweepCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.swept
}

// --- Renderer ---

type stubRenderer struct {
	mu       sync.Mutex
	payloads []string
}

func (r *stubRenderer) RenderPNG(_ context.Context, payload string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	return []byte("\x89PNG\r\n\x1a\n" + payload), nil
}

// noRetry keeps retry tests fast.
var noRetry = application.StoragePolicy{Timeout: time.Second, RetryDelay: 0}
