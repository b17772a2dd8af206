package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// fakeTracker is an in-memory Tracker.
type fakeTracker struct {
	mu          sync.Mutex
	viewer      User
	viewerErr   error
	issues      []IssueSnapshot
	issuesErr   error
	comments    map[string][]Comment
	commentErrs map[string]error
	posted      []postedComment
	postErr     error
	nextID      int

	assignedCalls int
	commentCalls  map[string][]int // issueID -> page sizes requested
}

type postedComment struct {
	IssueID, Body, ParentID string
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		viewer:       User{ID: "user-bot", Name: "Bot", DisplayName: "bot"},
		comments:     map[string][]Comment{},
		commentErrs:  map[string]error{},
		commentCalls: map[string][]int{},
	}
}

func (f *fakeTracker) Viewer(ctx context.Context) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewer, f.viewerErr
}

func (f *fakeTracker) AssignedIssues(ctx context.Context, userID string) ([]IssueSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignedCalls++
	if f.issuesErr != nil {
		return nil, f.issuesErr
	}
	return append([]IssueSnapshot(nil), f.issues...), nil
}

func (f *fakeTracker) IssueComments(ctx context.Context, issueID string, first int) ([]Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commentCalls[issueID] = append(f.commentCalls[issueID], first)
	if err := f.commentErrs[issueID]; err != nil {
		return nil, err
	}
	all := f.comments[issueID]
	if len(all) > first {
		all = all[len(all)-first:]
	}
	return append([]Comment(nil), all...), nil
}

func (f *fakeTracker) ResolveIssue(ctx context.Context, identifier string) (IssueSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, issue := range f.issues {
		if issue.Identifier == identifier {
			return issue, nil
		}
	}
	return IssueSnapshot{}, errors.New("not found")
}

func (f *fakeTracker) PostComment(ctx context.Context, issueID, body, parentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", f.postErr
	}
	f.nextID++
	id := fmt.Sprintf("bot-comment-%d", f.nextID)
	f.posted = append(f.posted, postedComment{IssueID: issueID, Body: body, ParentID: parentID})
	f.comments[issueID] = append(f.comments[issueID], Comment{
		ID:     id,
		Body:   body,
		Author: &User{ID: f.viewer.ID, Name: f.viewer.Name},
	})
	return id, nil
}

func (f *fakeTracker) setIssues(issues ...IssueSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues = issues
}

func (f *fakeTracker) addComment(issueID string, c Comment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[issueID] = append(f.comments[issueID], c)
}

// bump moves an issue's updatedAt forward.
func (f *fakeTracker) bump(issueID string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.issues {
		if f.issues[i].ID == issueID {
			f.issues[i].UpdatedAt = f.issues[i].UpdatedAt.Add(d)
		}
	}
}

// memoryStore is an in-memory StateStore.
type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	setErr error
	sets   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (m *memoryStore) GetState(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.values[key], nil
}

func (m *memoryStore) SetState(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	m.values[key] = value
	return nil
}

// recorder collects emitted events.
type recorder struct {
	mu       sync.Mutex
	messages []InboundMessage
	jids     []string
	metadata []ChatMetadata
}

func (r *recorder) OnMessage(jid string, msg InboundMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jids = append(r.jids, jid)
	r.messages = append(r.messages, msg)
}

func (r *recorder) OnChatMetadata(meta ChatMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata = append(r.metadata, meta)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *recorder) last() InboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages[len(r.messages)-1]
}

// panicOnce panics on its first message and records the rest.
type panicOnce struct {
	recorder
	panicked atomic.Bool
}

func (p *panicOnce) OnMessage(jid string, msg InboundMessage) {
	if p.panicked.CompareAndSwap(false, true) {
		panic("sink unavailable")
	}
	p.recorder.OnMessage(jid, msg)
}

// manualScheduler runs the scheduled job only when Tick is called.
type manualScheduler struct {
	mu       sync.Mutex
	job      func()
	interval time.Duration
	canceled int
	err      error
}

func (s *manualScheduler) Every(interval time.Duration, fn func()) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.job = fn
	s.interval = interval
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.job = nil
		s.canceled++
	}, nil
}

// Tick runs the job once if it is still scheduled and reports whether it ran.
func (s *manualScheduler) Tick() bool {
	s.mu.Lock()
	job := s.job
	s.mu.Unlock()
	if job == nil {
		return false
	}
	job()
	return true
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func testIssue(id, identifier, title string) IssueSnapshot {
	return IssueSnapshot{
		ID:            id,
		Identifier:    identifier,
		Title:         title,
		Status:        "Todo",
		PriorityLabel: "High",
		URL:           "https://linear.app/acme/issue/" + identifier,
		UpdatedAt:     baseTime,
		CreatorID:     "user-alice",
	}
}

type harness struct {
	tracker   *fakeTracker
	store     *memoryStore
	emitted   *recorder
	scheduler *manualScheduler
	channel   *Channel
}

func newHarness(opts ...Option) *harness {
	h := &harness{
		tracker:   newFakeTracker(),
		store:     newMemoryStore(),
		emitted:   &recorder{},
		scheduler: &manualScheduler{},
	}
	base := []Option{
		WithLogger(discardLogger()),
		WithScheduler(h.scheduler),
		WithClock(func() time.Time { return baseTime.Add(time.Hour) }),
	}
	h.channel = New(Config{UserID: "user-bot", PollInterval: 30 * time.Second},
		h.tracker, h.store, h.emitted, append(base, opts...)...)
	return h
}
