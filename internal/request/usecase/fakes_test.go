package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	authdomain "fupm-backend/internal/auth/domain"
	requestdomain "fupm-backend/internal/request/domain"
	"fupm-backend/pkg/lock"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var testNow = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return testNow.Add(-time.Duration(n) * 24 * time.Hour)
}

func strPtr(s string) *string { return &s }

// fakeUsers is an in-memory UserRepository.
type fakeUsers struct {
	mu      sync.Mutex
	byID    map[string]*authdomain.User
	findErr error
}

func newFakeUsers(users ...*authdomain.User) *fakeUsers {
	f := &fakeUsers{byID: map[string]*authdomain.User{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *authdomain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*authdomain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*authdomain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) Update(_ context.Context, u *authdomain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUsers) UpdateTokens(_ context.Context, userID string, token *oauth2.Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[userID]; ok {
		u.AccessToken = token.AccessToken
	}
	return nil
}

func (f *fakeUsers) UpdateLabelID(_ context.Context, userID, labelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[userID]; ok {
		u.GmailLabelID = labelID
	}
	return nil
}

func (f *fakeUsers) UpdateFollowupAction(_ context.Context, userID string, action authdomain.FollowupAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return errors.New("no such user")
	}
	u.FollowupAction = action
	return nil
}

func (f *fakeUsers) ListWithMailCredential(_ context.Context) ([]*authdomain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*authdomain.User
	for _, u := range f.byID {
		if u.HasMailCredential() {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeRequests is an in-memory RequestRepository. Insertion order is the
// natural read order.
type fakeRequests struct {
	mu        sync.Mutex
	order     []string
	byID      map[string]*requestdomain.Request
	batches   int
	listErr   error

	// beforeBatch runs ahead of each CreateBatch, outside the lock
	beforeBatch func()
	followups *fakeFollowups
}

func newFakeRequests(reqs ...*requestdomain.Request) *fakeRequests {
	f := &fakeRequests{byID: map[string]*requestdomain.Request{}}
	for _, r := range reqs {
		f.put(r)
	}
	return f
}

func (f *fakeRequests) put(r *requestdomain.Request) {
	if _, ok := f.byID[r.ID]; !ok {
		f.order = append(f.order, r.ID)
	}
	cp := *r
	f.byID[r.ID] = &cp
}

func (f *fakeRequests) get(id string) *requestdomain.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

// CreateBatch skips rows whose (user, thread) pair is already stored, like
// the conflict clause on the unique index.
func (f *fakeRequests) CreateBatch(_ context.Context, reqs []*requestdomain.Request) (int64, error) {
	if f.beforeBatch != nil {
		f.beforeBatch()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	var inserted int64
next:
	for _, r := range reqs {
		for _, existing := range f.byID {
			if existing.UserID == r.UserID && r.ThreadID != nil && existing.ThreadID != nil && *existing.ThreadID == *r.ThreadID {
				continue next
			}
		}
		f.put(r)
		inserted++
	}
	return inserted, nil
}

func (f *fakeRequests) FindByID(_ context.Context, id string) (*requestdomain.Request, error) {
	return f.get(id), nil
}

func (f *fakeRequests) FindByIDForUser(_ context.Context, userID, id string) (*requestdomain.Request, error) {
	r := f.get(id)
	if r == nil || r.UserID != userID {
		return nil, nil
	}
	if f.followups != nil {
		list, _ := f.followups.ListByRequest(context.Background(), id)
		for _, fu := range list {
			r.Followups = append(r.Followups, *fu)
		}
	}
	return r, nil
}

func (f *fakeRequests) list(match func(*requestdomain.Request) bool) []*requestdomain.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*requestdomain.Request
	for _, id := range f.order {
		r := f.byID[id]
		if match(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

func (f *fakeRequests) ListByUser(_ context.Context, userID string, status requestdomain.RequestStatus) ([]*requestdomain.Request, error) {
	return f.list(func(r *requestdomain.Request) bool {
		return r.UserID == userID && (status == "" || r.Status == status)
	}), nil
}

func (f *fakeRequests) ListThreadIDsByUser(_ context.Context, userID string) ([]string, error) {
	var ids []string
	for _, r := range f.list(func(r *requestdomain.Request) bool { return r.UserID == userID && r.ThreadID != nil }) {
		ids = append(ids, *r.ThreadID)
	}
	return ids, nil
}

func (f *fakeRequests) ListActive(_ context.Context) ([]*requestdomain.Request, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list(func(r *requestdomain.Request) bool { return r.Status == requestdomain.StatusActive }), nil
}

func (f *fakeRequests) ListActiveByUser(_ context.Context, userID string) ([]*requestdomain.Request, error) {
	return f.list(func(r *requestdomain.Request) bool {
		return r.UserID == userID && r.Status == requestdomain.StatusActive
	}), nil
}

func (f *fakeRequests) Update(_ context.Context, r *requestdomain.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[r.ID]; !ok {
		return errors.New("no such request")
	}
	f.put(r)
	return nil
}

func (f *fakeRequests) CloseIfActive(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok || r.Status != requestdomain.StatusActive {
		return false, nil
	}
	r.Status = requestdomain.StatusClosed
	return true, nil
}

func (f *fakeRequests) Delete(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok || r.UserID != userID {
		return requestdomain.ErrNotFound
	}
	delete(f.byID, id)
	for i, oid := range f.order {
		if oid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

// fakeFollowups enforces the (request_id, followup_number) uniqueness the
// real table has.
type fakeFollowups struct {
	mu   sync.Mutex
	rows []*requestdomain.Followup
}

func (f *fakeFollowups) add(fu *requestdomain.Followup) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, fu)
}

func (f *fakeFollowups) CountByRequest(_ context.Context, requestID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, fu := range f.rows {
		if fu.RequestID == requestID {
			n++
		}
	}
	return n, nil
}

func (f *fakeFollowups) FindLatestByRequest(_ context.Context, requestID string) (*requestdomain.Followup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *requestdomain.Followup
	for _, fu := range f.rows {
		if fu.RequestID == requestID && (latest == nil || fu.SentAt.After(latest.SentAt)) {
			latest = fu
		}
	}
	return latest, nil
}

func (f *fakeFollowups) ListByRequest(_ context.Context, requestID string) ([]*requestdomain.Followup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*requestdomain.Followup
	for _, fu := range f.rows {
		if fu.RequestID == requestID {
			out = append(out, fu)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FollowupNumber < out[j].FollowupNumber })
	return out, nil
}

func (f *fakeFollowups) Create(_ context.Context, fu *requestdomain.Followup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rows {
		if existing.RequestID == fu.RequestID && existing.FollowupNumber == fu.FollowupNumber {
			return errors.New("duplicate key value violates unique constraint \"idx_followups_request_number\"")
		}
	}
	f.rows = append(f.rows, fu)
	return nil
}

type fakeVoices struct {
	byName map[string]*requestdomain.Voice
	err    error
}

func (f *fakeVoices) List(_ context.Context) ([]*requestdomain.Voice, error) {
	var out []*requestdomain.Voice
	for _, v := range f.byName {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (f *fakeVoices) FindByName(_ context.Context, name string) (*requestdomain.Voice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byName[name], nil
}

func (f *fakeVoices) Upsert(_ context.Context, v *requestdomain.Voice) error {
	if f.byName == nil {
		f.byName = map[string]*requestdomain.Voice{}
	}
	cp := *v
	f.byName[v.Name] = &cp
	return nil
}

// fakeMail records every outgoing message and serves canned threads.
type fakeMail struct {
	mu        sync.Mutex
	labelID   string
	labelErr  error
	threadIDs []string
	threads   map[string][]requestdomain.ThreadMessage
	detailErr map[string]error
	sendErr   error
	drafts    []requestdomain.OutgoingMessage
	sent      []requestdomain.OutgoingMessage
	returnID  string
	details   int
}

func (m *fakeMail) EnsureLabel(_ context.Context, _ *authdomain.User) (string, error) {
	if m.labelErr != nil {
		return "", m.labelErr
	}
	if m.labelID == "" {
		return "Label_1", nil
	}
	return m.labelID, nil
}

func (m *fakeMail) ListThreadsWithLabel(_ context.Context, _ *authdomain.User, _ string) ([]string, error) {
	return m.threadIDs, nil
}

func (m *fakeMail) GetThreadDetail(_ context.Context, _ *authdomain.User, threadID string) ([]requestdomain.ThreadMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.details++
	if err := m.detailErr[threadID]; err != nil {
		return nil, err
	}
	return m.threads[threadID], nil
}

func (m *fakeMail) CreateDraft(_ context.Context, _ *authdomain.User, msg requestdomain.OutgoingMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.drafts = append(m.drafts, msg)
	return m.returnID, nil
}

func (m *fakeMail) SendMessage(_ context.Context, _ *authdomain.User, msg requestdomain.OutgoingMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sent = append(m.sent, msg)
	return m.returnID, nil
}

// fakeAI answers from fixed values and records generation params.
type fakeAI struct {
	mu          sync.Mutex
	extracted   map[string]*requestdomain.ThreadContext
	extractErr  error
	paid        map[string]bool
	classifyErr error
	body        string
	genErr      error
	params      []requestdomain.FollowupParams
	classified  int

	// onGenerate runs inside GenerateFollowup, after params are recorded
	onGenerate func()
}

func (a *fakeAI) ExtractContext(_ context.Context, bodies []string) (*requestdomain.ThreadContext, error) {
	if a.extractErr != nil {
		return nil, a.extractErr
	}
	if len(bodies) > 0 {
		if c, ok := a.extracted[bodies[0]]; ok {
			return c, nil
		}
	}
	return &requestdomain.ThreadContext{}, nil
}

func (a *fakeAI) ClassifyPaid(_ context.Context, bodies []string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.classified++
	if a.classifyErr != nil {
		return false, a.classifyErr
	}
	for _, b := range bodies {
		if a.paid[b] {
			return true, nil
		}
	}
	return false, nil
}

func (a *fakeAI) GenerateFollowup(_ context.Context, params requestdomain.FollowupParams) (string, error) {
	a.mu.Lock()
	a.params = append(a.params, params)
	hook := a.onGenerate
	a.mu.Unlock()
	if hook != nil {
		hook()
	}
	if a.genErr != nil {
		return "", a.genErr
	}
	if a.body == "" {
		return "Just checking in on this.", nil
	}
	return a.body, nil
}

// followupFixture wires a FollowupService over the fakes with a fixed clock.
type followupFixture struct {
	users     *fakeUsers
	requests  *fakeRequests
	followups *fakeFollowups
	voices    *fakeVoices
	mail      *fakeMail
	ai        *fakeAI
	locker    lock.Locker
	svc       *FollowupService
}

func newFollowupFixture(users []*authdomain.User, reqs ...*requestdomain.Request) *followupFixture {
	f := &followupFixture{
		users:     newFakeUsers(users...),
		requests:  newFakeRequests(reqs...),
		followups: &fakeFollowups{},
		voices:    &fakeVoices{},
		mail:      &fakeMail{returnID: "msg-1"},
		ai:        &fakeAI{},
		locker:    lock.NewMemoryLocker(),
	}
	f.requests.followups = f.followups
	logger := zap.NewNop()
	dispatcher := NewDispatcher(f.mail, f.followups, time.Second, logger)
	dispatcher.now = func() time.Time { return testNow }
	f.svc = NewFollowupService(
		f.users, f.requests, f.followups,
		NewVoiceResolver(f.voices, logger),
		f.ai, dispatcher, f.locker,
		time.Minute, time.Second, logger,
	)
	f.svc.now = func() time.Time { return testNow }
	return f
}

func connectedUser(id string, action authdomain.FollowupAction) *authdomain.User {
	return &authdomain.User{
		ID:             id,
		Email:          id + "@example.com",
		AccessToken:    "token-" + id,
		RefreshToken:   "refresh-" + id,
		FollowupAction: action,
	}
}

func activeRequest(id, userID string, created time.Time, interval int) *requestdomain.Request {
	return &requestdomain.Request{
		ID:               id,
		UserID:           userID,
		RecipientEmail:   "client@acme.test",
		RecipientName:    strPtr("Dana"),
		Subject:          strPtr("Invoice 42"),
		Amount:           strPtr("1250.00"),
		ThreadID:         strPtr("thread-" + id),
		Status:           requestdomain.StatusActive,
		FollowupInterval: interval,
		Tone:             "assistant",
		CreatedAt:        created,
		UpdatedAt:        created,
	}
}
