//go:build !integration

package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-secret-relay/internal/domain"
	"telegram-secret-relay/internal/domain/model"
	"telegram-secret-relay/internal/domain/ports/adapter"
	"telegram-secret-relay/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// ---- transaction manager ----

type mockTxManager struct{}

func newMockTxManager() *mockTxManager { return &mockTxManager{} }

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

// ---- user repository ----

// memUserRepo is a small in-memory implementation used by unit tests.
type memUserRepo struct {
	mu      sync.RWMutex
	store   map[int64]*model.User // keyed by TelegramID
	saveErr error                 // simulate save failures
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{store: make(map[int64]*model.User)}
}

func (m *memUserRepo) Save(_ context.Context, _ repository.Tx, u *model.User) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.TelegramID] = &cp
	return nil
}

func (m *memUserRepo) FindByTelegramID(_ context.Context, _ repository.Tx, tgID int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[tgID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) FindByUsername(_ context.Context, _ repository.Tx, username string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.store {
		if u.Username != "" && strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) List(_ context.Context, _ repository.Tx, includeBanned bool) ([]*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.User, 0, len(m.store))
	for _, u := range m.store {
		if u.Banned && !includeBanned {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TelegramID < out[j].TelegramID })
	return out, nil
}

func (m *memUserRepo) CountUsers(_ context.Context, _ repository.Tx) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store), nil
}

func (m *memUserRepo) CountPremium(_ context.Context, _ repository.Tx) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, u := range m.store {
		if u.IsPremium {
			n++
		}
	}
	return n, nil
}

func (m *memUserRepo) CountBanned(_ context.Context, _ repository.Tx) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, u := range m.store {
		if u.Banned {
			n++
		}
	}
	return n, nil
}

// ---- share repository ----

// memShareRepo mirrors the guarded-update claim semantics of the SQL repo.
type memShareRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Share
}

func newMemShareRepo() *memShareRepo {
	return &memShareRepo{store: make(map[string]*model.Share)}
}

func (m *memShareRepo) Save(_ context.Context, _ repository.Tx, s *model.Share) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *memShareRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Share, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memShareRepo) FindByAccessToken(_ context.Context, _ repository.Tx, token string) (*model.Share, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.AccessToken != "" && s.AccessToken == token {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memShareRepo) claim(s *model.Share, viewerID int64, now time.Time) (*model.Share, error) {
	if s == nil || !s.Viewable(now) {
		return nil, domain.ErrShareNotViewable
	}
	if s.Scope == model.ShareScopeUser && s.RecipientID != viewerID {
		return nil, domain.ErrShareNotViewable
	}
	s.ViewCount++
	t := now
	s.ViewedAt = &t
	s.ViewedBy = viewerID
	if s.DestructMins > 0 {
		d := now.Add(time.Duration(s.DestructMins) * time.Minute)
		s.DestructAt = &d
	}
	switch {
	case s.ExhaustedBy(s.ViewCount):
		s.Status = model.ShareStatusDestructed
	case s.Scope == model.ShareScopeUser:
		s.Status = model.ShareStatusViewed
	}
	cp := *s
	return &cp, nil
}

func (m *memShareRepo) ClaimView(_ context.Context, _ repository.Tx, id string, viewerID int64, now time.Time) (*model.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claim(m.store[id], viewerID, now)
}

func (m *memShareRepo) ClaimViewByToken(_ context.Context, _ repository.Tx, token string, viewerID int64, now time.Time) (*model.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if s.AccessToken != "" && s.AccessToken == token {
			return m.claim(s, viewerID, now)
		}
	}
	return nil, domain.ErrShareNotViewable
}

func (m *memShareRepo) ListBySender(_ context.Context, _ repository.Tx, senderID int64, offset, limit int) ([]*model.Share, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*model.Share
	for _, s := range m.store {
		if s.SenderID != senderID {
			continue
		}
		if s.Status != model.ShareStatusActive && s.Status != model.ShareStatusViewed {
			continue
		}
		cp := *s
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *memShareRepo) CountActiveBySender(_ context.Context, _ repository.Tx, senderID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.store {
		if s.SenderID == senderID && s.Status == model.ShareStatusActive {
			n++
		}
	}
	return n, nil
}

func (m *memShareRepo) ExpireDue(_ context.Context, _ repository.Tx, now time.Time) ([]*model.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Share
	for _, s := range m.store {
		if s.Status == model.ShareStatusActive && s.ExpiresAt != nil && !s.ExpiresAt.After(now) {
			s.Status = model.ShareStatusExpired
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memShareRepo) ListDestructDue(_ context.Context, _ repository.Tx, now time.Time) ([]*model.Share, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Share
	for _, s := range m.store {
		if s.DestructAt != nil && !s.DestructAt.After(now) && s.DeliveredMsgID != 0 {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memShareRepo) CountByStatus(_ context.Context, _ repository.Tx) (map[model.ShareStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[model.ShareStatus]int{}
	for _, s := range m.store {
		out[s.Status]++
	}
	return out, nil
}

// ---- conversation state ----

type memStateRepo struct {
	mu    sync.Mutex
	store map[int64]*repository.ConversationState
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{store: make(map[int64]*repository.ConversationState)}
}

func (m *memStateRepo) SetState(_ context.Context, tgID int64, state *repository.ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[tgID] = state
	return nil
}

func (m *memStateRepo) GetState(_ context.Context, tgID int64) (*repository.ConversationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store[tgID], nil
}

func (m *memStateRepo) ClearState(_ context.Context, tgID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, tgID)
	return nil
}

// ---- inline payload cache ----

type memPayloadCache struct {
	mu    sync.Mutex
	store map[string]string
}

func newMemPayloadCache() *memPayloadCache {
	return &memPayloadCache{store: make(map[string]string)}
}

func (m *memPayloadCache) Put(_ context.Context, shareID, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[shareID] = payload
	return nil
}

func (m *memPayloadCache) Get(_ context.Context, shareID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[shareID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

func (m *memPayloadCache) Delete(_ context.Context, shareID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, shareID)
	return nil
}

// ---- bot adapter ----

type sentMessage struct {
	ChatID    int64
	Text      string
	Protected bool
}

type copiedMessage struct {
	ToChatID   int64
	FromChatID int64
	MessageID  int
}

// fakeBot records outbound traffic and hands out sequential message IDs.
type fakeBot struct {
	mu      sync.Mutex
	nextID  int
	Sent    []sentMessage
	Copied  []copiedMessage
	Deleted []int
	Edited  []int
	sendErr error
}

var _ adapter.TelegramBotAdapter = (*fakeBot)(nil)

func newFakeBot() *fakeBot { return &fakeBot{} }

func (f *fakeBot) SendMessage(_ context.Context, p adapter.SendMessageParams) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.Sent = append(f.Sent, sentMessage{ChatID: p.ChatID, Text: p.Text, Protected: p.Protected})
	f.nextID++
	return f.nextID, nil
}

func (f *fakeBot) CopyMessage(_ context.Context, p adapter.CopyMessageParams) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.Copied = append(f.Copied, copiedMessage{ToChatID: p.ToChatID, FromChatID: p.FromChatID, MessageID: p.MessageID})
	f.nextID++
	return f.nextID, nil
}

func (f *fakeBot) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, messageID)
	return nil
}

func (f *fakeBot) EditMessageText(_ context.Context, p adapter.EditMessageParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Edited = append(f.Edited, p.MessageID)
	return nil
}

func (f *fakeBot) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// ---- locker ----

type mockLocker struct {
	mu     sync.Mutex
	locked map[string]string
	denied bool
}

func newMockLocker() *mockLocker { return &mockLocker{locked: map[string]string{}} }

func (l *mockLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.denied {
		return "", domain.ErrBroadcastInProgress
	}
	if _, held := l.locked[key]; held {
		return "", domain.ErrBroadcastInProgress
	}
	l.locked[key] = "token"
	return "token", nil
}

func (l *mockLocker) Unlock(_ context.Context, key, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locked, key)
	return nil
}
