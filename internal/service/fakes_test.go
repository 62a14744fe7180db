package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/nsvirk/profileapi/internal/models"
	"github.com/nsvirk/profileapi/internal/repository"
)

type memUsers struct {
	mu      sync.Mutex
	byID    map[string]*models.UserModel
	readErr error
	saveErr error
}

func newMemUsers(users ...*models.UserModel) *memUsers {
	m := &memUsers{byID: map[string]*models.UserModel{}}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) CreateUser(_ context.Context, user *models.UserModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	c := *user
	m.byID[user.ID] = &c
	return nil
}

func (m *memUsers) ReadUser(_ context.Context, id string) (*models.UserModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *memUsers) ReadUserByEmail(_ context.Context, email string) (*models.UserModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.byID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) SearchUsers(_ context.Context, term string, limit int) ([]models.UserModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	var out []models.UserModel
	for _, u := range m.byID {
		if strings.Contains(strings.ToLower(u.FullName()+" "+u.Email), strings.ToLower(term)) && len(out) < limit {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUsers) UpdateUser(_ context.Context, user *models.UserModel) (*models.UserModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	if _, ok := m.byID[user.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	c := *user
	m.byID[user.ID] = &c
	out := c
	return &out, nil
}

func (m *memUsers) ToggleBlockedUser(_ context.Context, id string, blocked bool) (*models.UserModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.Blocked = blocked
	c := *u
	return &c, nil
}

func (m *memUsers) get(id string) *models.UserModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

type memSessions struct {
	mu      sync.Mutex
	byToken map[string]*models.SessionModel
	err     error
}

func newMemSessions(sessions ...*models.SessionModel) *memSessions {
	m := &memSessions{byToken: map[string]*models.SessionModel{}}
	for _, s := range sessions {
		m.byToken[s.Token] = s
	}
	return m
}

func (m *memSessions) CreateSession(_ context.Context, session *models.SessionModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.byToken[session.Token] = session
	return nil
}

func (m *memSessions) ReadSession(_ context.Context, token string) (*models.SessionModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byToken[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func (m *memSessions) TouchSession(_ context.Context, token string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byToken[token]; ok {
		s.LastInteraction = at
	}
	return nil
}

func (m *memSessions) DeleteSession(_ context.Context, token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if _, ok := m.byToken[token]; !ok {
		return 0, nil
	}
	delete(m.byToken, token)
	return 1, nil
}

func (m *memSessions) DeleteUserSessions(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var tokens []string
	for token, s := range m.byToken {
		if s.User == userID {
			tokens = append(tokens, token)
			delete(m.byToken, token)
		}
	}
	return tokens, nil
}

func (m *memSessions) PurgeExpiredSessions(_ context.Context, before time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var tokens []string
	for token, s := range m.byToken {
		if s.LastInteraction.Before(before) {
			tokens = append(tokens, token)
			delete(m.byToken, token)
		}
	}
	return tokens, nil
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byToken)
}

type sentMail struct {
	kind  string
	email string
	code  string
}

type fakeMailer struct {
	sent chan sentMail
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{sent: make(chan sentMail, 4)}
}

func (f *fakeMailer) SendWelcome(_ context.Context, user *models.UserModel, code string) error {
	f.sent <- sentMail{kind: "welcome", email: user.Email, code: code}
	return nil
}

func (f *fakeMailer) SendResetPassword(_ context.Context, user *models.UserModel, code string) error {
	f.sent <- sentMail{kind: "reset", email: user.Email, code: code}
	return nil
}

type auditRecord struct {
	event   string
	userID  string
	actorID string
}

type fakeAuditor struct {
	mu      sync.Mutex
	records []auditRecord
}

func (f *fakeAuditor) Record(_ context.Context, event, userID, actorID string, _ map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, auditRecord{event: event, userID: userID, actorID: actorID})
}

func (f *fakeAuditor) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.records {
		out = append(out, r.event)
	}
	return out
}

type memAvatars struct {
	mu      sync.Mutex
	objects map[string]string
	removed []string
	saveErr error
	next    int
}

func newMemAvatars() *memAvatars {
	return &memAvatars{objects: map[string]string{}}
}

func (m *memAvatars) Save(_ context.Context, userID, _ string, r io.Reader, _ int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return "", m.saveErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.next++
	url := "http://cdn.test/avatars/" + userID + "-" + string(rune('0'+m.next)) + ".png"
	m.objects[url] = string(b)
	return url, nil
}

func (m *memAvatars) Remove(_ context.Context, userID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !strings.HasPrefix(url, "http://cdn.test/avatars/"+userID+"-") {
		return nil
	}
	delete(m.objects, url)
	m.removed = append(m.removed, url)
	return nil
}

func (m *memAvatars) Owns(url string) bool {
	return strings.HasPrefix(url, "http://cdn.test/")
}
