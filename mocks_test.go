package auth_test

import (
	"context"
	"fmt"
	"sync"

	auth "github.com/goliatone/go-jwt-auth"
	"github.com/stretchr/testify/mock"
)

// MockUserRepository implements auth.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindBy(ctx context.Context, field, value string) (*auth.User, error) {
	args := m.Called(ctx, field, value)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *auth.User, columns []string, guards ...auth.Guard) error {
	args := m.Called(ctx, user, columns, guards)
	return args.Error(0)
}

// MockSessionTokenRepository implements auth.SessionTokenRepository
type MockSessionTokenRepository struct {
	mock.Mock
}

func (m *MockSessionTokenRepository) PushAuthToken(ctx context.Context, userID, token string, max int) ([]string, int, error) {
	args := m.Called(ctx, userID, token, max)
	tokens, _ := args.Get(0).([]string)
	return tokens, args.Int(1), args.Error(2)
}

func (m *MockSessionTokenRepository) AuthTokens(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	tokens, _ := args.Get(0).([]string)
	return tokens, args.Error(1)
}

func (m *MockSessionTokenRepository) RemoveAuthToken(ctx context.Context, userID, token string) error {
	return m.Called(ctx, userID, token).Error(0)
}

func (m *MockSessionTokenRepository) ClearAuthTokens(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

// recordingMailer keeps the last token sent per kind
type recordingMailer struct {
	mu    sync.Mutex
	sent  map[auth.TokenKind]string
	count int
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{sent: map[auth.TokenKind]string{}}
}

func (m *recordingMailer) Send(_ context.Context, kind auth.TokenKind, _ *auth.User, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[kind] = token
	m.count++
	return nil
}

func (m *recordingMailer) last(kind auth.TokenKind) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[kind]
}

func (m *recordingMailer) deliveries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// recordingSink collects activity events
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// recordingMetrics counts calls per label
type recordingMetrics struct {
	mu       sync.Mutex
	evicted  int
	revoked  int
	auth     map[string]int
	lifecycle map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{auth: map[string]int{}, lifecycle: map[string]int{}}
}

func (m *recordingMetrics) SessionIssued(evicted int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evicted += evicted
}

func (m *recordingMetrics) SessionsRevoked() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked++
}

func (m *recordingMetrics) Authentication(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auth[outcome]++
}

func (m *recordingMetrics) Lifecycle(kind auth.TokenKind, action, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lifecycle[string(kind)+"/"+action+"/"+outcome]++
}

func (m *recordingMetrics) authCount(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auth[outcome]
}

func (m *recordingMetrics) lifecycleCount(kind auth.TokenKind, action, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lifecycle[string(kind)+"/"+action+"/"+outcome]
}

// captureLogger keeps formatted info lines
type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) Debug(string, ...any) {}
func (l *captureLogger) Warn(string, ...any)  {}
func (l *captureLogger) Error(string, ...any) {}

func (l *captureLogger) Info(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}
