package usecases

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/longregen/refinery/internal/domain"
	"github.com/longregen/refinery/internal/domain/models"
	"github.com/longregen/refinery/internal/prompt"
)

// Mock implementations shared across the use case tests.

type invokerCall struct {
	prompt string
	label  string
}

// mockInvoker records every call and answers through fn.
type mockInvoker struct {
	mu    sync.Mutex
	calls []invokerCall
	fn    func(prompt, label string) (string, error)
}

func (m *mockInvoker) Invoke(_ context.Context, prompt, label string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, invokerCall{prompt: prompt, label: label})
	m.mu.Unlock()
	return m.fn(prompt, label)
}

func (m *mockInvoker) labels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	labels := make([]string, len(m.calls))
	for i, c := range m.calls {
		labels[i] = c.label
	}
	return labels
}

func (m *mockInvoker) promptFor(label string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c.label == label {
			return c.prompt
		}
	}
	return ""
}

// mockEvaluator hands out scripted overall scores in call order.
type mockEvaluator struct {
	mu     sync.Mutex
	scores []float64
	calls  int
}

func (m *mockEvaluator) Evaluate(_ context.Context, _, _ string, iteration int) *models.Evaluation {
	m.mu.Lock()
	defer m.mu.Unlock()
	score := float64(models.NeutralScore)
	if m.calls < len(m.scores) {
		score = m.scores[m.calls]
	}
	m.calls++
	eval := &models.Evaluation{
		Scores:       map[string]int{},
		OverallScore: score,
		Feedback:     fmt.Sprintf("feedback for iteration %d", iteration),
	}
	eval.Normalize()
	return eval
}

// mockIDGenerator mints predictable ids.
type mockIDGenerator struct {
	mu sync.Mutex
	n  int
}

func (m *mockIDGenerator) NewSessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	return fmt.Sprintf("ses_test%d", m.n)
}

// recordingObserver captures the event stream for assertions.
type recordingObserver struct {
	mu         sync.Mutex
	started    []int
	completed  []int
	failed     []int
	doneCalled bool
	bestScore  float64
}

func (o *recordingObserver) OnIterationStart(_ string, iteration, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, iteration)
}

func (o *recordingObserver) OnIterationComplete(_ string, iteration int, _ float64, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed = append(o.completed, iteration)
}

func (o *recordingObserver) OnIterationFailed(_ string, iteration int, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, iteration)
}

func (o *recordingObserver) OnSessionComplete(_ string, bestScore float64, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.doneCalled = true
	o.bestScore = bestScore
}

// mockSessionRepo is an in-memory session store.
type mockSessionRepo struct {
	mu      sync.Mutex
	store   map[string]*models.Session
	order   []string
	saveErr error
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{store: make(map[string]*models.Session)}
}

func (m *mockSessionRepo) Save(_ context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.store[session.ID]; !ok {
		m.order = append(m.order, session.ID)
	}
	m.store[session.ID] = session
	return nil
}

func (m *mockSessionRepo) GetByID(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

func (m *mockSessionRepo) List(_ context.Context, limit, offset int) ([]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Session
	for i := offset; i < len(m.order) && (limit <= 0 || len(out) < limit); i++ {
		out = append(out, m.store[m.order[i]])
	}
	return out, nil
}

func (m *mockSessionRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockSessionRepo) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

// mockSessionRunner substitutes the full session loop in batch tests.
type mockSessionRunner struct {
	mu      sync.Mutex
	prompts []string
	fn      func(input RunSessionInput) (*models.Session, error)
}

func (m *mockSessionRunner) Execute(_ context.Context, input RunSessionInput) (*models.Session, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, input.Prompt)
	m.mu.Unlock()
	return m.fn(input)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestComposer(t *testing.T) *prompt.Composer {
	t.Helper()
	composer, err := prompt.NewComposer(prompt.DefaultStore(), quietLogger())
	require.NoError(t, err)
	return composer
}
