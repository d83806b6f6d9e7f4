package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/longregen/refinery/internal/application/usecases"
	"github.com/longregen/refinery/internal/domain"
	"github.com/longregen/refinery/internal/domain/models"
)

// setURLParam adds a URL parameter to the request context (chi router style)
func setURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func finishedSession(id string) *models.Session {
	s := models.NewSession(id, "design a card game")
	s.RecordIteration(models.Iteration{
		Index:    1,
		Solution: "a deck-builder about bees",
		Evaluation: models.Evaluation{
			Scores:       map[string]int{"Clarity and specificity": 7},
			OverallScore: 7,
			Feedback:     "solid",
		},
		Timestamp:       time.Now(),
		DurationSeconds: 0.5,
	})
	s.Finish()
	return s
}

type stubIDGenerator struct {
	id string
}

func (s *stubIDGenerator) NewSessionID() string { return s.id }

// mockLauncher hands the received input to the test over a channel so
// asynchronous runs can be observed.
type mockLauncher struct {
	inputs chan usecases.RunSessionInput
	err    error
}

func newMockLauncher() *mockLauncher {
	return &mockLauncher{inputs: make(chan usecases.RunSessionInput, 4)}
}

func (m *mockLauncher) Execute(ctx context.Context, input usecases.RunSessionInput) (*models.Session, error) {
	m.inputs <- input
	if m.err != nil {
		return nil, m.err
	}
	s := models.NewSession(input.SessionID, input.Prompt)
	s.Finish()
	return s, nil
}

type mockSaver struct {
	saved chan *models.Session
	err   error
}

func newMockSaver() *mockSaver {
	return &mockSaver{saved: make(chan *models.Session, 4)}
}

func (m *mockSaver) Save(ctx context.Context, session *models.Session) error {
	if m.err != nil {
		return m.err
	}
	m.saved <- session
	return nil
}

type mockSessionStore struct {
	sessions  map[string]*models.Session
	order     []string
	getErr    error
	listErr   error
	deleteErr error
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]*models.Session)}
}

func (m *mockSessionStore) add(s *models.Session) {
	m.sessions[s.ID] = s
	m.order = append(m.order, s.ID)
}

func (m *mockSessionStore) Save(ctx context.Context, s *models.Session) error {
	m.add(s)
	return nil
}

func (m *mockSessionStore) GetByID(ctx context.Context, id string) (*models.Session, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

func (m *mockSessionStore) List(ctx context.Context, limit, offset int) ([]*models.Session, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*models.Session, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sessions[id])
	}
	return out, nil
}

func (m *mockSessionStore) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

type mockFinder struct {
	canSearch bool
	sessions  []*models.Session
	err       error
	gotQuery  string
	gotLimit  int
}

func (m *mockFinder) FindSimilar(ctx context.Context, query string, limit int) ([]*models.Session, error) {
	m.gotQuery = query
	m.gotLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.sessions, nil
}

func (m *mockFinder) CanSearch() bool { return m.canSearch }
