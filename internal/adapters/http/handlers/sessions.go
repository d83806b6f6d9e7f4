package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/longregen/refinery/internal/adapters/http/dto"
	"github.com/longregen/refinery/internal/application/usecases"
	"github.com/longregen/refinery/internal/domain"
	"github.com/longregen/refinery/internal/domain/models"
	"github.com/longregen/refinery/internal/ports"
)

const (
	// MaxIterations caps the per-request iteration count so one call
	// cannot occupy the backend for hours.
	MaxIterations = 50

	DefaultListLimit = 50
)

// SessionLauncher runs one refinement session to completion.
// Implemented by usecases.RunSession.
type SessionLauncher interface {
	Execute(ctx context.Context, input usecases.RunSessionInput) (*models.Session, error)
}

// SessionSaver persists a finished session. Implemented by the session
// persister and by the bare stores.
type SessionSaver interface {
	Save(ctx context.Context, session *models.Session) error
}

// SimilarityFinder resolves prompt-similarity queries. Implemented by
// the session persister; nil when no embedding backend is configured.
type SimilarityFinder interface {
	FindSimilar(ctx context.Context, query string, limit int) ([]*models.Session, error)
	CanSearch() bool
}

type SessionsHandler struct {
	launcher          SessionLauncher
	store             ports.SessionRepository
	saver             SessionSaver
	finder            SimilarityFinder
	idGen             ports.IDGenerator
	defaultIterations int
}

func NewSessionsHandler(
	launcher SessionLauncher,
	store ports.SessionRepository,
	saver SessionSaver,
	finder SimilarityFinder,
	idGen ports.IDGenerator,
	defaultIterations int,
) *SessionsHandler {
	return &SessionsHandler{
		launcher:          launcher,
		store:             store,
		saver:             saver,
		finder:            finder,
		idGen:             idGen,
		defaultIterations: defaultIterations,
	}
}

// Create accepts a refinement request and acknowledges it with 202
// before the run starts. The caller gets the session id immediately and
// follows progress on the websocket feed; the finished session lands in
// the store.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[dto.CreateSessionRequest](r, w)
	if !ok {
		return
	}

	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		respondError(w, "validation_error", "Prompt is required", http.StatusBadRequest)
		return
	}

	iterations := req.Iterations
	if iterations == 0 {
		iterations = h.defaultIterations
	}
	if iterations < 1 || iterations > MaxIterations {
		respondError(w, "validation_error",
			fmt.Sprintf("Iterations must be between 1 and %d", MaxIterations), http.StatusBadRequest)
		return
	}

	sessionID := h.idGen.NewSessionID()

	go h.run(sessionID, req.Prompt, iterations)

	respondJSON(w, &dto.SessionAcceptedResponse{
		SessionID:  sessionID,
		Status:     "running",
		Iterations: iterations,
	}, http.StatusAccepted)
}

// run executes the loop detached from the request; the 202 has already
// been sent. No deadline: every model call is individually bounded, so
// the run terminates on its own.
func (h *SessionsHandler) run(sessionID, prompt string, iterations int) {
	ctx := context.Background()

	session, err := h.launcher.Execute(ctx, usecases.RunSessionInput{
		Prompt:     prompt,
		Iterations: iterations,
		SessionID:  sessionID,
	})
	if err != nil {
		log.Printf("Session %s failed: %v", sessionID, err)
		return
	}

	if err := h.saver.Save(ctx, session); err != nil {
		log.Printf("Failed to save session %s: %v", sessionID, err)
	}
}

func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", DefaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if query := strings.TrimSpace(r.URL.Query().Get("similar_to")); query != "" {
		h.listSimilar(w, r, query, limit)
		return
	}

	sessions, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		log.Printf("Failed to list sessions: %v", err)
		respondError(w, "internal_error", "Failed to list sessions", http.StatusInternalServerError)
		return
	}

	respondJSON(w, &dto.SessionListResponse{
		Sessions: dto.FromSessionModelList(sessions),
		Total:    len(sessions),
		Limit:    limit,
		Offset:   offset,
	}, http.StatusOK)
}

func (h *SessionsHandler) listSimilar(w http.ResponseWriter, r *http.Request, query string, limit int) {
	if h.finder == nil || !h.finder.CanSearch() {
		respondError(w, "search_unavailable",
			"Similarity search requires an embedding backend and a database store", http.StatusServiceUnavailable)
		return
	}

	sessions, err := h.finder.FindSimilar(r.Context(), query, limit)
	if err != nil {
		log.Printf("Similarity search failed: %v", err)
		respondError(w, "internal_error", "Similarity search failed", http.StatusInternalServerError)
		return
	}

	respondJSON(w, &dto.SessionListResponse{
		Sessions: dto.FromSessionModelList(sessions),
		Total:    len(sessions),
		Limit:    limit,
		Offset:   0,
	}, http.StatusOK)
}

// Get returns the full session record. MessagePack is served when the
// Accept header asks for it.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := validateURLParam(r, w, "id", "Session ID")
	if !ok {
		return
	}

	session, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			respondError(w, "not_found", "Session not found", http.StatusNotFound)
		} else {
			log.Printf("Failed to get session %s: %v", id, err)
			respondError(w, "internal_error", "Failed to retrieve session", http.StatusInternalServerError)
		}
		return
	}

	respondNegotiated(w, r, (&dto.SessionResponse{}).FromModel(session), http.StatusOK)
}

func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := validateURLParam(r, w, "id", "Session ID")
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			respondError(w, "not_found", "Session not found", http.StatusNotFound)
		} else {
			log.Printf("Failed to delete session %s: %v", id, err)
			respondError(w, "internal_error", "Failed to delete session", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
