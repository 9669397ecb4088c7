package http

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/application/command"
	"github.com/vidya-hub/vidya-progress-hub/internal/application/event"
	"github.com/vidya-hub/vidya-progress-hub/internal/application/query"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/learner"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/logger"
	"github.com/vidya-hub/vidya-progress-hub/pkg/timeutil"
)

// maxBodyBytes bounds request body reads.
const maxBodyBytes = 1 << 20 // 1 MB

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Vidya Progress Hub API",
		"version":     "v1",
		"description": "Progress tracking and gamification engine for the Vidya learning platform",
		"endpoints": map[string]string{
			"health":      "/health",
			"progress":    "/api/progress/user/{id}",
			"leaderboard": "/api/leaderboard",
			"challenge":   "/api/challenge/{userID}",
			"badges":      "/api/badges/{userID}",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics handles the metrics endpoint.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS WRITE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// progressResponse is the outward shape of an applied progress mutation.
type progressResponse struct {
	ContentID            string     `json:"content_id"`
	Status               string     `json:"status"`
	CompletionPercentage int        `json:"completion_percentage"`
	TimeSpentMinutes     int        `json:"time_spent_minutes"`
	Score                *int       `json:"score,omitempty"`
	XPEarned             int        `json:"xp_earned"`
	CompletedNow         bool       `json:"completed_now"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

// handleProgressUpdate handles POST /api/progress/update. The body is a raw
// activity event; the normalizer decides whether it is acceptable.
func (s *Server) handleProgressUpdate(w http.ResponseWriter, r *http.Request) {
	var raw event.RawEvent
	if !s.decodeBody(w, r, &raw) {
		return
	}
	s.applyRawEvent(w, r, raw)
}

// handleProgressComplete handles POST /api/progress/complete. It is a
// convenience route for completion submissions: an absent kind defaults to
// course_completed, an absent kind with a score defaults to quiz_completed.
func (s *Server) handleProgressComplete(w http.ResponseWriter, r *http.Request) {
	var raw event.RawEvent
	if !s.decodeBody(w, r, &raw) {
		return
	}

	if raw.Kind == "" {
		if raw.Score != nil {
			raw.Kind = string(event.KindQuizCompleted)
		} else {
			raw.Kind = string(event.KindCourseCompleted)
		}
	}

	s.applyRawEvent(w, r, raw)
}

// applyRawEvent runs the normalize-then-apply pipeline shared by the two
// progress write routes.
func (s *Server) applyRawEvent(w http.ResponseWriter, r *http.Request, raw event.RawEvent) {
	ev, err := s.deps.Normalizer.Normalize(raw)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	result, err := s.deps.ApplyProgressHandler.Handle(r.Context(), command.ApplyProgressCommand{Event: ev})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	entry := result.Entry
	if entry == nil {
		// A bare session start touches counters and challenges only.
		writeJSON(w, http.StatusOK, map[string]string{"status": "session_recorded"})
		return
	}

	resp := progressResponse{
		ContentID:            entry.ContentID.String(),
		Status:               string(entry.Status),
		CompletionPercentage: int(entry.CompletionPercentage),
		TimeSpentMinutes:     entry.TimeSpentMinutes,
		XPEarned:             entry.XPEarned,
		CompletedNow:         result.Outcome.CompletedNow,
		CompletedAt:          entry.CompletedAt,
	}
	if entry.HasScore {
		score := entry.Score
		resp.Score = &score
	}

	writeJSON(w, http.StatusOK, resp)
}

// aiInteractionRequest is the body of POST /api/progress/ai-interaction.
type aiInteractionRequest struct {
	UserID      string                 `json:"user_id"`
	SessionID   string                 `json:"session_id"`
	Topic       string                 `json:"topic"`
	Subject     string                 `json:"subject,omitempty"`
	Difficulty  string                 `json:"difficulty,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	GeneratedAt time.Time              `json:"generated_at,omitempty"`
}

// handleAIInteraction handles POST /api/progress/ai-interaction. Tracking is
// asynchronous: the request is acknowledged as soon as it is queued.
func (s *Server) handleAIInteraction(w http.ResponseWriter, r *http.Request) {
	var req aiInteractionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := command.TrackAIGenerationCommand{
		LearnerID:   shared.LearnerID(req.UserID),
		SessionID:   req.SessionID,
		Topic:       req.Topic,
		Subject:     req.Subject,
		Difficulty:  req.Difficulty,
		Metadata:    req.Metadata,
		GeneratedAt: req.GeneratedAt,
	}

	if err := s.deps.AITracker.Enqueue(cmd); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "queued",
		"session_id": req.SessionID,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// READ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProgress handles GET /api/progress/user/{id}
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("id")
	if learnerID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Learner ID is required")
		return
	}

	result, err := s.deps.GetProgressHandler.Handle(r.Context(), query.GetProgressQuery{
		LearnerID: shared.LearnerID(learnerID),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetLeaderboard handles GET /api/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := query.GetLeaderboardQuery{
		Limit:       getQueryParamInt(r, "limit", 20),
		Offset:      getQueryParamInt(r, "offset", 0),
		RequesterID: shared.LearnerID(getQueryParam(r, "requester_id", "")),
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetDailyChallenge handles GET /api/challenge/{userID}
func (s *Server) handleGetDailyChallenge(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("userID")
	if learnerID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Learner ID is required")
		return
	}

	q := query.GetDailyChallengeQuery{
		LearnerID: shared.LearnerID(learnerID),
	}

	// Optional day override, mainly for clients in odd timezones.
	if day := getQueryParam(r, "day", ""); day != "" {
		parsed, err := time.Parse(timeutil.DayFormat, day)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "day must be formatted as YYYY-MM-DD")
			return
		}
		q.Day = parsed
	}

	result, err := s.deps.GetDailyChallengeHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetBadges handles GET /api/badges/{userID}
func (s *Server) handleGetBadges(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("userID")
	if learnerID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Learner ID is required")
		return
	}

	result, err := s.deps.GetBadgesHandler.Handle(r.Context(), query.GetBadgesQuery{
		LearnerID:  shared.LearnerID(learnerID),
		EarnedOnly: getQueryParamBool(r, "earned_only"),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER MANAGEMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// registerRequest is the body of POST /api/users.
type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Grade    string `json:"grade,omitempty"`
	Stream   string `json:"stream,omitempty"`
}

// handleRegisterLearner handles POST /api/users
func (s *Server) handleRegisterLearner(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.RegisterLearnerHandler.Handle(r.Context(), command.RegisterLearnerCommand{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Grade:    learnerGrade(req.Grade),
		Stream:   learnerStream(req.Stream),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"learner_id": result.LearnerID.String(),
		"email":      result.Learner.Email,
		"name":       result.Learner.Name,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes a JSON request body into dest, writing the error
// response itself when decoding fails.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.log.Error("failed to read request body", logger.Err(err))
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return false
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, dest); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return false
	}

	return true
}

// writeDomainError maps a domain error to an HTTP status.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsAlreadyExists(err):
		writeJSONError(w, http.StatusConflict, "already_exists", err.Error())
	case shared.IsConflict(err):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	default:
		s.log.Error("request failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// learnerGrade parses a grade string, defaulting to "all".
func learnerGrade(s string) learner.Grade {
	if s == "" {
		return learner.GradeAll
	}
	return learner.Grade(s)
}

// learnerStream parses a stream string, defaulting to "all".
func learnerStream(s string) learner.Stream {
	if s == "" {
		return learner.StreamAll
	}
	return learner.Stream(s)
}
