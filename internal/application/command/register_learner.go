package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/learner"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER LEARNER COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RegisterLearnerCommand contains the data to register a new learner.
type RegisterLearnerCommand struct {
	// Email - login email, unique across learners.
	Email string

	// Name - display name.
	Name string

	// Password - plaintext password; stored only as a bcrypt hash.
	Password string

	// Grade / Stream - academic classification.
	Grade  learner.Grade
	Stream learner.Stream
}

// Validate validates the command.
func (c RegisterLearnerCommand) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return shared.NewDomainError("learner", "Register", shared.ErrEmptyValue, "email is required")
	}
	if len(c.Password) < 6 {
		return shared.NewDomainError("learner", "Register", shared.ErrValidation, "password must be at least 6 characters")
	}
	return nil
}

// RegisterLearnerResult contains the result of a registration.
type RegisterLearnerResult struct {
	// LearnerID - the new learner's ID.
	LearnerID shared.LearnerID

	// Learner - the created entity.
	Learner *learner.Learner
}

// RegisterLearnerHandler handles the RegisterLearnerCommand.
type RegisterLearnerHandler struct {
	learnerRepo learner.Repository
	bus         shared.EventBus
	log         *logger.Logger
}

// NewRegisterLearnerHandler creates a new RegisterLearnerHandler.
func NewRegisterLearnerHandler(learnerRepo learner.Repository, bus shared.EventBus, log *logger.Logger) *RegisterLearnerHandler {
	return &RegisterLearnerHandler{
		learnerRepo: learnerRepo,
		bus:         bus,
		log:         log.With(logger.Component("register_learner")),
	}
}

// Handle executes the registration.
func (h *RegisterLearnerHandler) Handle(ctx context.Context, cmd RegisterLearnerCommand) (*RegisterLearnerResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("register_learner: validation failed: %w", err)
	}

	id := shared.LearnerID(uuid.New().String())
	now := time.Now().UTC()

	l, err := learner.NewLearner(id, cmd.Email, cmd.Name, cmd.Grade, cmd.Stream, now)
	if err != nil {
		return nil, fmt.Errorf("register_learner: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("register_learner: hash password: %w", err)
	}
	l.PasswordHash = string(hash)

	if err := h.learnerRepo.Create(ctx, l); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, shared.ErrLearnerAlreadyExists
		}
		return nil, fmt.Errorf("register_learner: persist: %w", err)
	}

	_ = h.bus.Publish(shared.NewLearnerRegisteredEvent(id.String(), l.Email, l.Name))
	h.log.Info("learner registered",
		logger.LearnerID(id.String()), logger.Email(l.Email))

	return &RegisterLearnerResult{LearnerID: id, Learner: l}, nil
}
