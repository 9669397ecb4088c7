package command

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/learner"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/internal/infrastructure/persistence/memory"
	"github.com/vidya-hub/vidya-progress-hub/pkg/logger"
)

func newRegisterHandler() (*RegisterLearnerHandler, *memory.Store, *recordBus) {
	store := memory.NewStore()
	bus := &recordBus{}
	log := logger.New(logger.Options{Output: io.Discard})
	return NewRegisterLearnerHandler(store.Learners(), bus, log), store, bus
}

func TestRegisterLearner(t *testing.T) {
	h, store, bus := newRegisterHandler()
	ctx := context.Background()

	res, err := h.Handle(ctx, RegisterLearnerCommand{
		Email:    "Asha@Example.com",
		Name:     "Asha",
		Password: "secret123",
		Grade:    learner.Grade11th,
		Stream:   learner.StreamScience,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.LearnerID)
	assert.Equal(t, "asha@example.com", res.Learner.Email)
	assert.Equal(t, 1, bus.countType(shared.EventLearnerRegistered))

	stored, err := store.Learners().GetByID(ctx, res.LearnerID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret123")))
	assert.NotEqual(t, "secret123", stored.PasswordHash)
}

func TestRegisterLearner_DuplicateEmail(t *testing.T) {
	h, _, bus := newRegisterHandler()
	ctx := context.Background()

	cmd := RegisterLearnerCommand{
		Email: "a@b.co", Name: "A", Password: "secret123",
		Grade: learner.GradeAll, Stream: learner.StreamAll,
	}
	_, err := h.Handle(ctx, cmd)
	require.NoError(t, err)

	_, err = h.Handle(ctx, cmd)
	assert.True(t, shared.IsAlreadyExists(err))

	// The rejected duplicate publishes nothing.
	assert.Equal(t, 1, bus.countType(shared.EventLearnerRegistered))
}

func TestRegisterLearner_Validation(t *testing.T) {
	h, _, _ := newRegisterHandler()
	ctx := context.Background()

	_, err := h.Handle(ctx, RegisterLearnerCommand{Name: "A", Password: "secret123"})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, RegisterLearnerCommand{Email: "a@b.co", Name: "A", Password: "short"})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, RegisterLearnerCommand{
		Email: "a@b.co", Name: "A", Password: "secret123",
		Grade: learner.Grade("13th"), Stream: learner.StreamAll,
	})
	assert.ErrorIs(t, err, shared.ErrInvalidGrade)
}
