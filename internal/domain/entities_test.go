package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContentItem(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		title         string
		baseStability float64
		difficulty    float64
		wantErr       error
	}{
		{name: "valid", title: "Photosynthesis", baseStability: 2, difficulty: 0.5},
		{name: "empty title", title: "", baseStability: 2, difficulty: 0.5, wantErr: ErrContentItemTitleEmpty},
		{name: "zero stability", title: "x", baseStability: 0, difficulty: 0.5, wantErr: ErrOutOfRange},
		{name: "difficulty above one", title: "x", baseStability: 1, difficulty: 1.2, wantErr: ErrOutOfRange},
		{name: "negative difficulty", title: "x", baseStability: 1, difficulty: -0.1, wantErr: ErrOutOfRange},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			item, err := NewContentItem(tc.title, "", tc.baseStability, tc.difficulty)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, item)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, item.ID)
			assert.False(t, item.CreatedAt.IsZero())
		})
	}
}

func TestNewUserProfile(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	profile, err := NewUserProfile(userID, MemoryProfilePoor, 0.65, nil)
	require.NoError(t, err)
	assert.Equal(t, userID, profile.ID)
	assert.Equal(t, 0.4, profile.MemoryFactor)
	assert.Nil(t, profile.Beta)

	_, err = NewUserProfile(uuid.Nil, MemoryProfileGood, 0.5, nil)
	assert.ErrorIs(t, err, ErrUserProfileIDEmpty)

	_, err = NewUserProfile(userID, 0, 0.5, nil)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = NewUserProfile(userID, MemoryProfileTerrible, 1.5, nil)
	assert.ErrorIs(t, err, ErrOutOfRange)

	inf := math.Inf(1)
	_, err = NewUserProfile(userID, MemoryProfileGood, 0.5, &inf)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestUserProfileBetaOr(t *testing.T) {
	t.Parallel()

	zero := 0.0
	tests := []struct {
		name string
		beta *float64
		want float64
	}{
		{name: "unset uses fallback", beta: nil, want: 0.5},
		{name: "explicit zero is kept", beta: &zero, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := UserProfile{Beta: tc.beta}
			assert.Equal(t, tc.want, p.BetaOr(0.5))
		})
	}
}

func TestModelCoefficientsValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultCoefficients().Validate())

	bad := DefaultCoefficients()
	bad.Alpha3 = math.NaN()
	assert.ErrorIs(t, bad.Validate(), ErrOutOfRange)

	bad = DefaultCoefficients()
	bad.Beta = math.Inf(1)
	assert.ErrorIs(t, bad.Validate(), ErrOutOfRange)
}

func TestNewReviewEvent(t *testing.T) {
	t.Parallel()

	event, err := NewReviewEvent(uuid.New(), uuid.New(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, event.Correctness)
	assert.True(t, event.Correct())
	assert.Equal(t, 1, event.RepsOrDefault())
	assert.Zero(t, event.ElapsedSeconds())

	event, err = NewReviewEvent(uuid.New(), uuid.New(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, event.Correctness)

	_, err = NewReviewEvent(uuid.Nil, uuid.New(), true)
	assert.ErrorIs(t, err, ErrReviewEventUserIDEmpty)

	_, err = NewReviewEvent(uuid.New(), uuid.Nil, true)
	assert.ErrorIs(t, err, ErrReviewEventItemIDEmpty)

	invalid := &ReviewEvent{UserID: uuid.New(), ItemID: uuid.New(), Correctness: 2}
	assert.ErrorIs(t, invalid.Validate(), ErrInvalidCorrectness)
}

func TestReviewEventDefaults(t *testing.T) {
	t.Parallel()

	zero := 0
	five := 5
	elapsed := 3600.0

	event := &ReviewEvent{Reps: &zero}
	assert.Equal(t, 1, event.RepsOrDefault(), "non-positive reps count as one")

	event = &ReviewEvent{Reps: &five, TimeSinceLastReviewSec: &elapsed}
	assert.Equal(t, 5, event.RepsOrDefault())
	assert.Equal(t, 3600.0, event.ElapsedSeconds())
}

func TestNewUserLambda(t *testing.T) {
	t.Parallel()

	ul, err := NewUserLambda(uuid.New(), 0.15, "")
	require.NoError(t, err)
	assert.Equal(t, LambdaSourceOnline, ul.Source)

	_, err = NewUserLambda(uuid.New(), 0.15, "manual")
	assert.ErrorIs(t, err, ErrInvalidLambdaSource)

	_, err = NewUserLambda(uuid.New(), math.NaN(), LambdaSourceWorker)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = NewUserLambda(uuid.Nil, 0.15, LambdaSourceOnline)
	assert.ErrorIs(t, err, ErrUserLambdaUserIDEmpty)
	assert.NotErrorIs(t, err, ErrUserProfileIDEmpty)

	_, err = NewUserLambda(uuid.New(), 0, LambdaSourceAutoAdjust)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestNewReviewVariant(t *testing.T) {
	t.Parallel()

	itemID := uuid.New()
	content := json.RawMessage(`{"question":"Q?","choices":["a","b"],"answerIndex":0}`)

	variant, err := NewReviewVariant(itemID, nil, VariantTypeAI, content, VariantMetadata{GeneratedBy: "gemini"})
	require.NoError(t, err)
	assert.NotNil(t, variant.LastUsedBy)

	_, ok := variant.LastUsed(uuid.New())
	assert.False(t, ok)

	_, err = NewReviewVariant(itemID, nil, "robot", content, VariantMetadata{})
	assert.ErrorIs(t, err, ErrInvalidVariantType)

	_, err = NewReviewVariant(itemID, nil, VariantTypeHuman, json.RawMessage(`{bad`), VariantMetadata{})
	assert.True(t, errors.Is(err, ErrInvalidVariantContent))

	_, err = NewReviewVariant(uuid.Nil, nil, VariantTypeHuman, content, VariantMetadata{})
	assert.ErrorIs(t, err, ErrVariantItemIDEmpty)
}

func TestReviewVariantJSONKeepsLastUsedBy(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	usedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	variant := ReviewVariant{
		ID:         uuid.New(),
		ItemID:     uuid.New(),
		Type:       VariantTypeHuman,
		Content:    json.RawMessage(`{"q":1}`),
		LastUsedBy: map[uuid.UUID]time.Time{userID: usedAt},
	}

	data, err := json.Marshal(variant)
	require.NoError(t, err)

	var decoded ReviewVariant
	require.NoError(t, json.Unmarshal(data, &decoded))

	at, ok := decoded.LastUsed(userID)
	require.True(t, ok)
	assert.True(t, usedAt.Equal(at))
}
