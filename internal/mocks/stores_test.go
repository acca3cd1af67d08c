package mocks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/store"
)

func TestReviewEventStoreLimitKeepsNewest(t *testing.T) {
	t.Parallel()

	userID, itemID := uuid.New(), uuid.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewReviewEventStore()
	for i := 0; i < 5; i++ {
		_, err := s.LogReviewEvent(context.Background(), &domain.ReviewEvent{
			UserID:    userID,
			ItemID:    itemID,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	got, err := s.GetReviewEventsForUserItem(context.Background(), userID, itemID, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, base.Add(3*time.Hour), got[0].Timestamp)
	assert.Equal(t, base.Add(4*time.Hour), got[1].Timestamp)
}

func TestVariantStoreMarkUsedIsolatesCopies(t *testing.T) {
	t.Parallel()

	v, err := domain.NewReviewVariant(uuid.New(), nil, domain.VariantTypeHuman, json.RawMessage(`{"q":1}`), domain.VariantMetadata{})
	require.NoError(t, err)
	s := NewVariantStore(v)

	userID := uuid.New()
	at := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkVariantUsed(context.Background(), v.ID, userID, at))

	got, err := s.GetReviewVariant(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, at, got.LastUsedBy[userID])
	assert.Empty(t, v.LastUsedBy)

	assert.ErrorIs(t, s.MarkVariantUsed(context.Background(), uuid.New(), userID, at), store.ErrVariantNotFound)
}
