package store

import (
	"testing"
	"time"

	"chatsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(id, senderID string, createdAt time.Time) models.Message {
	return models.Message{ID: id, SenderID: senderID, CreatedAt: createdAt}
}

func TestReplaceAllSortsAscendingByCreatedAt(t *testing.T) {
	s := New()
	base := time.Now().UTC()

	s.ReplaceAll([]models.Message{
		msg("m3", "u1", base.Add(3*time.Second)),
		msg("m1", "u1", base.Add(1*time.Second)),
		msg("m2", "u1", base.Add(2*time.Second)),
	})

	visible := s.Visible()
	require.Len(t, visible, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{visible[0].ID, visible[1].ID, visible[2].ID})
}

func TestReplaceAllReturnsNewlyAppendedMessages(t *testing.T) {
	s := New()
	base := time.Now().UTC()

	s.ReplaceAll([]models.Message{
		msg("m1", "u1", base),
	})

	appended := s.ReplaceAll([]models.Message{
		msg("m1", "u1", base),
		msg("m2", "u2", base.Add(time.Second)),
	})

	require.Len(t, appended, 1)
	assert.Equal(t, "m2", appended[0].ID)
}

func TestUpsertOneDedupesById(t *testing.T) {
	s := New()
	base := time.Now().UTC()

	// Optimistic local echo lands first, the server's confirmed row second.
	require.True(t, s.UpsertOne(msg("m1", "self", base)))
	assert.False(t, s.UpsertOne(msg("m1", "self", base)))

	assert.Equal(t, 1, s.Len())
}

func TestUpsertOneInsertsInSortedPosition(t *testing.T) {
	s := New()
	base := time.Now().UTC()

	s.ReplaceAll([]models.Message{
		msg("m1", "u1", base),
		msg("m3", "u1", base.Add(2*time.Second)),
	})

	require.True(t, s.UpsertOne(msg("m2", "u1", base.Add(time.Second))))

	assert.Equal(t, []string{"m1", "m2", "m3"}, s.IDs())
}

func TestUpdateOnePreservesCreatedAtAndPosition(t *testing.T) {
	s := New()
	base := time.Now().UTC()

	s.ReplaceAll([]models.Message{
		msg("m1", "u1", base),
		msg("m2", "u1", base.Add(time.Second)),
	})

	edited := msg("m1", "u1", base.Add(time.Hour))
	edited.IsEdited = true
	require.True(t, s.UpdateOne(edited))

	got, ok := s.Get("m1")
	require.True(t, ok)
	assert.True(t, got.IsEdited)
	assert.Equal(t, base, got.CreatedAt)
	assert.Equal(t, []string{"m1", "m2"}, s.IDs())
}

func TestUpdateOneIgnoresUnknownId(t *testing.T) {
	s := New()
	assert.False(t, s.UpdateOne(msg("ghost", "u1", time.Now())))
}

func TestMarkDeletedHidesButRetainsForDedupe(t *testing.T) {
	s := New()
	base := time.Now().UTC()

	s.ReplaceAll([]models.Message{
		msg("m1", "u1", base),
		msg("m2", "u1", base.Add(time.Second)),
	})

	require.True(t, s.MarkDeleted("m1"))

	visible := s.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "m2", visible[0].ID)

	// A late echo of the deleted message must still dedupe.
	assert.False(t, s.UpsertOne(msg("m1", "u1", base)))
	assert.Equal(t, 2, s.Len())
}

func TestLatestFromSkipsDeleted(t *testing.T) {
	s := New()
	base := time.Now().UTC()

	s.ReplaceAll([]models.Message{
		msg("m1", "self", base),
		msg("m2", "other", base.Add(time.Second)),
		msg("m3", "self", base.Add(2*time.Second)),
	})
	s.MarkDeleted("m3")

	latest, ok := s.LatestFrom("self")
	require.True(t, ok)
	assert.Equal(t, "m1", latest.ID)

	_, ok = s.LatestFrom("nobody")
	assert.False(t, ok)
}

func TestAppendListenerFiresOnlyForNewMessages(t *testing.T) {
	s := New()
	base := time.Now().UTC()

	var appended []string
	s.SetAppendListener(func(m models.Message) {
		appended = append(appended, m.ID)
	})

	s.UpsertOne(msg("m1", "u1", base))
	s.UpsertOne(msg("m1", "u1", base))
	s.ReplaceAll([]models.Message{
		msg("m1", "u1", base),
		msg("m2", "u2", base.Add(time.Second)),
	})

	assert.Equal(t, []string{"m1", "m2"}, appended)
}

func TestVisibleReturnsACopy(t *testing.T) {
	s := New()
	base := time.Now().UTC()
	s.ReplaceAll([]models.Message{msg("m1", "u1", base)})

	visible := s.Visible()
	visible[0].ID = "tampered"

	got, ok := s.Get("m1")
	require.True(t, ok)
	assert.Equal(t, "m1", got.ID)
}
