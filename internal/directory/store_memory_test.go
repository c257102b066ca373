package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "lexguard/pkg/domain"
	"lexguard/pkg/sentinel"
)

func TestAttorneyIntakeAndStatus(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	attorney := Attorney{
		ID:        id.NewAttorneyID(),
		Name:      "Ada Counsel",
		Standing:  StandingGood,
		Active:    true,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Save(ctx, attorney))

	found, err := store.FindByID(ctx, attorney.ID)
	require.NoError(t, err)
	assert.Equal(t, attorney, found)
	assert.True(t, found.CanPractice())

	t.Run("unknown attorney is not found", func(t *testing.T) {
		_, err := store.FindByID(ctx, id.NewAttorneyID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("suspension blocks practice", func(t *testing.T) {
		require.NoError(t, store.SetStatus(ctx, attorney.ID, StandingSuspended, true))
		found, err := store.FindByID(ctx, attorney.ID)
		require.NoError(t, err)
		assert.False(t, found.CanPractice())
	})

	t.Run("status update on unknown attorney fails", func(t *testing.T) {
		err := store.SetStatus(ctx, id.NewAttorneyID(), StandingGood, true)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestRelationshipRepresents(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	rels := store.Relationships()

	attorneyID := id.NewAttorneyID()
	clientID := id.NewClientID()
	adverseID := id.NewClientID()

	require.NoError(t, rels.Save(ctx, Relationship{
		AttorneyID:     attorneyID,
		ClientID:       clientID,
		Matter:         "Acme v. Borealis",
		AdverseParties: []id.ClientID{adverseID},
		Active:         true,
		CreatedAt:      time.Now(),
	}))

	represents, err := rels.Represents(ctx, attorneyID, clientID)
	require.NoError(t, err)
	assert.True(t, represents)

	t.Run("adverse party is not represented", func(t *testing.T) {
		represents, err := rels.Represents(ctx, attorneyID, adverseID)
		require.NoError(t, err)
		assert.False(t, represents)
	})

	t.Run("inactive relationship does not count", func(t *testing.T) {
		otherClient := id.NewClientID()
		require.NoError(t, rels.Save(ctx, Relationship{
			AttorneyID: attorneyID,
			ClientID:   otherClient,
			Matter:     "closed matter",
			Active:     false,
			CreatedAt:  time.Now(),
		}))
		represents, err := rels.Represents(ctx, attorneyID, otherClient)
		require.NoError(t, err)
		assert.False(t, represents)
	})

	t.Run("list returns inactive relationships too", func(t *testing.T) {
		listed, err := rels.ListByAttorney(ctx, attorneyID)
		require.NoError(t, err)
		assert.Len(t, listed, 2)
	})
}
