package domain_test

import (
	"encoding/json"
	"testing"

	"alcyxob/neuralfit/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestLibraryEntryDecodesNumericIDs(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"entries": bson.A{
		bson.M{"id": int64(1718000000000), "name": "Chicken Bowl", "calories": 650},
		bson.M{"id": "ai_42", "name": "Oats", "calories": "350", "isAI": true},
		bson.M{"id": 7.0, "name": "Shake"},
	}})
	require.NoError(t, err)

	var doc struct {
		Entries []domain.LibraryEntry `bson:"entries"`
	}
	require.NoError(t, bson.Unmarshal(raw, &doc))
	require.Len(t, doc.Entries, 3)

	assert.Equal(t, domain.EntryID("1718000000000"), doc.Entries[0].ID)
	assert.Equal(t, 650.0, doc.Entries[0].Number("calories"))
	assert.Equal(t, domain.EntryID("ai_42"), doc.Entries[1].ID)
	assert.True(t, doc.Entries[1].IsAI)
	assert.Equal(t, 350.0, doc.Entries[1].Number("calories"))
	assert.Equal(t, domain.EntryID("7"), doc.Entries[2].ID)
}

func TestLibraryEntryJSONKeepsExtraFields(t *testing.T) {
	var e domain.LibraryEntry
	require.NoError(t, json.Unmarshal([]byte(`{"id": 17, "name": "Leg Day", "duration": "45 mins", "exercises": [{"name": "Squat"}]}`), &e))

	assert.Equal(t, domain.EntryID("17"), e.ID)
	assert.Equal(t, "Leg Day", e.Name)
	assert.Equal(t, "45 mins", e.Text("duration"))
	assert.Contains(t, e.Fields, "exercises")
	assert.NotContains(t, e.Fields, "id")

	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "17", "name": "Leg Day", "duration": "45 mins", "exercises": [{"name": "Squat"}]}`, string(out))
}

func TestNewLibraryEntryDropsReservedKeys(t *testing.T) {
	e := domain.NewLibraryEntry("m1", "Salad", false, map[string]interface{}{"id": "other", "isAI": true, "calories": 200})
	assert.Equal(t, domain.EntryID("m1"), e.ID)
	assert.False(t, e.IsAI)
	assert.Equal(t, bson.M{"calories": 200}, e.Fields)
}
