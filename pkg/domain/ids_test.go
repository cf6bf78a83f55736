package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "stride/pkg/domain-errors"
)

func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseAthleteID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseAthleteID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseAthleteID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseAthleteID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, AthleteID(validUUID), id)
	})
}

// TestTypeDistinction: if this compiles, athlete and client IDs stay distinct types.
func TestTypeDistinction(t *testing.T) {
	athleteID := NewAthleteID()
	clientID := NewClientID()

	// var _ AthleteID = clientID   // compile error
	// var _ ClientID = athleteID   // compile error

	assert.NotEqual(t, uuid.UUID(athleteID), uuid.UUID(clientID))
}

func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE athletes;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Unicode zero-width space", "550e8400\u200B-e29b-41d4-a716-446655440000", true},

		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},

		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTransactionID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()
	invalidInputs := []string{"", "invalid", uuid.Nil.String()}

	t.Run("all accept valid UUID", func(t *testing.T) {
		_, errAthlete := ParseAthleteID(validUUID)
		_, errSession := ParseSessionID(validUUID)
		_, errClient := ParseClientID(validUUID)
		_, errTx := ParseTransactionID(validUUID)

		require.NoError(t, errAthlete)
		require.NoError(t, errSession)
		require.NoError(t, errClient)
		require.NoError(t, errTx)
	})

	for _, input := range invalidInputs {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errAthlete := ParseAthleteID(input)
			_, errSession := ParseSessionID(input)
			_, errClient := ParseClientID(input)
			_, errTx := ParseTransactionID(input)

			require.Error(t, errAthlete)
			require.Error(t, errSession)
			require.Error(t, errClient)
			require.Error(t, errTx)
		})
	}
}

func TestIDsMarshalAsCanonicalText(t *testing.T) {
	athleteID := NewAthleteID()

	b, err := json.Marshal(struct {
		AthleteID AthleteID `json:"athlete_id"`
	}{athleteID})
	require.NoError(t, err)
	assert.JSONEq(t, `{"athlete_id":"`+athleteID.String()+`"}`, string(b))

	var decoded struct {
		AthleteID AthleteID `json:"athlete_id"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, athleteID, decoded.AthleteID)
}
