package domain

import (
	"chat-relay/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonical_Strips_Display_Suffix_And_Case(t *testing.T) {
	req := require.New(t)

	req.Equal("alice", Canonical("Alice"))
	req.Equal("alice", Canonical("ALICE_view"))
	req.Equal("alice", Canonical("alice_VIEW"))
	req.Equal("bob_viewer", Canonical("bob_viewer"))
	req.True(SameIdentity("Alice", "alice_view"))
	req.False(SameIdentity("alice", "alicia"))
}

func TestDisplayName_Fits_Sender_Field(t *testing.T) {
	req := require.New(t)

	req.Equal("alice_view", DisplayName("alice"))
	req.Equal("alice_view", DisplayName("alice_view"))
	req.True(IsDisplayName(DisplayName("a_very_long_name_xx")))
	req.LessOrEqual(len(DisplayName("a_very_long_name_xx")), MaxNameLength)
	req.Equal("a_very_long_na", Canonical(DisplayName("a_very_long_name_xx")))
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{name: "letters", input: "study", valid: true},
		{name: "allowed punctuation", input: "team-a_1.b", valid: true},
		{name: "empty", input: "", valid: false},
		{name: "space", input: "my group", valid: false},
		{name: "accent", input: "été", valid: false},
		{name: "too long", input: "abcdefghijklmnopqrst", valid: false},
		{name: "max length", input: "abcdefghijklmnopqrs", valid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := ValidateName(tt.input)
			if tt.valid {
				req.NoError(err)
				return
			}
			req.ErrorIs(err, errors.ErrInvalidName)
		})
	}
}
