package moderation

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	mod, err := NewModerator(logs.GetLoggerFromLevel(slog.LevelDebug), []string{"badger", "snake", "mushroom"}, '*')
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Simple word and space preservation", "The badger is here", "The ****** is here"},
		{"Multiple occurrences", "badger badger", "****** ******"},
		{"Leet speak and internal punctuation", "Look at B.4.d.g.€r !", "Look at ********** !"},
		{"Uppercase and noise", "S-N-A-K-E is a B.A.D.G.E.R", "********* is a ***********"},
		{"Accents kept around a match", "Un été avec un badger", "Un été avec un ******"},
		{"Trailing punctuation kept", "I love badger!", "I love ******!"},
		{"Nothing to censor", "See you tonight", "See you tonight"},
		{"Empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, mod.Censor(tt.input))
		})
	}
}

func TestModerator_NoWords(t *testing.T) {
	req := require.New(t)

	// Given a moderator without dictionary
	mod, err := NewModerator(logs.GetLoggerFromLevel(slog.LevelDebug), []string{" ", ""}, '*')
	req.NoError(err)

	// Then every text is left untouched
	req.Equal("badger", mod.Censor("badger"))
}

func TestModerator_Check(t *testing.T) {
	req := require.New(t)
	mod, err := NewModerator(logs.GetLoggerFromLevel(slog.LevelDebug), []string{"badger", "merde"}, '#')
	req.NoError(err)

	// When an english sentence carries a word of the dictionary
	verdict := mod.Check("Yesterday evening a big badger was walking slowly through the garden behind our house")

	// Then it is masked, reported, and the language detected
	req.Equal("Yesterday evening a big ###### was walking slowly through the garden behind our house", verdict.Text)
	req.Equal([]string{"badger"}, verdict.Words)
	req.Equal("en", verdict.Lang)

	// When a clean text is checked
	verdict = mod.Check("See you tonight")

	// Then nothing is reported and the language is not even looked up
	req.Equal("See you tonight", verdict.Text)
	req.Empty(verdict.Words)
	req.Empty(verdict.Lang)
}
