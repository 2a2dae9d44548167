package favorites

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"team":     KindTeam,
		"Teams":    KindTeam,
		"league":   KindLeague,
		" LEAGUES": KindLeague,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseKind("player")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestFavoriteValidate(t *testing.T) {
	ok := Favorite{ClientID: "c-1", Kind: KindTeam, ID: 33}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.ClientID = " "
	assert.ErrorIs(t, bad.Validate(), ErrInvalidClient)

	bad = ok
	bad.ClientID = strings.Repeat("x", MaxClientIDLength+1)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidClient)

	bad = ok
	bad.Kind = "coach"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidKind)

	bad = ok
	bad.ID = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidID)
}

func TestSplit(t *testing.T) {
	teams, leagues := Split([]Favorite{
		{Kind: KindTeam, ID: 33},
		{Kind: KindLeague, ID: 39},
		{Kind: KindTeam, ID: 541},
	})
	assert.Equal(t, []int{33, 541}, teams)
	assert.Equal(t, []int{39}, leagues)
}
