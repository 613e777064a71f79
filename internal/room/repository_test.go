package room

import (
	"strings"
	"testing"

	"github.com/mcdev12/quizroom/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCode(t *testing.T) {
	s := NewStore()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := s.NewCode()
		require.NoError(t, err)
		assert.Len(t, code, codeLength)
		for _, ch := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, ch), "unexpected character %q", ch)
		}
		seen[code] = true
	}
	// 50 draws from a 31^6 space colliding would mean a broken generator.
	assert.Len(t, seen, 50)
}

func TestGetNormalizesCode(t *testing.T) {
	s := NewStore()
	s.Put(&models.Room{Code: "ABC234"})

	r, ok := s.Get("abc234")
	require.True(t, ok)
	assert.Equal(t, "ABC234", r.Code)

	_, ok = s.Get("ZZZZZZ")
	assert.False(t, ok)
}

func TestReverseIndex(t *testing.T) {
	s := NewStore()
	s.Put(&models.Room{Code: "ROOM42"})
	s.Bind("conn-1", "ROOM42")
	s.Bind("conn-2", "ROOM42")

	code, ok := s.RoomCodeFor("conn-1")
	require.True(t, ok)
	assert.Equal(t, "ROOM42", code)

	s.Unbind("conn-1")
	_, ok = s.RoomCodeFor("conn-1")
	assert.False(t, ok)

	// Deleting a room sweeps every binding that pointed at it.
	s.Delete("ROOM42")
	_, ok = s.RoomCodeFor("conn-2")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Count())
}
