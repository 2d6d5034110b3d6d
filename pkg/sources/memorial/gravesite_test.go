package memorial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jane Doe", "jane-doe"},
		{"  Sammy Davis Jr.  ", "sammy-davis-jr"},
		{"O'Brien, Conan", "o-brien-conan"},
		{"Jean-Claude Van Damme", "jean-claude-van-damme"},
		{"...", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, slug(tc.in), tc.in)
	}
}

func TestMapCoordsPattern(t *testing.T) {
	t.Run("extracts lat and lng from a map link", func(t *testing.T) {
		m := mapCoordsPattern.FindStringSubmatch("https://maps.google.com/maps?q=34.0522,-118.2437&z=15")
		require.NotNil(t, m)
		assert.Equal(t, "34.0522", m[1])
		assert.Equal(t, "-118.2437", m[2])
	})

	t.Run("matches ampersand-joined params", func(t *testing.T) {
		m := mapCoordsPattern.FindStringSubmatch("https://maps.google.com/maps?z=15&q=40.7,-74.0")
		require.NotNil(t, m)
		assert.Equal(t, "40.7", m[1])
	})

	t.Run("ignores links without decimal coords", func(t *testing.T) {
		assert.Nil(t, mapCoordsPattern.FindStringSubmatch("https://maps.google.com/maps?q=Hollywood+Forever"))
	})
}

func TestMapLinkPattern(t *testing.T) {
	assert.True(t, mapLinkPattern.MatchString("https://maps.google.com/maps?q=1.0,2.0"))
	assert.True(t, mapLinkPattern.MatchString("https://www.google.com/maps/place/x"))
	assert.False(t, mapLinkPattern.MatchString("https://example.com/maps"))
}

func TestCemeteryPattern(t *testing.T) {
	assert.True(t, cemeteryPattern.MatchString("Forest Lawn Memorial Park, Glendale"))
	assert.True(t, cemeteryPattern.MatchString("Buried at Westwood Village cemetery"))
	assert.True(t, cemeteryPattern.MatchString("Great Mausoleum, third floor"))
	assert.False(t, cemeteryPattern.MatchString("born in Los Angeles"))
}
