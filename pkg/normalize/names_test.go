package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Douglas Adams", "douglas adams"},
		{"  Sammy Davis Jr.  ", "sammy davis"},
		{"John Doe Sr", "john doe"},
		{"Henry VIII of England", "henry viii of england"},
		{"John Smith III", "john smith"},
		{"Jean-Claude Van Damme", "jean claude van damme"},
		{"O'Brien, Conan", "obrien conan"},
		{"  multiple   spaces  ", "multiple spaces"},
		{"", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, Name(tc.in), "input %q", tc.in)
	}
}
