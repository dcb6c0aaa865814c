package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{name: "identical", a: "ACME CORP", b: "ACME CORP", want: 100},
		{name: "both empty", a: "", b: "", want: 100},
		{name: "one empty", a: "ACME", b: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ratio(tt.a, tt.b))
		})
	}

	assert.Less(t, ratio("ACME CORP", "ZEBRA PLUMBING"), 50)
}

func TestPartialRatio(t *testing.T) {
	// The shorter string appears verbatim inside the longer one.
	assert.Equal(t, 100, partialRatio("ACME CORP", "ACME CORP #4412"))
	assert.Equal(t, 100, partialRatio("ACME CORP #4412", "ACME CORP"))

	// Plain ratio on the same pair is dragged down by the suffix.
	assert.Less(t, ratio("ACME CORP", "ACME CORP #4412"), 80)

	assert.Equal(t, 0, partialRatio("", "ACME"))
}

func TestTokenSortRatio(t *testing.T) {
	assert.Equal(t, 100, tokenSortRatio("CORP ACME", "ACME CORP"))
	assert.Equal(t, 100, tokenSortRatio("ACME  CORP", "CORP ACME"))
	assert.Less(t, tokenSortRatio("ACME CORP", "ZEBRA PLUMBING"), 80)
}
