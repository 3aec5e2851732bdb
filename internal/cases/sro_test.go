package cases

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopingMatches(t *testing.T) {
	scope := Scoping{
		States:    []string{"Delhi"},
		Districts: []string{"Pune"},
		Tehsils:   []string{"Haveli"},
	}

	// Any one set matching is enough.
	assert.True(t, scope.Matches("Delhi", "", ""))
	assert.True(t, scope.Matches("Maharashtra", "Pune", ""))
	assert.True(t, scope.Matches("Maharashtra", "Nagpur", "Haveli"))

	// Comparison is case-insensitive.
	assert.True(t, scope.Matches("delhi", "", ""))
	assert.True(t, scope.Matches("", "PUNE", ""))

	assert.False(t, scope.Matches("Maharashtra", "Nagpur", "Mulshi"))
}

func TestScopingMatches_EmptyScopeSeesNothing(t *testing.T) {
	var scope Scoping
	assert.False(t, scope.Matches("Delhi", "Pune", "Haveli"))
	assert.False(t, scope.Matches("", "", ""))
}

func TestScopingMatches_EmptyNameNeverMatches(t *testing.T) {
	// An empty case field must not match an empty-string set entry.
	scope := Scoping{States: []string{""}}
	assert.False(t, scope.Matches("", "", ""))
}

func TestScopingMatches_Super(t *testing.T) {
	scope := Scoping{Super: true}
	assert.True(t, scope.Matches("Anywhere", "", ""))
	assert.True(t, scope.Matches("", "", ""))
}
