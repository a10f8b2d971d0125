package application_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/runledger/internal/application"
)

var runIDPattern = regexp.MustCompile(`^\d{13}-[0-9a-f]{16}$`)

func TestNewRunID_Format(t *testing.T) {
	id := application.NewRunID()
	assert.Regexp(t, runIDPattern, id)
}

func TestNewRunID_Unique(t *testing.T) {
	const n = 10000

	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id := application.NewRunID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate run id %s after %d ids", id, i)
		seen[id] = struct{}{}
	}

	assert.Len(t, seen, n)
}
