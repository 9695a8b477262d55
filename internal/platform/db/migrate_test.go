package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreOrderedAndNonEmpty(t *testing.T) {
	all, err := Migrations()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "0001_fleet", all[0].Version)
	assert.Equal(t, "0002_auth", all[1].Version)
	for _, m := range all {
		assert.True(t, strings.Contains(m.SQL, "CREATE TABLE"), m.Version)
	}
}
