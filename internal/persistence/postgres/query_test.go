package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWhereBuilderNumbersPlaceholders(t *testing.T) {
	var where whereBuilder
	require.Empty(t, where.String())

	where.add("user_id = ?", "user_1")
	where.search("run", "user_name", "description")
	where.add("team_id = ?", "team_dc")

	require.Equal(t, " WHERE user_id = $1 AND (user_name ILIKE $2 OR description ILIKE $2) AND team_id = $3", where.String())
	require.Equal(t, []any{"user_1", "%run%", "team_dc"}, where.args)
}

func TestWhereBuilderSkipsEmptySearch(t *testing.T) {
	var where whereBuilder
	where.search("", "name")
	require.Empty(t, where.clauses)
	require.Empty(t, where.args)
}
