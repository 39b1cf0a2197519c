package migrate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_SortedAndEmbedded(t *testing.T) {
	migrations, err := List()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, "0001_init", migrations[0].Version)
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
}

func TestInitMigration_DeclaresNamedConstraints(t *testing.T) {
	body, err := migrationsFS.ReadFile("migrations/0001_init.sql")
	require.NoError(t, err)

	sql := string(body)
	for _, name := range []string{
		"usage_records_job_id_key",
		"usage_records_job_id_fkey",
		"job_events_job_id_fkey",
		"jobs_walltime_seconds_check",
	} {
		assert.True(t, strings.Contains(sql, name), "missing constraint %s", name)
	}
}
