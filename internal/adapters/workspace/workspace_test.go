package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresRoot(t *testing.T) {
	_, err := New(Options{Root: "  "})
	require.Error(t, err)
}

func TestWorkspace_JobDir(t *testing.T) {
	ws, err := New(Options{Root: "/shared/hpc-portal/"})
	require.NoError(t, err)

	dir, err := ws.JobDir("u1", "j1")
	require.NoError(t, err)
	assert.Equal(t, "/shared/hpc-portal/users/u1/jobs/j1", dir)

	for _, bad := range []string{"", "..", "a/b", `a\b`, "."} {
		_, err := ws.JobDir(bad, "j1")
		assert.Error(t, err, bad)
		_, err = ws.JobDir("u1", bad)
		assert.Error(t, err, bad)
	}
}

func TestWorkspace_PrepareAndWriteScript(t *testing.T) {
	root := t.TempDir()
	ws, err := New(Options{Root: root})
	require.NoError(t, err)
	ctx := context.Background()

	dir, err := ws.Prepare(ctx, "u1", "j1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "users", "u1", "jobs", "j1"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o777), info.Mode().Perm())

	// Preparing again is harmless.
	_, err = ws.Prepare(ctx, "u1", "j1")
	require.NoError(t, err)

	path, err := ws.WriteScript(ctx, dir, "job.sh", "#!/bin/bash\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "job.sh"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/bash\n", string(content))

	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestWorkspace_WriteScriptRejectsOutsideRoot(t *testing.T) {
	ws, err := New(Options{Root: t.TempDir()})
	require.NoError(t, err)

	_, err = ws.WriteScript(context.Background(), t.TempDir(), "job.sh", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the workspace root")

	_, err = ws.WriteScript(context.Background(), "/tmp", "../job.sh", "x")
	require.Error(t, err)
}
