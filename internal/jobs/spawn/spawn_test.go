package spawn

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dukafeed/internal/jobs/domain"
)

// TestSpawn_RedirectsStdioAndReturnsPID spawns a real child (a short-lived
// shell-less "true"-equivalent via /bin/echo) rather than re-execing the
// test binary, since os.Executable() inside `go test` resolves to the
// test harness binary rather than dukafeed itself
func TestSpawn_RedirectsStdioAndReturnsPID(t *testing.T) {
	if _, err := os.Stat("/bin/echo"); err != nil {
		t.Skip("/bin/echo not available")
	}

	dir := t.TempDir()
	p := &Process{Exe: "/bin/echo", StateDir: dir}

	pid, err := p.Spawn(context.Background(), domain.JobId("job-1"))
	require.NoError(t, err)
	require.Greater(t, pid, 0)

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "logs", "job-1.out"))
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestNewProcess_ResolvesExecutable(t *testing.T) {
	p, err := NewProcess(t.TempDir())
	require.NoError(t, err)
	require.NotEmpty(t, p.Exe)
}
