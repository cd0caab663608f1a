package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kylealanhale/quicli/internal/config"
	"github.com/kylealanhale/quicli/pkg/progress"
)

const helloWorldDigest = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

type fakeApp struct {
	cfg    config.Config
	closed bool
}

func (f *fakeApp) Close(context.Context) error { f.closed = true; return nil }
func (f *fakeApp) GetLogger() *zap.Logger      { return zap.NewNop() }
func (f *fakeApp) GetConfig() config.Config    { return f.cfg }
func (f *fakeApp) RendererOptions(out io.Writer) []progress.Option {
	return []progress.Option{progress.WithOutput(out)}
}

// useFakeApp swaps the application factory for the duration of the test.
func useFakeApp(t *testing.T) *fakeApp {
	t.Helper()
	fake := &fakeApp{}
	prev := newApp
	newApp = func(cfg config.Config) (App, error) {
		fake.cfg = cfg
		return fake, nil
	}
	t.Cleanup(func() { newApp = prev })
	return fake
}

func executeForTest(t *testing.T, args ...string) (string, int) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	code := execute(context.Background(), root)
	if code != 0 {
		t.Logf("stderr: %s", errOut.String())
	}
	return out.String(), code
}

func TestHashCommand(t *testing.T) {
	fake := useFakeApp(t)

	dir := t.TempDir()
	hello := filepath.Join(dir, "a.txt")
	other := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(hello, []byte("hello world"), 0o600))
	require.NoError(t, os.WriteFile(other, []byte("something else"), 0o600))

	out, code := executeForTest(t, "hash", "--workers", "2", dir)
	require.Equal(t, 0, code)
	assert.True(t, fake.closed)

	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "\b\b\b100%\n")
	assert.Contains(t, out, helloWorldDigest+"  "+hello+"\n")
	assert.Contains(t, out, "  "+other+"\n")
}

func TestHashCommandEmptyDirectory(t *testing.T) {
	useFakeApp(t)

	out, code := executeForTest(t, "hash", t.TempDir())
	require.Equal(t, 0, code)
	assert.Equal(t, "100%\n", out)
}

func TestHashCommandMissingPathClosesApp(t *testing.T) {
	fake := useFakeApp(t)

	_, code := executeForTest(t, "hash", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, 1, code)
	assert.True(t, fake.closed)
}

func TestHashCommandBadTemplate(t *testing.T) {
	useFakeApp(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("x"), 0o600))
	_, code := executeForTest(t, "hash", "--template", "{{.Bogus}}", dir)
	assert.Equal(t, 1, code)
}

func TestWaitCommand(t *testing.T) {
	useFakeApp(t)

	out, code := executeForTest(t, "wait", "30ms", "--period", "5ms", "--template", "{{.Days}}d")
	require.Equal(t, 0, code)
	// every tick renders the same text, so exactly one redraw reaches the stream
	assert.Equal(t, "0d\n", out)
}

func TestWaitCommandRejectsZeroPeriod(t *testing.T) {
	fake := useFakeApp(t)

	_, code := executeForTest(t, "wait", "10ms", "--period", "0s")
	assert.Equal(t, 1, code)
	assert.False(t, fake.closed, "app must not be built when config is invalid")
}

func TestRunCommandPropagatesExitCode(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	useFakeApp(t)

	out, code := executeForTest(t, "run", "--period", "5ms", "--template", "{{.Days}}d", "--", "sh", "-c", "echo hi; exit 3")
	assert.Equal(t, 3, code)
	assert.Equal(t, "0d\nhi\n", out)
}

func TestRunCommandWithRealApp(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	t.Setenv("QUICLI_LOGGING_LEVEL", "error")

	out, code := executeForTest(t, "run", "--period", "5ms", "--", "sh", "-c", "echo done")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "00:00:00\ndone\n")
}

func TestResolveAppMissing(t *testing.T) {
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}

func TestBoundFlags(t *testing.T) {
	cmd := newWaitCmd()
	bound := boundFlags(cmd.Flags())
	require.Contains(t, bound, "progress.period")
	require.Contains(t, bound, "progress.time_template")
	assert.Equal(t, "period", bound["progress.period"].Name)
}
