package trainer_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/mine/trainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeGradient copies the model file to the -gradient path.
const writeGradient = `
while [ $# -gt 0 ]; do
	case "$1" in
	-model) model="$2" ;;
	-gradient) gradient="$2" ;;
	esac
	shift
done
echo "progress"
echo "warning" >&2
cp "$model" "$gradient"
`

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJobArgs(t *testing.T) {
	job := trainer.Job{ModelPath: "m", InputPath: "i", TargetPath: "t", GradientPath: "g"}
	assert.Equal(t, []string{"-model", "m", "-input_data", "i", "-target_data", "t", "-gradient", "g"}, job.Args())
}

func TestNewHostRunner(t *testing.T) {
	_, err := trainer.NewHostRunner(trainer.HostConfig{}, discard())
	assert.ErrorIs(t, err, trainer.ErrEmptyCommand)
}

func TestHostRunner(t *testing.T) {
	cases := []struct {
		desc     string
		command  string
		script   string
		debug    bool
		timeout  time.Duration
		err      error
		code     int
		gradient bool
		stdout   string
	}{
		{
			desc:     "trainer writes gradient",
			command:  "sh",
			script:   writeGradient,
			gradient: true,
		},
		{
			desc:     "debug passes stdout through",
			command:  "sh",
			script:   writeGradient,
			debug:    true,
			gradient: true,
			stdout:   "progress\n",
		},
		{
			desc:    "trainer exits with code 7",
			command: "sh",
			script:  "exit 7",
			code:    7,
		},
		{
			desc:    "trainer binary missing",
			command: "/nonexistent/syft_cmd",
			err:     trainer.ErrStartFailed,
		},
		{
			desc:    "trainer times out",
			command: "sh",
			script:  "sleep 5",
			timeout: 50 * time.Millisecond,
			err:     trainer.ErrTimeout,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			dir := t.TempDir()
			job := trainer.Job{
				ModelPath:    filepath.Join(dir, "model.pkl"),
				InputPath:    filepath.Join(dir, "input.csv"),
				TargetPath:   filepath.Join(dir, "target.csv"),
				GradientPath: filepath.Join(dir, "gradient.pkl"),
			}
			require.NoError(t, os.WriteFile(job.ModelPath, []byte("weights"), 0o600))

			var args []string
			if tc.script != "" {
				args = []string{"-c", tc.script, "syft_cmd"}
			}
			var stdout, stderr bytes.Buffer
			r, err := trainer.NewHostRunner(trainer.HostConfig{
				Command: tc.command,
				Args:    args,
				Debug:   tc.debug,
				Timeout: tc.timeout,
				Stdout:  &stdout,
				Stderr:  &stderr,
			}, discard())
			require.NoError(t, err)

			err = r.Run(context.Background(), job)
			switch {
			case tc.err != nil:
				assert.ErrorIs(t, err, tc.err)
			case tc.code != 0:
				var exitErr *trainer.ExitError
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, tc.code, exitErr.Code)
			default:
				require.NoError(t, err)
			}

			if tc.gradient {
				data, err := os.ReadFile(job.GradientPath)
				require.NoError(t, err)
				assert.Equal(t, "weights", string(data))
				assert.Equal(t, tc.stdout, stdout.String())
				assert.Equal(t, "warning\n", stderr.String())
			}
		})
	}
}

func TestHostRunnerCancelled(t *testing.T) {
	r, err := trainer.NewHostRunner(trainer.HostConfig{Command: "sh", Args: []string{"-c", "sleep 5", "syft_cmd"}}, discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err = r.Run(ctx, trainer.Job{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWasmRunner(t *testing.T) {
	_, err := trainer.NewWasmRunner(trainer.WasmConfig{}, discard())
	assert.ErrorIs(t, err, trainer.ErrEmptyModule)

	_, err = trainer.NewWasmRunner(trainer.WasmConfig{Module: filepath.Join(t.TempDir(), "missing.wasm")}, discard())
	assert.Error(t, err)

	module := filepath.Join(t.TempDir(), "trainer.wasm")
	require.NoError(t, os.WriteFile(module, []byte("not a wasm module"), 0o600))

	r, err := trainer.NewWasmRunner(trainer.WasmConfig{Module: module}, discard())
	require.NoError(t, err)

	err = r.Run(context.Background(), trainer.Job{ModelPath: filepath.Join(t.TempDir(), "model.pkl")})
	assert.ErrorIs(t, err, trainer.ErrStartFailed)

	r, err = trainer.NewWasmRunner(trainer.WasmConfig{Binary: []byte("pulled from a registry")}, discard())
	require.NoError(t, err)

	err = r.Run(context.Background(), trainer.Job{ModelPath: filepath.Join(t.TempDir(), "model.pkl")})
	assert.ErrorIs(t, err, trainer.ErrStartFailed)
}
