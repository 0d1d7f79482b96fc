package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

func (c call) String() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}

// fakeExecutor answers by the first argument after the binary name.
type fakeExecutor struct {
	mu      sync.Mutex
	calls   []call
	respond func(c call) (Result, error)
}

func (f *fakeExecutor) Run(_ context.Context, name string, args ...string) (Result, error) {
	c := call{name: name, args: args}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	if f.respond == nil {
		return Result{}, nil
	}
	return f.respond(c)
}

func (f *fakeExecutor) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.String())
	}
	return out
}

func devicesOutput(lines ...string) string {
	return "List of devices attached\n" + strings.Join(lines, "\n") + "\n\n"
}

func TestClient_Device(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		output  string
		want    string
		wantErr bool
	}{
		{name: "single device", output: devicesOutput("HU123456\tdevice"), want: "HU123456"},
		{name: "no device", output: devicesOutput(), wantErr: true},
		{name: "unauthorized only", output: devicesOutput("HU1\tunauthorized"), wantErr: true},
		{name: "daemon banner ignored", output: "* daemon not running; starting now at tcp:5037\n* daemon started successfully\n" + devicesOutput("emulator-5554\tdevice"), want: "emulator-5554"},
		{name: "two devices", output: devicesOutput("A\tdevice", "B\tdevice"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			exec := &fakeExecutor{respond: func(call) (Result, error) {
				return Result{Output: tt.output}, nil
			}}
			c := NewClient(WithExecutor(exec))

			got, err := c.Device(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrDevice)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, []string{"adb devices"}, exec.commands())
		})
	}
}

func TestClient_DeviceAdbMissing(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{respond: func(call) (Result, error) {
		return Result{}, errors.New(`exec: "adb": executable file not found in $PATH`)
	}}
	c := NewClient(WithExecutor(exec), WithADB("/opt/platform-tools/adb"))

	_, err := c.Device(context.Background())
	require.ErrorIs(t, err, ErrDevice)
	assert.Equal(t, []string{"/opt/platform-tools/adb devices"}, exec.commands())
}

func TestClient_ShellSurfacesExitCode(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{respond: func(call) (Result, error) {
		return Result{Output: "ls: /nope: No such file or directory\n", ExitCode: 1}, nil
	}}
	c := NewClient(WithExecutor(exec))

	res, err := c.Shell(context.Background(), "HU1", "ls /nope")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.False(t, res.Success())
	assert.Equal(t, []string{"adb -s HU1 shell ls /nope"}, exec.commands())
}

func TestClient_ExecRoutesByPrefix(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{respond: func(call) (Result, error) {
		return Result{Output: "ok"}, nil
	}}
	c := NewClient(WithExecutor(exec))
	ctx := context.Background()

	_, err := c.Exec(ctx, "HU1", "getprop ro.product.model")
	require.NoError(t, err)
	_, err = c.Exec(ctx, "HU1", "adb logcat -d > logcat.txt")
	require.NoError(t, err)

	cmds := exec.commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "adb -s HU1 shell getprop ro.product.model", cmds[0])
	assert.Contains(t, cmds[1], "adb logcat -d > logcat.txt")
	assert.NotContains(t, cmds[1], "-s HU1")
}

func TestClient_HostShellNonZeroIsNotAnError(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{respond: func(call) (Result, error) {
		return Result{Output: "adb: error: failed to stat remote object", ExitCode: 1}, nil
	}}
	c := NewClient(WithExecutor(exec))

	res, err := c.HostShell(context.Background(), "adb pull /sdcard/missing.txt .")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Output, "failed to stat")
}

func TestIsToolCommand(t *testing.T) {
	t.Parallel()

	assert.True(t, IsToolCommand("adb pull /sdcard/x ."))
	assert.False(t, IsToolCommand("adbd --version"))
	assert.False(t, IsToolCommand("getprop"))
}

func TestClient_Push(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/app.apk", []byte("apk"), 0o644))
	require.NoError(t, fs.MkdirAll("/work/dir", 0o755))

	t.Run("existing file is transferred once", func(t *testing.T) {
		t.Parallel()
		exec := &fakeExecutor{}
		c := NewClient(WithExecutor(exec), WithFs(fs))

		require.NoError(t, c.Push(context.Background(), "HU1", "/work/app.apk", "/data/local/tmp/"))
		assert.Equal(t, []string{"adb -s HU1 push /work/app.apk /data/local/tmp/"}, exec.commands())
	})

	t.Run("missing file is not transferred", func(t *testing.T) {
		t.Parallel()
		exec := &fakeExecutor{}
		c := NewClient(WithExecutor(exec), WithFs(fs))

		err := c.Push(context.Background(), "HU1", "/work/missing.so", "/data/local/tmp/")
		require.ErrorIs(t, err, ErrFileNotFound)
		assert.Contains(t, err.Error(), "/work/missing.so")
		assert.Empty(t, exec.commands())
	})

	t.Run("directory is not a regular file", func(t *testing.T) {
		t.Parallel()
		exec := &fakeExecutor{}
		c := NewClient(WithExecutor(exec), WithFs(fs))

		require.ErrorIs(t, c.Push(context.Background(), "HU1", "/work/dir", "/data/"), ErrFileNotFound)
		assert.Empty(t, exec.commands())
	})

	t.Run("transfer failure is a device error", func(t *testing.T) {
		t.Parallel()
		exec := &fakeExecutor{respond: func(call) (Result, error) {
			return Result{Output: "adb: error: no space left", ExitCode: 1}, nil
		}}
		c := NewClient(WithExecutor(exec), WithFs(fs))

		err := c.Push(context.Background(), "HU1", "/work/app.apk", "/data/local/tmp/")
		require.ErrorIs(t, err, ErrDevice)
		assert.Contains(t, err.Error(), "no space left")
	})
}

func TestExecExecutor_CapturesExitCode(t *testing.T) {
	t.Parallel()

	name, args := shellCommand("echo out && echo err 1>&2 && exit 3")
	res, err := ExecExecutor{}.Run(context.Background(), name, args...)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Output, "out")
	assert.Contains(t, res.Output, "err")
}

func TestExecExecutor_MissingBinary(t *testing.T) {
	t.Parallel()

	_, err := ExecExecutor{}.Run(context.Background(), "hudebug-no-such-binary")
	assert.Error(t, err)
}
