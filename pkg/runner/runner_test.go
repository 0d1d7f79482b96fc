package runner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{name: "comment and blank skipped", script: "# skip\n\nls\n", want: []string{"ls"}},
		{name: "whitespace trimmed", script: "  getprop  \n\t dmesg | tail -20\t\n", want: []string{"getprop", "dmesg | tail -20"}},
		{name: "indented comment skipped", script: "   # note\nreboot", want: []string{"reboot"}},
		{name: "windows line endings", script: "ls\r\nps\r\n", want: []string{"ls", "ps"}},
		{name: "carriage return separators", script: "ls\rps\rdf", want: []string{"ls", "ps", "df"}},
		{name: "mixed line endings", script: "ls\r\n\rps\ndf\r", want: []string{"ls", "ps", "df"}},
		{name: "empty script", script: "", want: nil},
		{name: "hash inside command kept", script: "echo a#b", want: []string{"echo a#b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Commands(tt.script))
		})
	}
}

func TestRun_DispatchesExactlyOneCommand(t *testing.T) {
	t.Parallel()

	var got []string
	r := New(nil)
	sum := r.Run(context.Background(), "# skip\n\nls\n", func(_ context.Context, cmd string) error {
		got = append(got, cmd)
		return nil
	})

	assert.Equal(t, []string{"ls"}, got)
	assert.Equal(t, Summary{Dispatched: 1}, sum)
}

func TestRun_ContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	type failure struct {
		cmd string
		err error
	}
	var failures []failure
	var ran []string

	r := New(func(cmd string, err error) { failures = append(failures, failure{cmd, err}) })
	sum := r.Run(context.Background(), "push\nbad\nreboot\n", func(_ context.Context, cmd string) error {
		ran = append(ran, cmd)
		if cmd == "bad" {
			return errors.New("boom")
		}
		return nil
	})

	assert.Equal(t, []string{"push", "bad", "reboot"}, ran)
	require.Len(t, failures, 1)
	assert.Equal(t, "bad", failures[0].cmd)
	assert.EqualError(t, failures[0].err, "boom")
	assert.Equal(t, Summary{Dispatched: 3, Failed: 1}, sum)
}

func TestRun_PanicIsReportedAsFailure(t *testing.T) {
	t.Parallel()

	var reported []string
	r := New(func(cmd string, err error) { reported = append(reported, cmd+": "+err.Error()) })
	sum := r.Run(context.Background(), "a\nb", func(_ context.Context, cmd string) error {
		if cmd == "a" {
			panic("nil port")
		}
		return nil
	})

	assert.Equal(t, []string{"a: panic: nil port"}, reported)
	assert.Equal(t, 2, sum.Dispatched)
}

func TestRun_StopsWhenCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var ran []string
	sum := New(nil).Run(ctx, "one\ntwo\nthree", func(_ context.Context, cmd string) error {
		ran = append(ran, cmd)
		if cmd == "one" {
			cancel()
		}
		return nil
	})

	assert.Equal(t, []string{"one"}, ran)
	assert.True(t, sum.Canceled)
}

// TestPropertyBlankAndCommentLinesNeverDispatched checks the dispatcher only
// ever sees trimmed, non-empty, non-comment lines.
func TestPropertyBlankAndCommentLinesNeverDispatched(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		lines := rapid.SliceOf(rapid.OneOf(
			rapid.StringMatching(`[ \t]*`),
			rapid.StringMatching(`[ \t]*#[a-z ]*`),
			rapid.StringMatching(`[ \t]*[a-z][a-z /|-]{0,10}`),
		)).Draw(t, "lines")

		want := 0
		for _, l := range lines {
			trimmed := strings.TrimSpace(l)
			if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
				want++
			}
		}

		got := 0
		New(nil).Run(context.Background(), strings.Join(lines, "\n"), func(_ context.Context, cmd string) error {
			if cmd == "" || strings.HasPrefix(cmd, "#") || cmd != strings.TrimSpace(cmd) {
				t.Fatalf("dispatched %q", cmd)
			}
			got++
			return nil
		})

		if got != want {
			t.Fatalf("dispatched %d commands, want %d", got, want)
		}
	})
}
