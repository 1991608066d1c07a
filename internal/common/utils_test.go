package common

import (
	"bytes"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) (out, errOut *bytes.Buffer, code *int) {
	t.Helper()
	out, errOut = &bytes.Buffer{}, &bytes.Buffer{}
	code = new(int)
	*code = -1

	oldOut, oldErr, oldExit := stdout, stderr, exit
	stdout, stderr = out, errOut
	exit = func(c int) { *code = c }
	t.Cleanup(func() { stdout, stderr, exit = oldOut, oldErr, oldExit })
	return out, errOut, code
}

func TestGetArgByKey(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("name", "default", "test flag")

	value := GetArgByKey("name", flags, false, func() error { return nil })
	assert.Equal(t, "default", value)
}

func TestGetArgByKey_MissingNonStrict(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)

	// Non-strict mode should not panic on missing flag
	value := GetArgByKey("missing", flags, false, func() error { return nil })
	assert.Empty(t, value)
}

func TestGetArgByKey_MissingStrictExits(t *testing.T) {
	_, errOut, code := capture(t)
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	helped := false

	GetArgByKey("missing", flags, true, func() error { helped = true; return nil })
	assert.Equal(t, ExitFailure, *code)
	assert.True(t, helped)
	assert.Contains(t, errOut.String(), "missing, is not set")
}

func TestLogInfo(t *testing.T) {
	out, _, _ := capture(t)
	called := false
	LogInfo("test message", func() {
		called = true
	})
	assert.True(t, called)
	assert.Equal(t, "test message\n", out.String())
}

func TestLogInfo_NilCallback(t *testing.T) {
	capture(t)
	// Should not panic with nil callback
	LogInfo("test message", nil)
}

func TestLogError(t *testing.T) {
	_, errOut, code := capture(t)

	LogError("soft", false, false, nil)
	assert.Equal(t, -1, *code)

	LogError("hard", true, true, nil)
	assert.Equal(t, ExitFailure, *code)
	assert.Equal(t, "soft\nhard\n", errOut.String())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b/c", "d"}, SplitList(" a, b/c,,d ,"))
	assert.Nil(t, SplitList(""))
}

func TestSplitPair(t *testing.T) {
	oldPath, newPath, err := SplitPair("old.py, new.py")
	require.NoError(t, err)
	assert.Equal(t, "old.py", oldPath)
	assert.Equal(t, "new.py", newPath)

	for _, bad := range []string{"one.py", "a,b,c", ",b", "a, "} {
		_, _, err := SplitPair(bad)
		assert.Error(t, err, bad)
	}
}
