package process

import (
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"gotest.tools/v3/assert"
)

func TestSpawnPipeStdio(t *testing.T) {
	uid := uint32(os.Getuid())
	gid := uint32(os.Getgid())

	r := NewRecord(0, "echoer", "/bin/echo", []string{"/bin/echo", "hello"}, "/",
		uid, gid, false, nil, os.Environ(), Oneshot)

	res, err := r.Spawn("", logrus.StandardLogger())
	assert.NilError(t, err)
	assert.Assert(t, res.PID > 0)

	out, err := io.ReadAll(res.Stdout)
	assert.NilError(t, err)
	assert.Equal(t, string(out), "hello\n")

	assert.Equal(t, r.State, Running)
	assert.Equal(t, r.PID, res.PID)
}

func TestSpawnForcesNotifySocketForNotifyType(t *testing.T) {
	uid := uint32(os.Getuid())
	gid := uint32(os.Getgid())

	r := NewRecord(1, "svc", "/bin/sh", []string{"/bin/sh", "-c", "echo $NOTIFY_SOCKET"}, "/",
		uid, gid, false, nil, append(os.Environ(), "NOTIFY_SOCKET=/should/be/overridden"), Notify)

	res, err := r.Spawn("/run/cinit/notify.sock", logrus.StandardLogger())
	assert.NilError(t, err)

	out, err := io.ReadAll(res.Stdout)
	assert.NilError(t, err)
	assert.Equal(t, string(out), "/run/cinit/notify.sock\n")
	assert.Equal(t, r.State, Starting)
}

func TestSetEnvVarReplacesExisting(t *testing.T) {
	env := []string{"FOO=bar", "NOTIFY_SOCKET=old"}
	got := setEnvVar(env, "NOTIFY_SOCKET", "new")
	assert.DeepEqual(t, got, []string{"FOO=bar", "NOTIFY_SOCKET=new"})
}

func TestSetEnvVarAppendsWhenAbsent(t *testing.T) {
	env := []string{"FOO=bar"}
	got := setEnvVar(env, "NOTIFY_SOCKET", "new")
	assert.DeepEqual(t, got, []string{"FOO=bar", "NOTIFY_SOCKET=new"})
}
