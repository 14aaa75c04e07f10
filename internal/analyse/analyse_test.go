package analyse

import (
	"os/user"
	"testing"
	"time"

	"github.com/cinit-project/cinit/internal/config"
	"github.com/sirupsen/logrus"
	"gotest.tools/v3/assert"
)

type fakeEnviron map[string]string

func (f fakeEnviron) Lookup(key string) (string, bool) {
	v, ok := f[key]
	return v, ok
}

type fakeUsers struct {
	users  map[string]*user.User
	groups map[string]*user.Group
}

func (f fakeUsers) Lookup(name string) (*user.User, error) {
	u, ok := f.users[name]
	if !ok {
		return nil, user.UnknownUserError(name)
	}
	return u, nil
}

func (f fakeUsers) LookupGroup(name string) (*user.Group, error) {
	g, ok := f.groups[name]
	if !ok {
		return nil, user.UnknownGroupError(name)
	}
	return g, nil
}

var testUsers = fakeUsers{
	users: map[string]*user.User{
		"builder": {Uid: "1000", Username: "builder", HomeDir: "/home/builder"},
	},
	groups: map[string]*user.Group{
		"builder": {Gid: "1000", Name: "builder"},
	},
}

func simpleConfig(pc config.ProcessConfig) config.Config {
	return config.Config{Programs: []config.ProcessConfig{pc}}
}

func TestBuildResolvesSymbolicUser(t *testing.T) {
	pc := config.ProcessConfig{Name: "a", Path: "/bin/true", HasPath: true, User: "builder"}
	res, err := Build(simpleConfig(pc), testUsers, fakeEnviron{}, time.Now(), logrus.StandardLogger())
	assert.NilError(t, err)
	assert.Equal(t, res.Records[0].UID, uint32(1000))
}

func TestBuildRejectsBothUIDAndUser(t *testing.T) {
	pc := config.ProcessConfig{Name: "a", Path: "/bin/true", HasPath: true, UID: 5, HasUID: true, User: "builder"}
	_, err := Build(simpleConfig(pc), testUsers, fakeEnviron{}, time.Now(), logrus.StandardLogger())
	assert.ErrorContains(t, err, "at most one of uid/user")
}

func TestBuildRejectsUnknownUser(t *testing.T) {
	pc := config.ProcessConfig{Name: "a", Path: "/bin/true", HasPath: true, User: "ghost"}
	_, err := Build(simpleConfig(pc), testUsers, fakeEnviron{}, time.Now(), logrus.StandardLogger())
	assert.ErrorContains(t, err, "unknown user")
}

func TestBuildRejectsMissingPath(t *testing.T) {
	pc := config.ProcessConfig{Name: "a"}
	_, err := Build(simpleConfig(pc), testUsers, fakeEnviron{}, time.Now(), logrus.StandardLogger())
	assert.ErrorContains(t, err, "missing required path")
}

func TestBuildRejectsCronjobWithDependencies(t *testing.T) {
	pc := config.ProcessConfig{
		Name: "a", Path: "/bin/true", HasPath: true,
		Type:   config.ProcessType{Kind: config.KindCronjob, Timer: "* * * * *"},
		Before: []string{"b"},
	}
	_, err := Build(simpleConfig(pc), testUsers, fakeEnviron{}, time.Now(), logrus.StandardLogger())
	assert.ErrorContains(t, err, "cronjobs may not declare")
}

func TestBuildForcesNotifySocketVar(t *testing.T) {
	val := "should-be-discarded"
	pc := config.ProcessConfig{
		Name: "a", Path: "/bin/true", HasPath: true,
		Type: config.ProcessType{Kind: config.KindNotify},
		Env:  []config.EnvLayer{{Name: "NOTIFY_SOCKET", Value: &val}},
	}
	res, err := Build(simpleConfig(pc), testUsers, fakeEnviron{}, time.Now(), logrus.StandardLogger())
	assert.NilError(t, err)
	found := false
	for _, kv := range res.Records[0].Env {
		if kv == "NOTIFY_SOCKET=" {
			found = true
		}
	}
	assert.Assert(t, found)
}

func TestAssembleEnvAppliesLayersInOrder(t *testing.T) {
	v1 := "base"
	v2 := "{{.FOO}}/more"
	pc := config.ProcessConfig{
		Name: "a", Path: "/bin/true", HasPath: true,
		Env: []config.EnvLayer{
			{Name: "FOO", Value: &v1},
			{Name: "BAR", Value: &v2},
		},
	}
	res, err := Build(simpleConfig(pc), testUsers, fakeEnviron{}, time.Now(), logrus.StandardLogger())
	assert.NilError(t, err)

	env := map[string]string{}
	for _, kv := range res.Records[0].Env {
		k, v, _ := cut(kv)
		env[k] = v
	}
	assert.Equal(t, env["FOO"], "base")
	assert.Equal(t, env["BAR"], "base/more")
}

func TestAssembleEnvInheritsNilLayer(t *testing.T) {
	pc := config.ProcessConfig{
		Name: "a", Path: "/bin/true", HasPath: true,
		Env: []config.EnvLayer{{Name: "PATH", Value: nil}},
	}
	res, err := Build(simpleConfig(pc), testUsers, fakeEnviron{"PATH": "/usr/bin"}, time.Now(), logrus.StandardLogger())
	assert.NilError(t, err)

	env := map[string]string{}
	for _, kv := range res.Records[0].Env {
		k, v, _ := cut(kv)
		env[k] = v
	}
	assert.Equal(t, env["PATH"], "/usr/bin")
}

func cut(kv string) (string, string, bool) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return kv, "", false
}
