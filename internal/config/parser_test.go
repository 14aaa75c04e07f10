package config

import (
	"testing"

	"gotest.tools/v3/assert"
)

const sample = `
programs:
  - name: a
    path: /bin/true
    before: [b]
  - name: b
    path: /bin/true
    type: notify
    env:
      - HOME: /root
      - PATH:
  - name: c
    path: /usr/bin/touch
    type:
      cronjob:
        timer: "* * * * *"
`

func TestParseBasic(t *testing.T) {
	cfg, err := Parse([]byte(sample), "sample.yml")
	assert.NilError(t, err)
	assert.Equal(t, len(cfg.Programs), 3)

	a := cfg.Programs[0]
	assert.Equal(t, a.Name, "a")
	assert.Equal(t, a.Path, "/bin/true")
	assert.DeepEqual(t, a.Before, []string{"b"})
	assert.Equal(t, a.Type.Kind, KindOneshot)

	b := cfg.Programs[1]
	assert.Equal(t, b.Type.Kind, KindNotify)
	assert.Equal(t, len(b.Env), 2)
	assert.Equal(t, b.Env[0].Name, "HOME")
	assert.Assert(t, b.Env[0].Value != nil && *b.Env[0].Value == "/root")
	assert.Equal(t, b.Env[1].Name, "PATH")
	assert.Assert(t, b.Env[1].Value == nil)

	c := cfg.Programs[2]
	assert.Equal(t, c.Type.Kind, KindCronjob)
	assert.Equal(t, c.Type.Timer, "* * * * *")
}

func TestParseUnknownType(t *testing.T) {
	_, err := Parse([]byte(`
programs:
  - name: a
    path: /bin/true
    type: bogus
`), "bad.yml")
	assert.ErrorContains(t, err, "unknown process type")
}

func TestParseCronjobMissingTimer(t *testing.T) {
	_, err := Parse([]byte(`
programs:
  - name: a
    type:
      cronjob: {}
`), "bad.yml")
	assert.ErrorContains(t, err, "timer")
}
