package config

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestMergeConcatenatesListFields(t *testing.T) {
	primary := Config{Programs: []ProcessConfig{
		{Name: "a", Path: "/bin/true", HasPath: true, Before: []string{"b"}},
	}}
	dropIn := Config{Programs: []ProcessConfig{
		{Name: "a", Before: []string{"b", "c"}, Capabilities: []string{"CAP_NET_BIND_SERVICE"}},
	}}

	merged, err := Merge(primary, dropIn)
	assert.NilError(t, err)
	assert.Equal(t, len(merged.Programs), 1)
	assert.DeepEqual(t, merged.Programs[0].Before, []string{"b", "c"})
	assert.DeepEqual(t, merged.Programs[0].Capabilities, []string{"CAP_NET_BIND_SERVICE"})
	assert.Equal(t, merged.Programs[0].Path, "/bin/true")
}

func TestMergeRejectsDoublePath(t *testing.T) {
	primary := Config{Programs: []ProcessConfig{{Name: "a", Path: "/bin/true", HasPath: true}}}
	dropIn := Config{Programs: []ProcessConfig{{Name: "a", Path: "/bin/false", HasPath: true}}}

	_, err := Merge(primary, dropIn)
	assert.ErrorContains(t, err, "path declared in both")
}

func TestMergeRejectsCronjobUpgrade(t *testing.T) {
	primary := Config{Programs: []ProcessConfig{{Name: "a", Type: ProcessType{Kind: KindOneshot}}}}
	dropIn := Config{Programs: []ProcessConfig{{Name: "a", Type: ProcessType{Kind: KindCronjob, Timer: "* * * * *"}}}}

	_, err := Merge(primary, dropIn)
	assert.ErrorContains(t, err, "cronjob")
}

func TestMergeIndependentMutation(t *testing.T) {
	primary := Config{Programs: []ProcessConfig{
		{Name: "a", Before: []string{"b"}},
	}}
	dropIn := Config{Programs: []ProcessConfig{
		{Name: "a", Before: []string{"c"}},
	}}

	merged, err := Merge(primary, dropIn)
	assert.NilError(t, err)

	// Mutating the merge result's slice must not alias the original
	// primary config's slice (concatDedup builds a fresh slice).
	merged.Programs[0].Before[0] = "z"
	assert.Equal(t, primary.Programs[0].Before[0], "b")
}
