package config

import (
	"fmt"

	"github.com/mohae/deepcopy"
)

// Merge combines two partially-parsed configs, merging ProcessConfig
// entries that share a name: exactly one may carry path; list-valued
// fields concatenate then deduplicate (primary first); scalar identity
// fields may appear on only one side; type cannot be changed to
// cronjob by a drop-in.
func Merge(primary, dropIn Config) (Config, error) {
	byName := make(map[string]int, len(primary.Programs))
	result := Config{Programs: make([]ProcessConfig, len(primary.Programs))}
	copy(result.Programs, primary.Programs)
	for i, p := range result.Programs {
		byName[p.Name] = i
	}

	for _, incoming := range dropIn.Programs {
		idx, exists := byName[incoming.Name]
		if !exists {
			byName[incoming.Name] = len(result.Programs)
			result.Programs = append(result.Programs, incoming)
			continue
		}
		merged, err := mergeOne(result.Programs[idx], incoming)
		if err != nil {
			return Config{}, fmt.Errorf("merging process %q (%s into %s): %w",
				incoming.Name, incoming.SourceFile, result.Programs[idx].SourceFile, err)
		}
		result.Programs[idx] = merged
	}
	return result, nil
}

func mergeOne(primary, dropIn ProcessConfig) (ProcessConfig, error) {
	merged := deepcopy.Copy(primary).(ProcessConfig)

	if primary.HasPath && dropIn.HasPath {
		return ProcessConfig{}, fmt.Errorf("path declared in both configs")
	}
	if dropIn.HasPath {
		merged.Path = dropIn.Path
		merged.HasPath = true
	}

	if primary.HasWorkdir && dropIn.HasWorkdir {
		return ProcessConfig{}, fmt.Errorf("workdir declared in both configs")
	}
	if dropIn.HasWorkdir {
		merged.Workdir = dropIn.Workdir
		merged.HasWorkdir = true
	}

	if primary.HasUID && dropIn.HasUID {
		return ProcessConfig{}, fmt.Errorf("uid declared in both configs")
	}
	if dropIn.HasUID {
		merged.UID = dropIn.UID
		merged.HasUID = true
	}

	if primary.HasGID && dropIn.HasGID {
		return ProcessConfig{}, fmt.Errorf("gid declared in both configs")
	}
	if dropIn.HasGID {
		merged.GID = dropIn.GID
		merged.HasGID = true
	}

	if primary.User != "" && dropIn.User != "" {
		return ProcessConfig{}, fmt.Errorf("user declared in both configs")
	}
	if dropIn.User != "" {
		merged.User = dropIn.User
	}

	if primary.Group != "" && dropIn.Group != "" {
		return ProcessConfig{}, fmt.Errorf("group declared in both configs")
	}
	if dropIn.Group != "" {
		merged.Group = dropIn.Group
	}

	if dropIn.Type.Kind == KindCronjob && primary.Type.Kind != KindCronjob {
		return ProcessConfig{}, fmt.Errorf("drop-in may not change process type to cronjob")
	}
	// A drop-in declaring a non-default (Notify/Cronjob) type overrides;
	// an unspecified drop-in type (parsed as the Oneshot default) leaves
	// the primary's type untouched.
	if dropIn.Type.Kind != KindOneshot {
		merged.Type = dropIn.Type
	}

	merged.Args = concatDedup(primary.Args, dropIn.Args)
	merged.Before = concatDedup(primary.Before, dropIn.Before)
	merged.After = concatDedup(primary.After, dropIn.After)
	merged.Capabilities = concatDedup(primary.Capabilities, dropIn.Capabilities)
	merged.Env = append(append([]EnvLayer{}, primary.Env...), dropIn.Env...)
	merged.EmulatePTY = primary.EmulatePTY || dropIn.EmulatePTY

	return merged, nil
}

func concatDedup(primary, dropIn []string) []string {
	seen := make(map[string]struct{}, len(primary)+len(dropIn))
	result := make([]string, 0, len(primary)+len(dropIn))
	for _, list := range [][]string{primary, dropIn} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			result = append(result, v)
		}
	}
	return result
}
