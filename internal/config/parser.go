package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// rawDocument mirrors the on-disk YAML configuration shape.
type rawDocument struct {
	Programs []rawProcess `yaml:"programs"`
}

type rawProcess struct {
	Name         string     `yaml:"name"`
	Path         *string    `yaml:"path"`
	Args         []string   `yaml:"args"`
	Workdir      *string    `yaml:"workdir"`
	Type         *yaml.Node `yaml:"type"`
	UID          *uint32    `yaml:"uid"`
	GID          *uint32    `yaml:"gid"`
	User         *string    `yaml:"user"`
	Group        *string    `yaml:"group"`
	Before       []string   `yaml:"before"`
	After        []string   `yaml:"after"`
	PTY          bool       `yaml:"pty"`
	Capabilities []string   `yaml:"capabilities"`
	Env          []yaml.Node `yaml:"env"`
}

// ParseFile reads and parses a single YAML config file.
func ParseFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses a single YAML document's bytes. sourceFile is attached to
// every ProcessConfig for diagnostics only.
func Parse(data []byte, sourceFile string) (Config, error) {
	var doc rawDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", sourceFile, err)
	}

	cfg := Config{Programs: make([]ProcessConfig, 0, len(doc.Programs))}
	for _, rp := range doc.Programs {
		pc, err := rp.resolve(sourceFile)
		if err != nil {
			return Config{}, fmt.Errorf("process %q in %s: %w", rp.Name, sourceFile, err)
		}
		cfg.Programs = append(cfg.Programs, pc)
	}
	return cfg, nil
}

func (rp rawProcess) resolve(sourceFile string) (ProcessConfig, error) {
	pc := ProcessConfig{
		Name:         rp.Name,
		Args:         rp.Args,
		Before:       rp.Before,
		After:        rp.After,
		EmulatePTY:   rp.PTY,
		Capabilities: rp.Capabilities,
		SourceFile:   sourceFile,
	}
	if rp.Path != nil {
		pc.Path = *rp.Path
		pc.HasPath = true
	}
	if rp.Workdir != nil {
		pc.Workdir = *rp.Workdir
		pc.HasWorkdir = true
	}
	if rp.UID != nil {
		pc.UID = *rp.UID
		pc.HasUID = true
	}
	if rp.GID != nil {
		pc.GID = *rp.GID
		pc.HasGID = true
	}
	if rp.User != nil {
		pc.User = *rp.User
	}
	if rp.Group != nil {
		pc.Group = *rp.Group
	}

	pt, err := parseProcessType(rp.Type)
	if err != nil {
		return ProcessConfig{}, err
	}
	pc.Type = pt

	env, err := parseEnv(rp.Env)
	if err != nil {
		return ProcessConfig{}, err
	}
	pc.Env = env

	return pc, nil
}

// parseProcessType decodes either the bare scalar "oneshot"/"notify" or
// the mapping form `{cronjob: {timer: "<expr>"}}`. A nil node defaults to
// Oneshot.
func parseProcessType(node *yaml.Node) (ProcessType, error) {
	if node == nil {
		return ProcessType{Kind: KindOneshot}, nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Value {
		case "oneshot":
			return ProcessType{Kind: KindOneshot}, nil
		case "notify":
			return ProcessType{Kind: KindNotify}, nil
		default:
			return ProcessType{}, fmt.Errorf("unknown process type %q", node.Value)
		}
	case yaml.MappingNode:
		var m struct {
			Cronjob struct {
				Timer string `yaml:"timer"`
			} `yaml:"cronjob"`
		}
		if err := node.Decode(&m); err != nil {
			return ProcessType{}, fmt.Errorf("decoding process type: %w", err)
		}
		if m.Cronjob.Timer == "" {
			return ProcessType{}, fmt.Errorf("cronjob type requires a timer expression")
		}
		return ProcessType{Kind: KindCronjob, Timer: m.Cronjob.Timer}, nil
	default:
		return ProcessType{}, fmt.Errorf("invalid process type node")
	}
}

// parseEnv decodes the ordered list of single-entry maps into EnvLayer,
// preserving declaration order (yaml.v3's MappingNode.Content already
// preserves key order, unlike decoding into a Go map).
func parseEnv(nodes []yaml.Node) ([]EnvLayer, error) {
	result := make([]EnvLayer, 0, len(nodes))
	for i := range nodes {
		n := &nodes[i]
		if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
			return nil, fmt.Errorf("env entry %d must be a single-key mapping", i)
		}
		key := n.Content[0].Value
		valNode := n.Content[1]
		var layer EnvLayer
		layer.Name = key
		if valNode.Tag != "!!null" {
			v := valNode.Value
			layer.Value = &v
		}
		result = append(result, layer)
	}
	return result, nil
}

// LoadPath loads a single file, or recursively merges every file under
// a directory argument by name.
func LoadPath(path string) (Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("stat config path %s: %w", path, err)
	}
	if !info.IsDir() {
		return ParseFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return Config{}, fmt.Errorf("walking config dir %s: %w", path, err)
	}
	sort.Strings(files)

	merged := Config{}
	for _, f := range files {
		part, err := ParseFile(f)
		if err != nil {
			return Config{}, err
		}
		merged, err = Merge(merged, part)
		if err != nil {
			return Config{}, err
		}
	}
	return merged, nil
}
