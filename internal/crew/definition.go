// Package crew runs a fixed sequence of tasks, each handled by one of a set
// of role-playing agents described in YAML.
package crew

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var builtin embed.FS

// AgentSpec describes one crew member.
type AgentSpec struct {
	Role      string `yaml:"role"`
	Goal      string `yaml:"goal"`
	Backstory string `yaml:"backstory"`
	LLM       string `yaml:"llm"`
	MaxIter   int    `yaml:"max_iter"`
}

// TaskSpec describes one step of the crew. A nil Context hands the task the
// outputs of every earlier task; an empty one hands it none.
type TaskSpec struct {
	Name           string   `yaml:"-"`
	Description    string   `yaml:"description"`
	ExpectedOutput string   `yaml:"expected_output"`
	Agent          string   `yaml:"agent"`
	Context        []string `yaml:"context"`
	OutputFile     string   `yaml:"output_file"`
}

type Definition struct {
	Agents map[string]AgentSpec
	// Tasks run in file order.
	Tasks []TaskSpec
}

// Load reads agents.yaml and tasks.yaml from dir, or the built-in debate
// crew when dir is empty.
func Load(dir string) (*Definition, error) {
	var fsys fs.FS
	if dir == "" {
		sub, err := fs.Sub(builtin, "config")
		if err != nil {
			return nil, err
		}
		fsys = sub
	} else {
		fsys = os.DirFS(dir)
	}

	agentsRaw, err := fs.ReadFile(fsys, "agents.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading agents: %w", err)
	}
	tasksRaw, err := fs.ReadFile(fsys, "tasks.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading tasks: %w", err)
	}
	return Parse(agentsRaw, tasksRaw)
}

// Parse decodes and validates a crew definition.
func Parse(agentsYAML, tasksYAML []byte) (*Definition, error) {
	def := &Definition{}
	if err := yaml.Unmarshal(agentsYAML, &def.Agents); err != nil {
		return nil, fmt.Errorf("parsing agents: %w", err)
	}

	// Decode through a node so the task order of the file is kept.
	var doc yaml.Node
	if err := yaml.Unmarshal(tasksYAML, &doc); err != nil {
		return nil, fmt.Errorf("parsing tasks: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("parsing tasks: expected a mapping of task names")
	}
	m := doc.Content[0]
	for i := 0; i+1 < len(m.Content); i += 2 {
		var task TaskSpec
		if err := m.Content[i+1].Decode(&task); err != nil {
			return nil, fmt.Errorf("parsing task %s: %w", m.Content[i].Value, err)
		}
		task.Name = m.Content[i].Value
		def.Tasks = append(def.Tasks, task)
	}

	if err := def.validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func (d *Definition) validate() error {
	if len(d.Tasks) == 0 {
		return errors.New("crew has no tasks")
	}
	seen := map[string]bool{}
	for _, t := range d.Tasks {
		if _, ok := d.Agents[t.Agent]; !ok {
			return fmt.Errorf("task %s: unknown agent %q", t.Name, t.Agent)
		}
		for _, c := range t.Context {
			if !seen[c] {
				return fmt.Errorf("task %s: context %q must name an earlier task", t.Name, c)
			}
		}
		if t.OutputFile != "" && filepath.IsAbs(t.OutputFile) {
			return fmt.Errorf("task %s: output file must be relative", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}
