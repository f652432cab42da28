package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Registry holds the loaded skill set behind an atomic snapshot pointer.
// Reads never block; a reload swaps the whole set at once and in-flight
// invocations finish against the snapshot they started with.
type Registry struct {
	snapshot atomic.Pointer[registrySnapshot]
}

type registrySnapshot struct {
	ordered []Skill
	byName  map[string]int
}

func NewRegistry() *Registry {
	registry := &Registry{}
	registry.snapshot.Store(&registrySnapshot{byName: map[string]int{}})
	return registry
}

// Replace atomically installs a new skill set. On any validation error the
// previous set remains active.
func (r *Registry) Replace(skills []Skill) error {
	snapshot := &registrySnapshot{
		ordered: make([]Skill, 0, len(skills)),
		byName:  make(map[string]int, len(skills)),
	}
	for _, skill := range skills {
		if skill.Name == "" {
			return fmt.Errorf("skill with empty name")
		}
		if _, exists := snapshot.byName[skill.Name]; exists {
			return fmt.Errorf("duplicate skill name: %s", skill.Name)
		}
		snapshot.byName[skill.Name] = len(snapshot.ordered)
		snapshot.ordered = append(snapshot.ordered, skill)
	}

	r.snapshot.Store(snapshot)
	return nil
}

// List returns the skills in load order.
func (r *Registry) List() []Skill {
	snapshot := r.snapshot.Load()
	skills := make([]Skill, len(snapshot.ordered))
	copy(skills, snapshot.ordered)
	return skills
}

// Get looks up a skill by name.
func (r *Registry) Get(name string) (Skill, bool) {
	snapshot := r.snapshot.Load()
	idx, ok := snapshot.byName[name]
	if !ok {
		return Skill{}, false
	}
	return snapshot.ordered[idx], true
}

// Invoke validates arguments against the skill's schema and executes it.
// Invocation never mutates the registry.
func (r *Registry) Invoke(ctx context.Context, name, arguments string) (string, error) {
	skill, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	args := map[string]any{}
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", &InvalidArgumentsError{Skill: name, Reason: "arguments are not a JSON object"}
		}
	}
	if err := validateArguments(skill, args); err != nil {
		return "", err
	}

	response, err := skill.execute(ctx, args)
	if err != nil {
		return "", &ExecutionError{Skill: name, Err: err}
	}
	return response, nil
}

func validateArguments(skill Skill, args map[string]any) error {
	for parameter, spec := range skill.Parameters {
		value, present := args[parameter]
		if !present {
			if spec.Required {
				return &InvalidArgumentsError{Skill: skill.Name, Reason: "missing required argument " + parameter}
			}
			continue
		}

		switch spec.Type {
		case "string":
			if _, ok := value.(string); !ok {
				return &InvalidArgumentsError{Skill: skill.Name, Reason: "argument " + parameter + " must be a string"}
			}
		case "number", "integer":
			if _, ok := value.(float64); !ok {
				return &InvalidArgumentsError{Skill: skill.Name, Reason: "argument " + parameter + " must be a number"}
			}
		case "boolean":
			if _, ok := value.(bool); !ok {
				return &InvalidArgumentsError{Skill: skill.Name, Reason: "argument " + parameter + " must be a boolean"}
			}
		}

		if len(spec.Enum) > 0 {
			str, _ := value.(string)
			allowed := false
			for _, candidate := range spec.Enum {
				if str == candidate {
					allowed = true
					break
				}
			}
			if !allowed {
				return &InvalidArgumentsError{Skill: skill.Name, Reason: "argument " + parameter + " is not one of the allowed values"}
			}
		}
	}

	for argument := range args {
		if _, known := skill.Parameters[argument]; !known {
			return &InvalidArgumentsError{Skill: skill.Name, Reason: "unknown argument " + argument}
		}
	}
	return nil
}
