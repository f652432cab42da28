// Package skills models the assistant's named capabilities: content skills
// (stories, poems) and playback-control skills, loaded from manifest
// directories and exposed to the reasoning loop as tools.
package skills

import (
	"context"
	"fmt"
)

// ParameterSpec describes one argument a skill accepts.
type ParameterSpec struct {
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Enum        []string `yaml:"enum"`
	Required    bool     `yaml:"required"`
}

// Skill is a single invokable capability. Skills are read-only after load and
// shared across sessions.
type Skill struct {
	Name        string
	Description string
	Parameters  map[string]ParameterSpec

	execute func(ctx context.Context, args map[string]any) (string, error)
}

// NewSkill wraps an executable as a skill.
func NewSkill(name, description string, parameters map[string]ParameterSpec, execute func(ctx context.Context, args map[string]any) (string, error)) Skill {
	return Skill{
		Name:        name,
		Description: description,
		Parameters:  parameters,
		execute:     execute,
	}
}

// ErrNotFound is returned when invoking a skill the registry does not hold.
var ErrNotFound = fmt.Errorf("skill not found")

// InvalidArgumentsError is returned when arguments fail schema validation
// before execution.
type InvalidArgumentsError struct {
	Skill  string
	Reason string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for skill %s: %s", e.Skill, e.Reason)
}

// ExecutionError is returned when a skill's executable fails.
type ExecutionError struct {
	Skill string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("skill %s failed: %v", e.Skill, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
