package llms

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
)

// ParameterBase describes a single tool parameter in the schema handed to the
// model.
type ParameterBase struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Tool is a callable function exposed to the model.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`

	execute func(arguments string) (string, error)
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

type ToolParameters struct {
	Type       string                   `json:"type"`
	Properties map[string]ParameterBase `json:"properties"`
	Required   []string                 `json:"required,omitempty"`
}

// NewTool wraps a typed function as a callable tool. Arguments arrive as a
// JSON document and are unmarshalled into T before execution. When parameters
// is nil the schema is reflected from T.
func NewTool[T any](name, description string, parameters map[string]ParameterBase, execute func(T) (string, error)) Tool {
	if parameters == nil {
		parameters = reflectParameters[T]()
	}

	return Tool{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters: ToolParameters{
				Type:       "object",
				Properties: parameters,
				Required:   sortedKeys(parameters),
			},
		},
		execute: func(arguments string) (string, error) {
			var args T
			if arguments != "" {
				if err := json.Unmarshal([]byte(arguments), &args); err != nil {
					return "", fmt.Errorf("failed to parse tool arguments: %w", err)
				}
			}
			return execute(args)
		},
	}
}

// NewRawTool wraps a function taking raw JSON arguments, for tools whose
// schema is only known at runtime.
func NewRawTool(name, description string, parameters ToolParameters, execute func(arguments string) (string, error)) Tool {
	return Tool{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
		execute: execute,
	}
}

// Execute runs the tool with the raw JSON arguments the model produced.
func (t Tool) Execute(arguments string) (string, error) {
	if t.execute == nil {
		return "", fmt.Errorf("tool %s has no executable", t.Function.Name)
	}
	return t.execute(arguments)
}

func reflectParameters[T any]() map[string]ParameterBase {
	reflector := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	schema := reflector.Reflect(new(T))

	parameters := map[string]ParameterBase{}
	if schema.Properties == nil {
		return parameters
	}
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		parameter := ParameterBase{
			Type:        pair.Value.Type,
			Description: pair.Value.Description,
		}
		for _, value := range pair.Value.Enum {
			if s, ok := value.(string); ok {
				parameter.Enum = append(parameter.Enum, s)
			}
		}
		parameters[pair.Key] = parameter
	}
	return parameters
}

func sortedKeys(parameters map[string]ParameterBase) []string {
	keys := make([]string, 0, len(parameters))
	for key := range parameters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
