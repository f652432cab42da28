package skills

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/fablevoice/fable-core/core/store"
)

// Loader builds skills from manifest directories. Each subdirectory of the
// skills root holds one skill pack: a skill.yaml manifest plus its content
// collection in the document store.
type Loader struct {
	store    store.Store
	playback PlaybackSink
}

// PlaybackSink receives playback commands produced by playback-action skills.
// Track is set for "play", empty otherwise.
type PlaybackSink func(action, track string)

type LoaderOption func(*Loader)

// WithPlaybackSink wires playback-action skills to a command sink.
func WithPlaybackSink(sink PlaybackSink) LoaderOption {
	return func(l *Loader) {
		l.playback = sink
	}
}

func NewLoader(contentStore store.Store, opts ...LoaderOption) *Loader {
	loader := &Loader{
		store:    contentStore,
		playback: func(action, track string) {},
	}
	for _, opt := range opts {
		opt(loader)
	}
	return loader
}

type packManifest struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Content     string         `yaml:"content"`
	Tools       []toolManifest `yaml:"tools"`
}

type toolManifest struct {
	Name        string                   `yaml:"name"`
	Description string                   `yaml:"description"`
	Action      string                   `yaml:"action"`
	Parameters  map[string]ParameterSpec `yaml:"parameters"`
}

// Load scans the skills root and returns the full flattened skill set. A
// broken manifest fails the whole load so a partial set is never installed.
func (l *Loader) Load(_ context.Context, root string) ([]Skill, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan skills root %s: %w", root, err)
	}

	packs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			packs = append(packs, entry.Name())
		}
	}
	sort.Strings(packs)

	var skills []Skill
	for _, pack := range packs {
		manifestPath := filepath.Join(root, pack, "skill.yaml")
		raw, err := os.ReadFile(manifestPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read manifest %s: %w", manifestPath, err)
		}

		var manifest packManifest
		if err := yaml.Unmarshal(raw, &manifest); err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", manifestPath, err)
		}
		if manifest.Name == "" {
			return nil, fmt.Errorf("manifest %s has no name", manifestPath)
		}

		for _, tool := range manifest.Tools {
			skill, err := l.bindTool(manifest, tool)
			if err != nil {
				return nil, fmt.Errorf("failed to bind tool %s in %s: %w", tool.Name, manifestPath, err)
			}
			skills = append(skills, skill)
		}
	}
	return skills, nil
}

// LoadInto loads the skills root and atomically installs the result. On any
// error the registry keeps its previous set.
func (l *Loader) LoadInto(ctx context.Context, root string, registry *Registry) error {
	skills, err := l.Load(ctx, root)
	if err != nil {
		return err
	}
	return registry.Replace(skills)
}

func (l *Loader) bindTool(manifest packManifest, tool toolManifest) (Skill, error) {
	if tool.Name == "" {
		return Skill{}, fmt.Errorf("tool has no name")
	}

	execute, err := l.bindAction(tool.Action, manifest.Content)
	if err != nil {
		return Skill{}, err
	}

	parameters := tool.Parameters
	if parameters == nil {
		parameters = map[string]ParameterSpec{}
	}
	return NewSkill(tool.Name, tool.Description, parameters, execute), nil
}
