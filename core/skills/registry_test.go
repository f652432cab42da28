package skills

import (
	"context"
	"errors"
	"testing"
)

func echoSkill(name string, parameters map[string]ParameterSpec) Skill {
	return NewSkill(name, "echoes", parameters, func(_ context.Context, args map[string]any) (string, error) {
		return name, nil
	})
}

func TestRegistryReplaceRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Replace([]Skill{echoSkill("a", nil)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := registry.Replace([]Skill{echoSkill("b", nil), echoSkill("b", nil)})
	if err == nil {
		t.Fatal("expected duplicate name error")
	}

	// The previous set must survive a failed replace.
	if _, ok := registry.Get("a"); !ok {
		t.Error("expected previous skill set to remain active")
	}
	if _, ok := registry.Get("b"); ok {
		t.Error("expected failed set not to be installed")
	}
}

func TestRegistryListKeepsLoadOrder(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Replace([]Skill{echoSkill("tell_story", nil), echoSkill("list_stories", nil)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	listed := registry.List()
	if len(listed) != 2 {
		t.Fatalf("expected 2 skills, got %d", len(listed))
	}
	if listed[0].Name != "tell_story" || listed[1].Name != "list_stories" {
		t.Errorf("expected load order preserved, got %s, %s", listed[0].Name, listed[1].Name)
	}
}

func TestRegistryInvokeUnknownSkill(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Invoke(context.Background(), "missing", "{}")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryInvokeValidatesArguments(t *testing.T) {
	registry := NewRegistry()
	parameters := map[string]ParameterSpec{
		"name": {Type: "string", Required: true},
	}
	if err := registry.Replace([]Skill{echoSkill("tell_story", parameters)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	var invalidErr *InvalidArgumentsError
	if _, err := registry.Invoke(ctx, "tell_story", "{}"); !errors.As(err, &invalidErr) {
		t.Errorf("expected InvalidArgumentsError for missing argument, got %v", err)
	}
	if _, err := registry.Invoke(ctx, "tell_story", `{"name":42}`); !errors.As(err, &invalidErr) {
		t.Errorf("expected InvalidArgumentsError for wrong type, got %v", err)
	}
	if _, err := registry.Invoke(ctx, "tell_story", `{"name":"dragon","extra":true}`); !errors.As(err, &invalidErr) {
		t.Errorf("expected InvalidArgumentsError for unknown argument, got %v", err)
	}
	if _, err := registry.Invoke(ctx, "tell_story", `{"name":"dragon"}`); err != nil {
		t.Errorf("expected valid arguments to pass, got %v", err)
	}
}

func TestRegistryInvokeWrapsExecutionError(t *testing.T) {
	registry := NewRegistry()
	failing := NewSkill("broken", "always fails", nil, func(_ context.Context, _ map[string]any) (string, error) {
		return "", errors.New("boom")
	})
	if err := registry.Replace([]Skill{failing}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := registry.Invoke(context.Background(), "broken", "")
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if execErr.Skill != "broken" {
		t.Errorf("expected skill name broken, got %q", execErr.Skill)
	}
}

func TestRegistryInFlightInvocationSurvivesReload(t *testing.T) {
	registry := NewRegistry()

	started := make(chan struct{})
	release := make(chan struct{})
	slow := NewSkill("slow", "waits for release", nil, func(_ context.Context, _ map[string]any) (string, error) {
		close(started)
		<-release
		return "from first snapshot", nil
	})
	if err := registry.Replace([]Skill{slow}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := make(chan string, 1)
	go func() {
		response, err := registry.Invoke(context.Background(), "slow", "")
		if err != nil {
			t.Errorf("unexpected invoke error: %v", err)
		}
		result <- response
	}()

	<-started
	if err := registry.Replace([]Skill{echoSkill("different", nil)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(release)

	if response := <-result; response != "from first snapshot" {
		t.Errorf("expected invocation to complete against its snapshot, got %q", response)
	}
}
