package skills

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/fablevoice/fable-core/core/store"
)

// Built-in action identifiers a manifest may bind a tool to.
const (
	actionTell   = "tell"
	actionList   = "list"
	actionPlay   = "play"
	actionPause  = "pause"
	actionResume = "resume"
	actionStop   = "stop"
	actionNext   = "next"
)

func (l *Loader) bindAction(action, collection string) (func(ctx context.Context, args map[string]any) (string, error), error) {
	switch action {
	case actionTell:
		return l.tellAction(collection), nil
	case actionList:
		return l.listAction(collection), nil
	case actionPlay:
		return l.playAction(collection), nil
	case actionPause, actionResume, actionStop, actionNext:
		return l.controlAction(action), nil
	}
	return nil, fmt.Errorf("unknown action: %s", action)
}

// tellAction reads a named document, or a random one when no name is given.
func (l *Loader) tellAction(collection string) func(ctx context.Context, args map[string]any) (string, error) {
	return func(ctx context.Context, args map[string]any) (string, error) {
		name, _ := args["name"].(string)

		var doc store.Document
		var err error
		if name == "" {
			doc, err = l.randomDocument(ctx, collection)
		} else {
			doc, err = l.findDocument(ctx, collection, name)
		}
		if err != nil {
			return "", err
		}

		if doc.Title != "" {
			return doc.Title + "\n\n" + doc.Content, nil
		}
		return doc.Content, nil
	}
}

func (l *Loader) listAction(collection string) func(ctx context.Context, args map[string]any) (string, error) {
	return func(ctx context.Context, _ map[string]any) (string, error) {
		documents, err := l.store.List(ctx, collection)
		if err != nil {
			return "", err
		}
		if len(documents) == 0 {
			return "Nothing is available right now.", nil
		}

		titles := make([]string, 0, len(documents))
		for _, doc := range documents {
			title := doc.Title
			if title == "" {
				title = doc.ID
			}
			titles = append(titles, title)
		}
		return "Available: " + strings.Join(titles, ", "), nil
	}
}

// playAction picks the named track, or a random one, and emits a play
// command through the sink.
func (l *Loader) playAction(collection string) func(ctx context.Context, args map[string]any) (string, error) {
	return func(ctx context.Context, args map[string]any) (string, error) {
		name, _ := args["name"].(string)

		var doc store.Document
		var err error
		if name == "" {
			doc, err = l.randomDocument(ctx, collection)
		} else {
			doc, err = l.findDocument(ctx, collection, name)
		}
		if err != nil {
			return "", err
		}

		title := doc.Title
		if title == "" {
			title = doc.ID
		}
		l.playback(actionPlay, doc.ID)
		return "Now playing: " + title, nil
	}
}

func (l *Loader) controlAction(action string) func(ctx context.Context, args map[string]any) (string, error) {
	return func(_ context.Context, _ map[string]any) (string, error) {
		l.playback(action, "")
		return "Playback " + action + " requested.", nil
	}
}

// findDocument resolves a name against document ids first, then titles,
// case-insensitively.
func (l *Loader) findDocument(ctx context.Context, collection, name string) (store.Document, error) {
	doc, err := l.store.Read(ctx, collection, name)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Document{}, err
	}

	documents, err := l.store.List(ctx, collection)
	if err != nil {
		return store.Document{}, err
	}
	for _, candidate := range documents {
		if strings.EqualFold(candidate.Title, name) || strings.EqualFold(candidate.ID, name) {
			return candidate, nil
		}
	}
	return store.Document{}, fmt.Errorf("no match for %q in %s", name, collection)
}

func (l *Loader) randomDocument(ctx context.Context, collection string) (store.Document, error) {
	documents, err := l.store.List(ctx, collection)
	if err != nil {
		return store.Document{}, err
	}
	if len(documents) == 0 {
		return store.Document{}, fmt.Errorf("collection %s is empty", collection)
	}
	return documents[rand.Intn(len(documents))], nil
}
