package orchestration

import (
	"strings"
	"sync"
)

// minSentenceRunes keeps abbreviations and lone punctuation from producing
// degenerate synthesis chunks.
const minSentenceRunes = 4

var sentenceTerminators = []rune{'.', '!', '?', '\n', '。', '！', '？'}

// sentenceBuffer accumulates streamed tokens and hands them out again as
// complete sentences. Producers call AddToken/TextComplete, the synthesis
// side consumes Sentences as a blocking iterator.
type sentenceBuffer struct {
	mu                sync.Mutex
	partial           strings.Builder
	sentences         []string
	sentencesConsumed int
	textComplete      bool
	updateSignal      chan struct{}
	cleared           bool
}

func newSentenceBuffer() *sentenceBuffer {
	return &sentenceBuffer{
		updateSignal: make(chan struct{}, 1),
	}
}

func (b *sentenceBuffer) AddToken(token string) {
	b.mu.Lock()
	b.partial.WriteString(token)
	b.extractSentences()
	b.mu.Unlock()
	b.signalUpdate()
}

func (b *sentenceBuffer) TextComplete() {
	b.mu.Lock()
	if tail := strings.TrimSpace(b.partial.String()); tail != "" {
		b.sentences = append(b.sentences, tail)
	}
	b.partial.Reset()
	b.textComplete = true
	b.mu.Unlock()
	b.signalUpdate()
}

// Sentences yields complete sentences in stream order, blocking until the
// next sentence is available or the text is complete.
func (b *sentenceBuffer) Sentences(yield func(string) bool) {
	for {
		b.mu.Lock()
		if b.cleared {
			b.mu.Unlock()
			return
		}

		if b.sentencesConsumed < len(b.sentences) {
			sentence := b.sentences[b.sentencesConsumed]
			b.sentencesConsumed++
			b.mu.Unlock()
			if !yield(sentence) {
				return
			}
			continue
		}

		if b.textComplete {
			b.mu.Unlock()
			return
		}

		b.mu.Unlock()
		<-b.updateSignal
	}
}

func (b *sentenceBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return strings.Join(b.sentences, " ")
}

func (b *sentenceBuffer) Clear() {
	b.mu.Lock()
	b.cleared = true
	b.mu.Unlock()
	b.signalUpdate()
}

// extractSentences must be called with mu held.
func (b *sentenceBuffer) extractSentences() {
	text := b.partial.String()
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		if !isTerminator(r) {
			continue
		}
		if i-start+1 < minSentenceRunes {
			continue
		}

		sentence := strings.TrimSpace(string(runes[start : i+1]))
		if sentence != "" {
			b.sentences = append(b.sentences, sentence)
		}
		start = i + 1
	}

	if start > 0 {
		b.partial.Reset()
		b.partial.WriteString(string(runes[start:]))
	}
}

func isTerminator(r rune) bool {
	for _, terminator := range sentenceTerminators {
		if r == terminator {
			return true
		}
	}
	return false
}

func (b *sentenceBuffer) signalUpdate() {
	select {
	case b.updateSignal <- struct{}{}:
	default:
	}
}
