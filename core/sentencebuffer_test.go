package orchestration

import (
	"testing"
	"time"
)

func collectSentences(t *testing.T, buf *sentenceBuffer) []string {
	t.Helper()

	done := make(chan []string, 1)
	go func() {
		var sentences []string
		buf.Sentences(func(sentence string) bool {
			sentences = append(sentences, sentence)
			return true
		})
		done <- sentences
	}()

	select {
	case sentences := <-done:
		return sentences
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sentence iterator")
		return nil
	}
}

func TestSentenceBufferGroupsTokensIntoSentences(t *testing.T) {
	buf := newSentenceBuffer()
	for _, token := range []string{"Once", " upon", " a", " time.", " There", " was", " a", " dragon!", " The", " end"} {
		buf.AddToken(token)
	}
	buf.TextComplete()

	sentences := collectSentences(t, buf)
	expected := []string{"Once upon a time.", "There was a dragon!", "The end"}
	if len(sentences) != len(expected) {
		t.Fatalf("expected %d sentences, got %d: %q", len(expected), len(sentences), sentences)
	}
	for i := range expected {
		if sentences[i] != expected[i] {
			t.Errorf("expected sentence %d to be %q, got %q", i, expected[i], sentences[i])
		}
	}
}

func TestSentenceBufferKeepsShortRunsTogether(t *testing.T) {
	buf := newSentenceBuffer()
	buf.AddToken("Dr. Smith waved goodbye.")
	buf.TextComplete()

	sentences := collectSentences(t, buf)
	if len(sentences) != 1 {
		t.Fatalf("expected abbreviation to stay inside one sentence, got %q", sentences)
	}
}

func TestSentenceBufferFlushesTailOnComplete(t *testing.T) {
	buf := newSentenceBuffer()
	buf.AddToken("And they lived happily")
	buf.TextComplete()

	sentences := collectSentences(t, buf)
	if len(sentences) != 1 || sentences[0] != "And they lived happily" {
		t.Errorf("expected unterminated tail to flush, got %q", sentences)
	}
}

func TestSentenceBufferIteratorUnblocksOnClear(t *testing.T) {
	buf := newSentenceBuffer()

	done := make(chan struct{})
	go func() {
		buf.Sentences(func(string) bool { return true })
		close(done)
	}()

	buf.Clear()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected iterator to return after Clear")
	}
}
