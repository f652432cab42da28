package orchestration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fablevoice/fable-core/core/audio"
	"github.com/fablevoice/fable-core/core/events"
	"github.com/fablevoice/fable-core/core/skills"
	"github.com/fablevoice/fable-core/core/speechtotext"
	"github.com/fablevoice/fable-core/core/store"
	"github.com/fablevoice/fable-core/core/vad"
)

const (
	// syntheticTranscriptPrompt stands in for the user turn when transcription
	// exhausted its retries.
	syntheticTranscriptPrompt = "(unintelligible audio)"

	// fallbackTranscriptionResponse is spoken when the model itself cannot
	// answer the synthetic turn.
	fallbackTranscriptionResponse = "Sorry, I didn't catch that. Could you say it again?"
)

// Orchestrator ties one session together: it segments incoming audio into
// utterances, transcribes them, drives the reasoning loop and streams the
// response text and speech back over a single ordered event channel.
type Orchestrator struct {
	mux           *streamMultiplexer
	segmenter     *audioSegmenter
	transcription *transcriptionGateway
	reasoning     *reasoningLoop
	synthesis     *synthesisPipeline
	conversation  *conversation

	intents IntentDetector
	library store.Store

	assistantName string
	systemPrompt  string
	encoding      audio.EncodingInfo

	triggers chan trigger

	turnMu     sync.Mutex
	turnCancel context.CancelFunc
	turnBuffer *sentenceBuffer

	running   atomic.Bool
	closed    chan struct{}
	runDone   chan struct{}
	closeOnce sync.Once

	wg sync.WaitGroup
}

type trigger struct {
	prompt      string
	utteranceID string
	synthetic   bool
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		conversation:  newConversation(),
		transcription: newTranscriptionGateway(nil),
		reasoning:     newReasoningLoop(nil, nil, nil),
		assistantName: defaultAssistantName,
		encoding:      audio.GetDefaultEncodingInfo(),
		triggers:      make(chan trigger, 8),
		closed:        make(chan struct{}),
		runDone:       make(chan struct{}),
	}

	segmenterConfig := defaultSegmenterConfig()
	eventBuffer := 64
	builder := &orchestratorBuilder{
		orchestrator:    o,
		segmenterConfig: &segmenterConfig,
		eventBuffer:     &eventBuffer,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if o.synthesis != nil {
		o.synthesis.voice = builder.voice
		o.synthesis.speed = builder.speed
	}

	o.mux = newStreamMultiplexer(eventBuffer)
	o.segmenter = newAudioSegmenter(builder.detector, segmenterConfig,
		func(utteranceID string) {
			o.mux.Publish(events.NewUserSpeechStarted(utteranceID))
		},
		func(utterance audio.Utterance) {
			o.mux.Publish(events.NewUserSpeechEnded(utterance.ID, string(utterance.Reason)))
			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				o.handleUtterance(utterance)
			}()
		},
	)

	if o.systemPrompt == "" {
		o.systemPrompt = defaultSystemPrompt(o.assistantName, o.reasoning.registry)
	}
	return o
}

// Events returns the session's ordered event channel. It is closed when the
// session ends; the consumer must drain it until then.
func (o *Orchestrator) Events() <-chan events.Event {
	return o.mux.Events()
}

// Run processes turns until ctx is cancelled or the orchestrator is closed.
// Call it once per orchestrator.
func (o *Orchestrator) Run(ctx context.Context) {
	if !o.running.CompareAndSwap(false, true) {
		return
	}
	defer func() {
		o.wg.Wait()
		o.mux.Close()
		close(o.runDone)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.closed:
			return
		case trig := <-o.triggers:
			o.processTurn(ctx, trig)
		}
	}
}

// ProcessAudio feeds one capture frame into the segmenter.
func (o *Orchestrator) ProcessAudio(ctx context.Context, frame audio.Frame) error {
	select {
	case <-o.closed:
		return ErrSessionClosed
	default:
	}

	if frame.Encoding.IsZero() {
		frame.Encoding = o.encoding
	}
	o.segmenter.ProcessFrame(ctx, frame)
	return nil
}

// SendPrompt submits a text prompt, bypassing audio capture and
// transcription.
func (o *Orchestrator) SendPrompt(prompt string) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return
	}
	o.mux.Publish(events.NewUserTranscript("", prompt))
	o.enqueue(trigger{prompt: prompt})
}

// CancelTurn cancels the turn currently being processed. Events of the
// cancelled turn that are still in flight are discarded.
func (o *Orchestrator) CancelTurn() {
	o.turnMu.Lock()
	cancel := o.turnCancel
	buffer := o.turnBuffer
	o.turnMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if buffer != nil {
		buffer.Clear()
	}
}

// StartUtteranceOverride force-closes the open utterance, for clients with a
// push-to-talk style end-of-speech signal.
func (o *Orchestrator) StartUtteranceOverride() {
	o.segmenter.ForceClose(audio.CloseReasonOverride)
}

// SetDetector swaps the speech detection backend mid-session and returns the
// previous one, which the caller should close.
func (o *Orchestrator) SetDetector(detector vad.Detector) vad.Detector {
	return o.segmenter.SetDetector(detector)
}

func (o *Orchestrator) Detector() vad.Detector {
	return o.segmenter.Detector()
}

// PlaybackSink returns a sink that surfaces playback-skill commands as
// session events, for wiring into [skills.WithPlaybackSink].
func (o *Orchestrator) PlaybackSink() skills.PlaybackSink {
	return func(action, track string) {
		o.mux.Publish(events.NewPlaybackControl(action, track))
	}
}

func (o *Orchestrator) Conversation() []Turn {
	return o.conversation.history()
}

// Close ends the session. The open utterance is closed with the disconnect
// reason and the event channel is closed once in-flight work drained.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.segmenter.ForceClose(audio.CloseReasonDisconnect)
		close(o.closed)

		if o.running.Load() {
			<-o.runDone
		} else {
			o.wg.Wait()
			o.mux.Close()
		}

		if detector := o.segmenter.Detector(); detector != nil {
			if err := detector.Close(); err != nil {
				logger.Warn("failed to close speech detector", "error", err)
			}
		}
	})
}

func (o *Orchestrator) enqueue(trig trigger) {
	select {
	case o.triggers <- trig:
	case <-o.closed:
	}
}

// handleUtterance transcribes a closed utterance and turns it into a trigger.
// Empty audio is dropped; an exhausted transcription ends in a synthetic turn
// asking the user to repeat themselves.
func (o *Orchestrator) handleUtterance(utterance audio.Utterance) {
	ctx, span := tracer.Start(context.Background(), "handle utterance")
	defer span.End()
	span.SetAttributes(attribute.String("utterance.id", utterance.ID))

	transcript, err := o.transcription.transcribe(ctx, utterance)
	if err != nil {
		if speechtotext.KindOf(err) == speechtotext.ErrorKindEmptyAudio {
			span.AddEvent("dropped empty utterance")
			return
		}
		span.RecordError(err)
		o.mux.Publish(events.NewSessionError("transcription", err.Error()))
		o.enqueue(trigger{utteranceID: utterance.ID, synthetic: true})
		return
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		span.AddEvent("dropped empty transcript")
		return
	}

	o.mux.Publish(events.NewUserTranscript(utterance.ID, transcript))
	o.enqueue(trigger{prompt: transcript, utteranceID: utterance.ID})
}

func (o *Orchestrator) processTurn(ctx context.Context, trig trigger) {
	turnID := uuid.NewString()
	stream := o.mux.BeginTurn(turnID)
	if stream == nil {
		return
	}

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	buffer := newSentenceBuffer()

	o.turnMu.Lock()
	o.turnCancel = cancel
	o.turnBuffer = buffer
	o.turnMu.Unlock()
	defer func() {
		o.turnMu.Lock()
		o.turnCancel = nil
		o.turnBuffer = nil
		o.turnMu.Unlock()
	}()

	prompt := trig.prompt
	if trig.synthetic {
		prompt = syntheticTranscriptPrompt
	}
	o.conversation.begin(turnID, prompt, trig.synthetic)

	synthesisDone := make(chan struct{})
	if o.synthesis != nil {
		go func() {
			defer close(synthesisDone)
			o.synthesis.run(turnCtx, turnID, buffer.Sentences, stream)
		}()
	} else {
		close(synthesisDone)
	}

	var err error
	switch {
	case trig.synthetic:
		// A synthetic turn runs through the model like any other; the canned
		// line only covers a model that errors or stays silent.
		err = o.reasoning.run(turnCtx, turnID, o.systemPrompt, o.conversation, stream, buffer)
		if turnCtx.Err() == nil && (err != nil || o.conversation.activeResponse() == "") {
			o.respondDirectly(turnID, fallbackTranscriptionResponse, stream, buffer)
			err = nil
		}
	default:
		if !o.serveContentIntent(turnCtx, turnID, trig.prompt, stream, buffer) {
			err = o.reasoning.run(turnCtx, turnID, o.systemPrompt, o.conversation, stream, buffer)
		}
	}

	buffer.TextComplete()
	<-synthesisDone

	switch {
	case turnCtx.Err() != nil && ctx.Err() == nil:
		stream.Cancel()
		o.conversation.finalize(true, false)
	case err != nil && !errors.Is(err, context.Canceled):
		o.mux.Publish(events.NewSessionError("reasoning", err.Error()))
		stream.Fail(err.Error())
		o.conversation.finalize(false, true)
	default:
		stream.Done()
		o.conversation.finalize(false, false)
	}
}

// respondDirectly streams a fixed response without consulting the model.
func (o *Orchestrator) respondDirectly(turnID, response string, stream *turnStream, buffer *sentenceBuffer) {
	o.conversation.appendResponse(response)
	buffer.AddToken(response)
	stream.Publish(events.NewAssistantResponseSegment(turnID, response))
}

// serveContentIntent short-circuits plain story and song requests by
// streaming the stored content directly. It reports false when the turn needs
// the full reasoning loop.
func (o *Orchestrator) serveContentIntent(ctx context.Context, turnID, prompt string, stream *turnStream, buffer *sentenceBuffer) bool {
	if o.intents == nil || o.library == nil {
		return false
	}

	intent, err := o.intents.DetectIntent(ctx, prompt)
	if err != nil {
		logger.WarnContext(ctx, "intent detection failed, using the reasoning loop", "error", err)
		return false
	}

	var collection string
	switch intent.Kind {
	case IntentStory:
		collection = "stories"
	case IntentSong:
		collection = "songs"
	default:
		return false
	}

	documents, err := o.library.List(ctx, collection)
	if err != nil || len(documents) == 0 {
		return false
	}

	document, found := matchDocument(documents, intent.Name)
	if !found {
		return false
	}

	for _, line := range strings.Split(document.Content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		o.respondDirectly(turnID, line+"\n", stream, buffer)
		if ctx.Err() != nil {
			return true
		}
	}
	return true
}

func matchDocument(documents []store.Document, name string) (store.Document, bool) {
	if name == "" {
		return documents[0], true
	}

	name = strings.ToLower(name)
	for _, document := range documents {
		title := strings.ToLower(document.Title)
		if title == name || strings.Contains(title, name) {
			return document, true
		}
	}
	return store.Document{}, false
}
