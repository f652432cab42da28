// Command fable-server exposes voice assistant sessions over websockets. Each
// connection gets its own orchestrator wired to the configured speech, model
// and skill providers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	orchestration "github.com/fablevoice/fable-core/core"
	"github.com/fablevoice/fable-core/core/llms/openai"
	"github.com/fablevoice/fable-core/core/skills"
	"github.com/fablevoice/fable-core/core/speechtotext"
	sttfunasr "github.com/fablevoice/fable-core/core/speechtotext/funasr"
	sttsiliconflow "github.com/fablevoice/fable-core/core/speechtotext/siliconflow"
	"github.com/fablevoice/fable-core/core/store"
	"github.com/fablevoice/fable-core/core/texttospeech"
	ttsdeepgram "github.com/fablevoice/fable-core/core/texttospeech/deepgram"
	ttssiliconflow "github.com/fablevoice/fable-core/core/texttospeech/siliconflow"
	"github.com/fablevoice/fable-core/core/transport"
	"github.com/fablevoice/fable-core/core/vad"
	vaddeepgram "github.com/fablevoice/fable-core/core/vad/deepgram"
	"github.com/fablevoice/fable-core/core/vad/energy"
	"github.com/fablevoice/fable-core/core/vad/silero"
)

type config struct {
	addr            string
	skillsDir       string
	contentDir      string
	vadBackend      string
	voice           string
	assistantName   string
	intentDetection bool
}

func main() {
	_ = godotenv.Load()

	cfg := config{}
	flag.StringVar(&cfg.addr, "addr", ":8080", "listen address")
	flag.StringVar(&cfg.skillsDir, "skills", "./skills", "skill pack root directory")
	flag.StringVar(&cfg.contentDir, "content", "./content", "content library root directory")
	flag.StringVar(&cfg.vadBackend, "vad", vad.BackendEnergy, "speech detection backend (energy, silero, deepgram)")
	flag.StringVar(&cfg.voice, "voice", "", "synthesis voice")
	flag.StringVar(&cfg.assistantName, "name", "Fable", "assistant name")
	flag.BoolVar(&cfg.intentDetection, "intent-detection", false, "serve plain story and song requests straight from the library")
	flag.Parse()

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config) error {
	apiKey, ok := os.LookupEnv("OPENAI_API_KEY")
	if !ok {
		return fmt.Errorf("OPENAI_API_KEY not set")
	}

	var llmOpts []openai.ClientOption
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(baseURL))
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		llmOpts = append(llmOpts, openai.WithModel(model))
	}
	llm := openai.NewClient(apiKey, llmOpts...)

	transcriber, err := buildTranscriber()
	if err != nil {
		return err
	}
	synthesizer := buildSynthesizer(cfg.voice)
	library := store.NewDirStore(cfg.contentDir)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  16 * 1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/session", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("failed to upgrade connection", "error", err)
			return
		}
		defer conn.Close()

		detector, err := buildDetector(r.Context(), cfg.vadBackend)
		if err != nil {
			slog.Error("failed to build detector", "backend", cfg.vadBackend, "error", err)
			return
		}

		registry := skills.NewRegistry()
		opts := []orchestration.OrchestratorOption{
			orchestration.WithStreamingLLM(llm),
			orchestration.WithTranscriber(transcriber),
			orchestration.WithDetector(detector),
			orchestration.WithSkillRegistry(registry),
			orchestration.WithAssistantName(cfg.assistantName),
		}
		if synthesizer != nil {
			opts = append(opts, orchestration.WithSynthesizer(synthesizer))
			if cfg.voice != "" {
				opts = append(opts, orchestration.WithVoice(cfg.voice))
			}
		}
		if cfg.intentDetection {
			opts = append(opts, orchestration.WithIntentDetection(
				orchestration.NewLLMIntentDetector(llm), library))
		}
		orchestrator := orchestration.NewOrchestrator(opts...)

		loader := skills.NewLoader(library, skills.WithPlaybackSink(orchestrator.PlaybackSink()))
		if err := loader.LoadInto(r.Context(), cfg.skillsDir, registry); err != nil {
			slog.Warn("failed to load skills, continuing without them", "error", err)
		}

		session := transport.NewSession(conn, orchestrator,
			transport.WithDetectorFactory(func(backend string) (vad.Detector, error) {
				return buildDetector(r.Context(), backend)
			}),
		)
		if err := session.Serve(r.Context()); err != nil {
			slog.Warn("session ended with error", "remote", conn.RemoteAddr(), "error", err)
		}
	})

	server := &http.Server{Addr: cfg.addr, Handler: mux}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	slog.Info("listening", "addr", cfg.addr, "vad", cfg.vadBackend)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func buildTranscriber() (speechtotext.Transcriber, error) {
	if apiKey := os.Getenv("SILICONFLOW_API_KEY"); apiKey != "" {
		var opts []sttsiliconflow.ClientOption
		if baseURL := os.Getenv("SILICONFLOW_BASE_URL"); baseURL != "" {
			opts = append(opts, sttsiliconflow.WithBaseURL(baseURL))
		}
		return sttsiliconflow.NewClient(apiKey, opts...), nil
	}

	var opts []sttfunasr.ClientOption
	if baseURL := os.Getenv("FUNASR_URL"); baseURL != "" {
		opts = append(opts, sttfunasr.WithBaseURL(baseURL))
	}
	return sttfunasr.NewClient(opts...), nil
}

// buildSynthesizer chains the configured synthesis providers in preference
// order. A nil return disables synthesis for the session.
func buildSynthesizer(voice string) texttospeech.Synthesizer {
	var providers []texttospeech.Synthesizer

	if apiKey := os.Getenv("SILICONFLOW_API_KEY"); apiKey != "" {
		var opts []ttssiliconflow.ClientOption
		if voice != "" {
			opts = append(opts, ttssiliconflow.WithVoice(voice))
		}
		providers = append(providers, ttssiliconflow.NewClient(apiKey, opts...))
	}

	if deepgramClient, err := ttsdeepgram.NewClient(""); err == nil {
		providers = append(providers, deepgramClient)
	}

	switch len(providers) {
	case 0:
		return nil
	case 1:
		return providers[0]
	default:
		return texttospeech.NewChain(providers...)
	}
}

func buildDetector(ctx context.Context, backend string) (vad.Detector, error) {
	switch backend {
	case vad.BackendEnergy:
		return energy.NewDetector(), nil
	case vad.BackendSilero:
		var opts []silero.Option
		if url := os.Getenv("SILERO_URL"); url != "" {
			opts = append(opts, silero.WithURL(url))
		}
		return silero.NewDetector(opts...), nil
	case vad.BackendDeepgram:
		return vaddeepgram.NewDetector(ctx)
	default:
		return nil, fmt.Errorf("unknown speech detection backend: %s", backend)
	}
}
