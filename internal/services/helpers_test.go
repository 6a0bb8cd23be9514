package services

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mohammadjaf013/findlanqbot/internal/cache"
	"github.com/mohammadjaf013/findlanqbot/internal/providers"
	"github.com/mohammadjaf013/findlanqbot/internal/providers/embedding"
	"github.com/mohammadjaf013/findlanqbot/internal/rag"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories/memory"
	"github.com/mohammadjaf013/findlanqbot/internal/retry"
)

const testDim = 8

// vocabEmbedder counts known words per dimension, a tiny bag-of-words model.
type vocabEmbedder struct {
	vocab map[string]int
	fail  bool
}

func newVocabEmbedder() *vocabEmbedder {
	return &vocabEmbedder{vocab: map[string]int{
		"finland": 0, "northern": 1, "europe": 2, "helsinki": 3,
		"capital": 4, "visa": 5, "work": 6, "study": 7,
	}}
}

func (v *vocabEmbedder) EmbedContent(_ context.Context, text string) ([]float32, error) {
	if v.fail {
		return nil, &providers.StatusError{Provider: "fake", StatusCode: http.StatusServiceUnavailable}
	}
	vec := make([]float32, testDim)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		if i, ok := v.vocab[w]; ok {
			vec[i]++
		}
	}
	return vec, nil
}

func (v *vocabEmbedder) Dim() int     { return testDim }
func (v *vocabEmbedder) Close() error { return nil }

// fakeLLM answers with a fixed text, or fails with status every time.
type fakeLLM struct {
	mu      sync.Mutex
	answer  string
	status  int
	prompts []string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.status != 0 {
		return "", &providers.StatusError{Provider: "fake", StatusCode: f.status}
	}
	return f.answer, nil
}

func (f *fakeLLM) StreamAnswer(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	out := make(chan string, 16)
	errs := make(chan error, 1)
	answer, err := f.Generate(ctx, prompt)
	if err != nil {
		errs <- err
	} else {
		for _, w := range strings.SplitAfter(answer, " ") {
			out <- w
		}
	}
	close(out)
	close(errs)
	return out, errs
}

func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func instantPolicy() retry.Policy {
	p := retry.Default(providers.IsTransient)
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

type fixture struct {
	store   *memory.ChunkStore
	history HistoryService
	ingest  IngestService
	chat    ChatService
	llm     *fakeLLM
}

// newFixture wires the services over memory stores. A nil provider runs the
// embedder in fallback-only mode.
func newFixture(p embedding.Provider, opts IngestOptions) *fixture {
	log := quietLogger()
	llm := &fakeLLM{answer: "Helsinki is the capital of Finland."}

	store := memory.NewChunkStore(testDim)
	embedder := embedding.NewEmbedder(p, testDim, embedding.Options{Retry: instantPolicy(), Logger: log})
	history := NewHistoryService(memory.NewHistoryStore(), cache.NewMemoryCache(), HistoryOptions{CacheTTL: time.Minute}, log)
	composer := rag.NewComposer(llm, instantPolicy(), 0, log)

	return &fixture{
		store:   store,
		history: history,
		ingest:  NewIngestService(store, rag.NewChunker(rag.DefaultChunkOptions()), embedder, opts, log),
		chat:    NewChatService(store, embedder, composer, history, nil, 5, log),
		llm:     llm,
	}
}

const finlandDoc = "Finland is in Northern Europe.\n\nHelsinki is the capital."
