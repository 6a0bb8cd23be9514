package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammadjaf013/findlanqbot/internal/cache"
	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/providers/embedding"
	"github.com/mohammadjaf013/findlanqbot/internal/rag"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories/memory"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

func TestChat_RetrievesRelevantChunk(t *testing.T) {
	ctx := context.Background()
	f := newFixture(newVocabEmbedder(), IngestOptions{})

	res, err := f.ingest.IngestText(ctx, "finland.txt", finlandDoc)
	require.NoError(t, err)
	require.Equal(t, 2, res.Chunks)

	out, err := f.chat.Ask(ctx, AskInput{Question: "What is the capital of Finland?"})
	require.NoError(t, err)

	require.Len(t, out.Sources, 2)
	assert.Equal(t, "Helsinki is the capital.", out.Sources[0].Text)
	assert.Greater(t, out.Sources[0].Score, out.Sources[1].Score)
	assert.False(t, out.Degraded)
	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, "Helsinki is the capital of Finland.", out.Answer)
	assert.Contains(t, f.llm.lastPrompt(), "Helsinki is the capital.")
}

func TestChat_FallbackRankingIsDeterministic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(nil, IngestOptions{})

	res, err := f.ingest.IngestText(ctx, "finland.txt", finlandDoc)
	require.NoError(t, err)
	assert.True(t, res.Degraded)

	first, err := f.chat.Ask(ctx, AskInput{Question: "What is the capital of Finland?"})
	require.NoError(t, err)
	second, err := f.chat.Ask(ctx, AskInput{Question: "What is the capital of Finland?"})
	require.NoError(t, err)

	assert.True(t, first.Degraded)
	assert.Equal(t, first.Sources, second.Sources)
}

func TestChat_PersistsBothMessages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(newVocabEmbedder(), IngestOptions{})
	_, err := f.ingest.IngestText(ctx, "finland.txt", finlandDoc)
	require.NoError(t, err)

	out, err := f.chat.Ask(ctx, AskInput{Question: "What is the capital of Finland?", SessionID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, "s-1", out.SessionID)

	msgs, err := f.history.List(ctx, "s-1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)

	var md answerMetadata
	require.NoError(t, json.Unmarshal(msgs[1].Metadata, &md))
	require.Len(t, md.Sources, 2)
	assert.Equal(t, "finland.txt", md.Sources[0].FileName)
}

func TestChat_HistoryFlowsIntoPrompt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(newVocabEmbedder(), IngestOptions{})

	_, err := f.chat.Ask(ctx, AskInput{Question: "Do I need a visa?", SessionID: "s-2"})
	require.NoError(t, err)
	_, err = f.chat.Ask(ctx, AskInput{Question: "And for study?", SessionID: "s-2"})
	require.NoError(t, err)

	prompt := f.llm.lastPrompt()
	assert.Contains(t, prompt, "User: Do I need a visa?")
	assert.Contains(t, prompt, "Assistant: Helsinki is the capital of Finland.")
	assert.Contains(t, prompt, "And for study?")
}

func TestChat_FileFilter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(newVocabEmbedder(), IngestOptions{})
	_, err := f.ingest.IngestText(ctx, "finland.txt", finlandDoc)
	require.NoError(t, err)
	_, err = f.ingest.IngestText(ctx, "visa.txt", "A work visa needs a job offer.")
	require.NoError(t, err)

	out, err := f.chat.Ask(ctx, AskInput{Question: "capital of Finland", FileName: "visa.txt"})
	require.NoError(t, err)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "visa.txt", out.Sources[0].FileName)
}

func TestChat_EmptyKnowledgeBaseStillAnswers(t *testing.T) {
	f := newFixture(newVocabEmbedder(), IngestOptions{})

	out, err := f.chat.Ask(context.Background(), AskInput{Question: "Can I work while I study?"})
	require.NoError(t, err)
	assert.Empty(t, out.Sources)
	assert.NotEmpty(t, out.Answer)
	assert.Contains(t, f.llm.lastPrompt(), "(no matching documents)")
}

func TestChat_InvalidQuestion(t *testing.T) {
	f := newFixture(newVocabEmbedder(), IngestOptions{})

	_, err := f.chat.Ask(context.Background(), AskInput{Question: "   "})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = f.chat.Ask(context.Background(), AskInput{Question: strings.Repeat("a", maxQuestionRunes+1)})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestChat_ModelUnavailable(t *testing.T) {
	f := newFixture(newVocabEmbedder(), IngestOptions{})
	f.llm.status = http.StatusTooManyRequests

	_, err := f.chat.Ask(context.Background(), AskInput{Question: "visa?", SessionID: "s-3"})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, utils.HTTPStatus(err))

	msgs, err := f.history.List(context.Background(), "s-3", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	// the failed question is not replayed once the model is back
	f.llm.status = 0
	_, err = f.chat.Ask(context.Background(), AskInput{Question: "work permit?", SessionID: "s-3"})
	require.NoError(t, err)
	assert.NotContains(t, f.llm.lastPrompt(), "User: visa?")

	msgs, err = f.history.List(context.Background(), "s-3", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "work permit?", msgs[0].Content)
}

func TestChat_Stream(t *testing.T) {
	f := newFixture(newVocabEmbedder(), IngestOptions{})

	var parts []string
	out, err := f.chat.AskStream(context.Background(), AskInput{Question: "capital?"}, func(s string) error {
		parts = append(parts, s)
		return nil
	})
	require.NoError(t, err)
	assert.Greater(t, len(parts), 1)
	assert.Equal(t, out.Answer, strings.Join(parts, ""))
}

type fakeSpeech struct{ text string }

func (s fakeSpeech) Transcribe(context.Context, []byte, string) (string, float64, error) {
	return s.text, 0.9, nil
}
func (s fakeSpeech) Close() error { return nil }

func TestChat_AskAudio(t *testing.T) {
	ctx := context.Background()
	log := quietLogger()
	store := memory.NewChunkStore(testDim)
	embedder := embedding.NewEmbedder(newVocabEmbedder(), testDim, embedding.Options{Retry: instantPolicy(), Logger: log})
	history := NewHistoryService(memory.NewHistoryStore(), cache.NewMemoryCache(), HistoryOptions{CacheTTL: time.Minute}, log)
	composer := rag.NewComposer(&fakeLLM{answer: "yes"}, instantPolicy(), 0, log)

	voice := NewChatService(store, embedder, composer, history, fakeSpeech{text: "Can I study in Finland?"}, 5, log)
	out, err := voice.AskAudio(ctx, []byte{1, 2, 3}, "en-US", AskInput{})
	require.NoError(t, err)
	assert.Equal(t, "Can I study in Finland?", out.Transcript)
	assert.Equal(t, "yes", out.Answer)

	silent := NewChatService(store, embedder, composer, history, fakeSpeech{text: " "}, 5, log)
	_, err = silent.AskAudio(ctx, []byte{1}, "", AskInput{})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	noVoice := NewChatService(store, embedder, composer, history, nil, 5, log)
	_, err = noVoice.AskAudio(ctx, []byte{1}, "", AskInput{})
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
}
