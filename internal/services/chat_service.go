package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/providers/embedding"
	"github.com/mohammadjaf013/findlanqbot/internal/providers/stt"
	"github.com/mohammadjaf013/findlanqbot/internal/rag"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

const (
	maxTopK          = 20
	maxQuestionRunes = 4000
)

type AskInput struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	TopK      int    `json:"top_k,omitempty"`
}

type AskResult struct {
	SessionID  string       `json:"session_id"`
	Answer     string       `json:"answer"`
	Sources    []rag.Result `json:"sources"`
	Degraded   bool         `json:"degraded"`
	Transcript string       `json:"transcript,omitempty"`
}

// sourceRef is what an assistant message remembers about its context.
type sourceRef struct {
	FileName string  `json:"file_name"`
	Index    int     `json:"index"`
	Score    float64 `json:"score"`
}

type answerMetadata struct {
	Sources  []sourceRef `json:"sources"`
	Degraded bool        `json:"degraded"`
}

type ChatService interface {
	Ask(ctx context.Context, in AskInput) (*AskResult, error)
	// AskStream delivers the answer incrementally through onChunk.
	AskStream(ctx context.Context, in AskInput, onChunk func(string) error) (*AskResult, error)
	// AskAudio transcribes audio and answers the transcript.
	AskAudio(ctx context.Context, audio []byte, language string, in AskInput) (*AskResult, error)
}

type chatService struct {
	store    repositories.ChunkStore
	embedder *embedding.Embedder
	composer *rag.Composer
	history  HistoryService
	speech   stt.Provider
	topK     int
	log      *logrus.Logger
}

// NewChatService wires the query path; speech may be nil when voice is disabled.
func NewChatService(store repositories.ChunkStore, embedder *embedding.Embedder, composer *rag.Composer, history HistoryService, speech stt.Provider, topK int, log *logrus.Logger) ChatService {
	if topK <= 0 {
		topK = 5
	}
	if log == nil {
		log = logrus.New()
	}
	return &chatService{
		store: store, embedder: embedder, composer: composer, history: history,
		speech: speech, topK: topK, log: log,
	}
}

// prepared is everything gathered before the model is called.
type prepared struct {
	sessionID string
	askedAt   time.Time
	question  string
	sources   []rag.Result
	history   []models.Message
	degraded  bool
}

func (s *chatService) prepare(ctx context.Context, op string, in AskInput) (*prepared, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "question is required", nil)
	}
	if utf8.RuneCountInString(question) > maxQuestionRunes {
		return nil, utils.E(utils.CodeInvalidArgument, op, "question is too long", nil)
	}

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	sess, err := s.history.Touch(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	recent, err := s.history.Recent(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	emb, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, utils.E(utils.CodeTimeout, op, "request cancelled", err)
	}
	corpus, err := s.store.ScanAll(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to read knowledge base", err)
	}

	k := in.TopK
	if k <= 0 {
		k = s.topK
	}
	if k > maxTopK {
		k = maxTopK
	}
	sources := rag.Rank(emb.Values, corpus, k, utils.CleanFileName(in.FileName))
	if sources == nil {
		sources = []rag.Result{}
	}

	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"corpus":     len(corpus),
		"sources":    len(sources),
		"degraded":   emb.Fallback,
	}).Debug("context retrieved")

	return &prepared{
		sessionID: sessionID,
		askedAt:   sess.LastActivity,
		question:  question,
		sources:   sources,
		history:   recent,
		degraded:  emb.Fallback,
	}, nil
}

// finish stores the question together with its answer, so a failed model
// call leaves no unanswered turn in the history.
func (s *chatService) finish(ctx context.Context, p *prepared, answer string) (*AskResult, error) {
	md := answerMetadata{Degraded: p.degraded, Sources: make([]sourceRef, 0, len(p.sources))}
	for _, src := range p.sources {
		md.Sources = append(md.Sources, sourceRef{FileName: src.FileName, Index: src.Index, Score: src.Score})
	}
	if err := s.history.AppendTurn(ctx, p.sessionID, p.askedAt, p.question, answer, md); err != nil {
		return nil, err
	}
	return &AskResult{SessionID: p.sessionID, Answer: answer, Sources: p.sources, Degraded: p.degraded}, nil
}

func (s *chatService) Ask(ctx context.Context, in AskInput) (*AskResult, error) {
	const op = "ChatService.Ask"

	p, err := s.prepare(ctx, op, in)
	if err != nil {
		return nil, err
	}
	answer, err := s.composer.Answer(ctx, p.question, p.sources, p.history)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, p, answer)
}

func (s *chatService) AskStream(ctx context.Context, in AskInput, onChunk func(string) error) (*AskResult, error) {
	const op = "ChatService.AskStream"

	p, err := s.prepare(ctx, op, in)
	if err != nil {
		return nil, err
	}
	answer, err := s.composer.Stream(ctx, p.question, p.sources, p.history, onChunk)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, p, answer)
}

func (s *chatService) AskAudio(ctx context.Context, audio []byte, language string, in AskInput) (*AskResult, error) {
	const op = "ChatService.AskAudio"

	if s.speech == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "voice questions are not enabled", nil)
	}
	if len(audio) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "audio is required", nil)
	}

	text, confidence, err := s.speech.Transcribe(ctx, audio, language)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "speech recognition failed", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "no speech recognized", nil)
	}
	s.log.WithFields(logrus.Fields{"confidence": confidence, "language": language}).Debug("voice question transcribed")

	in.Question = text
	res, err := s.Ask(ctx, in)
	if err != nil {
		return nil, err
	}
	res.Transcript = text
	return res, nil
}
