package chat

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/prompt"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/internal/service/patient"
	"github.com/jwalitptl/intake-api/pkg/errors"
	"github.com/jwalitptl/intake-api/pkg/llm"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

const greetingFormat = "Hello %s! I'm Amani, and I'm here to help gather some information before your appointment. " +
	"Thank you for taking the time to connect with us today. Can you tell me what brings you in for your visit?"

type PatientReader interface {
	GetPatient(ctx context.Context, id string) (*model.Patient, error)
	EHRHistory(ctx context.Context, patientID string) (*model.EHRHistory, error)
}

// Synthesizer turns a completed conversation into a briefing.
type Synthesizer interface {
	SynthesizeFromConversation(ctx context.Context, conv *model.ChatConversation) (*model.ClinicalBriefing, error)
	ForConversation(ctx context.Context, conversationID string) (*model.ClinicalBriefing, error)
}

// Options are the sampling parameters for interview turns.
type Options struct {
	MaxTokens   int
	Temperature float64
}

type Service struct {
	repo      repository.ConversationRepository
	patients  PatientReader
	llm       llm.Client
	briefings Synthesizer
	metrics   *metrics.Metrics
	opts      Options
	now       func() time.Time
}

func NewService(
	repo repository.ConversationRepository,
	patients PatientReader,
	client llm.Client,
	briefings Synthesizer,
	m *metrics.Metrics,
	opts Options,
) *Service {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 500
	}
	return &Service{
		repo:      repo,
		patients:  patients,
		llm:       client,
		briefings: briefings,
		metrics:   m,
		opts:      opts,
		now:       time.Now,
	}
}

// StartConversation opens an interview and stores the greeting as its first
// message.
func (s *Service) StartConversation(ctx context.Context, patientID string) (*model.StartChatResponse, error) {
	p, _, err := s.load(ctx, patientID)
	if err != nil {
		return nil, err
	}

	greeting := model.ChatMessage{
		Role:    model.RoleAI,
		Content: fmt.Sprintf(greetingFormat, p.FirstName()),
	}
	conv := &model.ChatConversation{
		ID:        model.NewID("CONVO-", 10),
		PatientID: p.ID,
		Messages:  model.Messages{greeting},
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to start conversation: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ConversationsStarted.Inc()
	}
	log.Info().Str("conversation_id", conv.ID).Str("patient_id", p.ID).Msg("Intake conversation started")

	return &model.StartChatResponse{
		ConversationID: conv.ID,
		PatientID:      conv.PatientID,
		InitialMessage: greeting,
		IsComplete:     false,
	}, nil
}

// ContinueConversation records one patient turn and the model's reply. When
// the model signals the end of the interview the briefing is synthesized
// before returning.
func (s *Service) ContinueConversation(ctx context.Context, req *model.ContinueChatRequest) (*model.ContinueChatResponse, error) {
	conv, err := s.get(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if conv.IsComplete {
		return nil, errors.BadRequest("Conversation already complete", nil)
	}

	p, ehr, err := s.load(ctx, conv.PatientID)
	if err != nil {
		return nil, err
	}
	system, err := prompt.Intake(prompt.NewPatientContext(p, &ehr.EHRRecord, s.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to build interview prompt: %w", err)
	}

	userMsg := model.ChatMessage{Role: model.RoleUser, Content: req.UserMessage}
	history := make([]llm.Message, 0, len(conv.Messages)+1)
	for _, m := range append(conv.Messages, userMsg) {
		history = append(history, toLLM(m))
	}

	resp, err := s.llm.Complete(ctx, llm.Request{
		Operation:   "chat",
		System:      system,
		Messages:    history,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return nil, errors.Upstream("AI conversation failed: "+err.Error(), err)
	}

	complete := strings.Contains(resp.Text, prompt.CompletionSignal)
	aiMsg := model.ChatMessage{
		Role:    model.RoleAI,
		Content: strings.TrimSpace(strings.ReplaceAll(resp.Text, prompt.CompletionSignal, "")),
	}

	expectedLen := len(conv.Messages)
	if err := s.repo.AppendMessages(ctx, conv.ID, expectedLen, model.Messages{userMsg, aiMsg}, complete); err != nil {
		if stderrors.Is(err, repository.ErrConflict) {
			return nil, errors.Conflict("Conversation was modified concurrently", err)
		}
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}

	out := &model.ContinueChatResponse{
		ConversationID: conv.ID,
		AIMessage:      aiMsg,
		IsComplete:     complete,
	}
	if !complete {
		return out, nil
	}

	if s.metrics != nil {
		s.metrics.ConversationsCompleted.Inc()
	}
	conv.Messages = append(conv.Messages, userMsg, aiMsg)
	conv.IsComplete = true

	b, err := s.briefings.SynthesizeFromConversation(ctx, conv)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID).Msg("Synthesis after intake completion failed")
		return nil, err
	}
	out.BriefingID = &b.ID
	return out, nil
}

// GetConversation returns the stored conversation with its derived status.
func (s *Service) GetConversation(ctx context.Context, id string) (*model.ConversationView, error) {
	conv, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.ConversationView{ChatConversation: conv, Status: conv.Status()}, nil
}

// RetrySynthesis produces the briefing for a completed conversation whose
// synthesis failed. created is false when a briefing already existed.
func (s *Service) RetrySynthesis(ctx context.Context, id string) (b *model.ClinicalBriefing, created bool, err error) {
	conv, err := s.get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !conv.IsComplete {
		return nil, false, errors.BadRequest("Conversation is still in progress", nil)
	}

	existing, err := s.briefings.ForConversation(ctx, conv.ID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	b, err = s.briefings.SynthesizeFromConversation(ctx, conv)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Service) get(ctx context.Context, id string) (*model.ChatConversation, error) {
	conv, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFoundMsg("Conversation not found", err)
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

func (s *Service) load(ctx context.Context, patientID string) (*model.Patient, *model.EHRHistory, error) {
	p, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	ehr, err := s.patients.EHRHistory(ctx, patientID)
	if err != nil {
		if stderrors.Is(err, patient.ErrEHRNotFound) {
			return nil, nil, errors.NotFoundMsg("EHR history not found", err)
		}
		return nil, nil, err
	}
	return p, ehr, nil
}

func toLLM(m model.ChatMessage) llm.Message {
	role := llm.RoleUser
	if m.Role == model.RoleAI {
		role = llm.RoleAssistant
	}
	return llm.Message{Role: role, Content: m.Content}
}
