package briefing

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/prompt"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/internal/service/patient"
	"github.com/jwalitptl/intake-api/pkg/errors"
	"github.com/jwalitptl/intake-api/pkg/llm"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

const (
	SourceNarrative    = "narrative"
	SourceConversation = "conversation"
)

// PatientReader loads the patient and EHR snapshot a prompt is rendered from.
type PatientReader interface {
	GetPatient(ctx context.Context, id string) (*model.Patient, error)
	EHRHistory(ctx context.Context, patientID string) (*model.EHRHistory, error)
}

type EventEmitter interface {
	EmitTx(ctx context.Context, tx sqlx.ExtContext, eventType string, payload interface{}) error
}

// Options are the sampling parameters for synthesis calls.
type Options struct {
	MaxTokens   int
	Temperature float64
}

type Service struct {
	repo     repository.BriefingRepository
	patients PatientReader
	llm      llm.Client
	tx       repository.Transactor
	events   EventEmitter
	metrics  *metrics.Metrics
	opts     Options
	now      func() time.Time
}

func NewService(
	repo repository.BriefingRepository,
	patients PatientReader,
	client llm.Client,
	tx repository.Transactor,
	events EventEmitter,
	m *metrics.Metrics,
	opts Options,
) *Service {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2000
	}
	return &Service{
		repo:     repo,
		patients: patients,
		llm:      client,
		tx:       tx,
		events:   events,
		metrics:  m,
		opts:     opts,
		now:      time.Now,
	}
}

// failureMessages are the client-facing prefixes for each synthesis path.
type failureMessages struct {
	ehrMissing string
	parse      string
	generic    string
}

var (
	narrativeMessages = failureMessages{
		ehrMissing: "EHR history not found for patient",
		parse:      "Failed to parse AI response as JSON: ",
		generic:    "AI synthesis failed: ",
	}
	conversationMessages = failureMessages{
		ehrMissing: "EHR history not found",
		parse:      "Failed to parse synthesis response: ",
		generic:    "Synthesis failed: ",
	}
)

// SynthesizeFromNarrative builds a briefing from a free-text narrative that
// is not tied to any conversation.
func (s *Service) SynthesizeFromNarrative(ctx context.Context, req *model.SynthesizeRequest) (*model.ClinicalBriefing, error) {
	p, ehr, err := s.load(ctx, req.PatientID, narrativeMessages)
	if err != nil {
		return nil, err
	}

	text, err := prompt.NarrativeSynthesis(prompt.NewPatientContext(p, &ehr.EHRRecord, s.now()), req.Narrative)
	if err != nil {
		return nil, errors.InternalMsg(narrativeMessages.generic+err.Error(), err)
	}
	return s.synthesize(ctx, SourceNarrative, p, nil, text, narrativeMessages)
}

// SynthesizeFromConversation builds the equity-aware briefing for a completed
// intake conversation. The briefing references the conversation.
func (s *Service) SynthesizeFromConversation(ctx context.Context, conv *model.ChatConversation) (*model.ClinicalBriefing, error) {
	p, ehr, err := s.load(ctx, conv.PatientID, conversationMessages)
	if err != nil {
		return nil, err
	}

	text, err := prompt.ConversationSynthesis(prompt.NewPatientContext(p, &ehr.EHRRecord, s.now()), conv.Transcript())
	if err != nil {
		return nil, errors.InternalMsg(conversationMessages.generic+err.Error(), err)
	}
	convID := conv.ID
	return s.synthesize(ctx, SourceConversation, p, &convID, text, conversationMessages)
}

func (s *Service) GetBriefing(ctx context.Context, id string) (*model.ClinicalBriefing, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFoundMsg("Briefing not found", err)
		}
		return nil, fmt.Errorf("failed to get briefing: %w", err)
	}
	return b, nil
}

// ForConversation returns the briefing produced from the conversation, or
// nil when there is none yet.
func (s *Service) ForConversation(ctx context.Context, conversationID string) (*model.ClinicalBriefing, error) {
	b, err := s.repo.GetByConversation(ctx, conversationID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get briefing: %w", err)
	}
	return b, nil
}

func (s *Service) load(ctx context.Context, patientID string, msgs failureMessages) (*model.Patient, *model.EHRHistory, error) {
	p, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	ehr, err := s.patients.EHRHistory(ctx, patientID)
	if err != nil {
		if stderrors.Is(err, patient.ErrEHRNotFound) {
			return nil, nil, errors.NotFoundMsg(msgs.ehrMissing, err)
		}
		return nil, nil, err
	}
	return p, ehr, nil
}

func (s *Service) synthesize(
	ctx context.Context,
	source string,
	p *model.Patient,
	conversationID *string,
	promptText string,
	msgs failureMessages,
) (*model.ClinicalBriefing, error) {
	resp, err := s.llm.Complete(ctx, llm.Request{
		Operation:   "synthesis",
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: promptText}},
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		s.fail(source, "llm")
		return nil, errors.InternalMsg(msgs.generic+err.Error(), err)
	}

	result, err := ParseResult(resp.Text)
	if err != nil {
		s.fail(source, "parse")
		log.Warn().Err(err).Str("patient_id", p.ID).Str("source", source).Msg("Unparseable synthesis response")
		return nil, errors.InternalMsg(msgs.parse+err.Error(), err)
	}

	b := &model.ClinicalBriefing{
		ID:                         model.NewID("BRIEF-", 10),
		PatientID:                  p.ID,
		ConversationID:             conversationID,
		AISummary:                  result.AISummary,
		KeyInsightsFlags:           result.KeyInsightsFlags,
		EquityAndContextFlags:      result.EquityAndContextFlags,
		ReportedSymptomsStructured: result.ReportedSymptomsStructured,
		RelevantHistorySurfaced:    result.RelevantHistorySurfaced,
	}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.Create(ctx, tx, b); err != nil {
			return err
		}
		return s.events.EmitTx(ctx, tx, model.EventBriefingCreated, model.BriefingCreatedEvent{
			BriefingID:     b.ID,
			PatientID:      b.PatientID,
			PatientName:    p.FullName,
			ConversationID: b.ConversationID,
			Summary:        b.AISummary,
			FlagCount:      len(b.KeyInsightsFlags) + len(b.EquityAndContextFlags),
			CreatedAt:      b.CreatedAt,
		})
	})
	if err != nil {
		s.fail(source, "store")
		if stderrors.Is(err, repository.ErrConflict) {
			return nil, errors.Conflict("A briefing already exists for this conversation", err)
		}
		return nil, errors.InternalMsg(msgs.generic+"failed to save briefing", err)
	}

	if s.metrics != nil {
		s.metrics.BriefingsCreated.WithLabelValues(source).Inc()
	}
	log.Info().
		Str("briefing_id", b.ID).
		Str("patient_id", b.PatientID).
		Str("source", source).
		Int("flags", len(b.KeyInsightsFlags)).
		Msg("Briefing created")
	return b, nil
}

func (s *Service) fail(source, reason string) {
	if s.metrics != nil {
		s.metrics.SynthesisFailures.WithLabelValues(source, reason).Inc()
	}
}

// ParseResult decodes the first JSON object in text that carries an
// ai_summary. Models sometimes wrap the object in prose or a ```json fence,
// and the prose may contain braces of its own.
func ParseResult(text string) (*model.SynthesisResult, error) {
	var (
		result   model.SynthesisResult
		firstErr error
		decoded  bool
		found    bool
	)
	for i := strings.IndexByte(text, '{'); i >= 0; {
		var candidate model.SynthesisResult
		err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&candidate)
		if err == nil {
			decoded = true
			candidate.AISummary = strings.TrimSpace(candidate.AISummary)
			if candidate.AISummary != "" {
				result, found = candidate, true
				break
			}
		} else if firstErr == nil {
			firstErr = err
		}

		next := strings.IndexByte(text[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}

	switch {
	case found:
	case decoded:
		return nil, stderrors.New("ai_summary is missing")
	case firstErr != nil:
		return nil, firstErr
	default:
		return nil, stderrors.New("no JSON object in response")
	}

	if result.KeyInsightsFlags == nil {
		result.KeyInsightsFlags = model.KeyInsightFlags{}
	}
	if result.EquityAndContextFlags == nil {
		result.EquityAndContextFlags = model.EquityContextFlags{}
	}
	if result.ReportedSymptomsStructured == nil {
		result.ReportedSymptomsStructured = model.ReportedSymptoms{}
	}
	if result.RelevantHistorySurfaced == nil {
		result.RelevantHistorySurfaced = model.StringList{}
	}
	return &result, nil
}
