package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/jwalitptl/intake-api/internal/model"
)

// CompletionSignal ends the intake interview when the model emits it.
const CompletionSignal = "<<INTAKE_COMPLETE>>"

// EmpowermentQuestion is asked verbatim before the interview closes.
const EmpowermentQuestion = "Thank you, that's very clear. Lastly, and this is just as important, is there anything about your personal beliefs, cultural background, or past experiences with healthcare that you would like your doctor to be aware of when considering your care?"

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"join": strings.Join,
}).ParseFS(templateFS, "templates/*.tmpl"))

// PatientContext is the EHR view shared by every prompt.
type PatientContext struct {
	Name           string
	Age            int
	GenderIdentity string
	Race           string
	Conditions     []string
	Medications    []string
	Problems       []string
	MedicationRows []string
	Labs           []string
}

// NewPatientContext renders the patient and EHR into prompt lines. Ages are
// computed against now.
func NewPatientContext(p *model.Patient, ehr *model.EHRRecord, now time.Time) PatientContext {
	pc := PatientContext{
		Name:           p.FullName,
		Age:            p.Age(now),
		GenderIdentity: p.GenderIdentity,
		Race:           p.Race,
		Conditions:     ehr.Conditions(),
		Medications:    ehr.Medications(),
	}
	for _, item := range ehr.ProblemList {
		pc.Problems = append(pc.Problems, fmt.Sprintf("- %s (ICD-10: %s)", item.Condition, item.ICD10))
	}
	for _, label := range pc.Medications {
		pc.MedicationRows = append(pc.MedicationRows, "- "+label)
	}
	for _, lab := range ehr.RecentLabs {
		pc.Labs = append(pc.Labs, fmt.Sprintf("- %s: %s (Date: %s)", lab.Test, lab.Value, lab.Date))
	}
	return pc
}

type intakeData struct {
	PatientContext
	EmpowermentQuestion string
	CompletionSignal    string
}

type synthesisData struct {
	PatientContext
	Narrative string
}

// Intake is the system prompt for the conversational interview.
func Intake(pc PatientContext) (string, error) {
	return render("intake.tmpl", intakeData{
		PatientContext:      pc,
		EmpowermentQuestion: EmpowermentQuestion,
		CompletionSignal:    CompletionSignal,
	})
}

// NarrativeSynthesis asks for a briefing from a free-text patient narrative.
func NarrativeSynthesis(pc PatientContext, narrative string) (string, error) {
	return render("narrative_synthesis.tmpl", synthesisData{PatientContext: pc, Narrative: narrative})
}

// ConversationSynthesis asks for an equity-aware briefing from an intake
// transcript.
func ConversationSynthesis(pc PatientContext, transcript string) (string, error) {
	return render("conversation_synthesis.tmpl", synthesisData{PatientContext: pc, Narrative: transcript})
}

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}
