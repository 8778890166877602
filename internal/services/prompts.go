package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"github.com/VictorGoic0/SpendSense/internal/platform/envutil"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

// promptPreamble is shared across every persona template. The persona block
// appended below it narrows the focus; the behavioral rules here mirror the
// tone screen so generated drafts pass it on the first try.
const promptPreamble = `You are a supportive financial education coach for SpendSense.

You will receive a JSON context describing one user's financial signals:
accounts, recent transactions, credit utilization, income patterns, savings
behavior, and subscription activity. Generate 3 to 5 educational
recommendations tailored to that context.

Rules:
- Educational content only. Never give personalized financial advice,
  guarantees, or projections of returns.
- Empowering, non-judgmental tone. Frame challenges as common and solvable
  ("many people", "you can", "consider", "let's explore the opportunity").
- Never shame the user. Do not call spending wasteful, irresponsible, a bad
  habit, or a poor decision, and do not tell the user what they need to do
  or should stop doing.
- Every rationale must cite specific numbers from the context (balances,
  utilization percentages, monthly amounts, merchant counts).
- Keep each content body between two and five sentences.

Respond with JSON only: {"recommendations": [{"title", "content",
"rationale"}]}.`

var personaFocus = map[string]string{
	types.PersonaHighUtilization: `This user carries high credit utilization.
Focus on understanding utilization and its effect on credit health, interest
cost awareness, payment sequencing concepts, and balance transfer education.
Acknowledge that high utilization is a common challenge, never a failing.`,

	types.PersonaVariableIncome: `This user's income arrives irregularly.
Focus on cash flow smoothing concepts, percentage-based budgeting for
variable earners, buffer funds sized in weeks of expenses, and planning
around the income gaps visible in the context.`,

	types.PersonaSubscriptionHeavy: `This user has many recurring charges.
Focus on subscription awareness and audit techniques, spotting overlapping
services among the recurring merchants in the context, and redirecting freed
cash toward goals. Subscriptions are a convenience many people accumulate;
treat trimming them as an opportunity, not a correction.`,

	types.PersonaSavingsBuilder: `This user is actively building savings.
Celebrate the momentum shown in the context. Focus on emergency fund
milestones, yield awareness (HYSA concepts), and automating what is already
working. Keep goals incremental and reachable.`,

	types.PersonaWealthBuilder: `This user has stable income, low credit
utilization, and an established emergency fund. Focus on long-horizon
education: investing fundamentals, diversification concepts, retirement
account types, and how compounding rewards consistency. No product picks,
no return projections.`,
}

func defaultPrompt(persona string) string {
	focus, ok := personaFocus[persona]
	if !ok {
		return ""
	}
	return promptPreamble + "\n\nPersona: " + persona + "\n" + focus + "\n"
}

// PromptStore serves the per-persona system prompt used for generation.
// Templates ship compiled in; a file named <persona>.txt under PROMPTS_DIR
// overrides the default for that persona.
type PromptStore interface {
	Get(personaType string) (string, error)
}

type promptStore struct {
	log *logger.Logger
	dir string

	mu    sync.RWMutex
	cache map[string]string
}

func NewPromptStore(baseLog *logger.Logger) PromptStore {
	return &promptStore{
		log:   baseLog.With("service", "PromptStore"),
		dir:   envutil.String("PROMPTS_DIR", ""),
		cache: map[string]string{},
	}
}

func (s *promptStore) Get(personaType string) (string, error) {
	const op = "PromptStore.Get"

	persona := types.NormalizePersona(personaType)
	if !types.IsValidPersonaType(persona) {
		return "", fault.New(fault.CodeValidation, op,
			fmt.Sprintf("invalid persona_type %q, must be one of: %s",
				personaType, strings.Join(types.AllPersonaTypes(), ", ")), nil)
	}

	s.mu.RLock()
	cached, ok := s.cache[persona]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	tpl := s.load(persona)
	s.mu.Lock()
	s.cache[persona] = tpl
	s.mu.Unlock()
	return tpl, nil
}

func (s *promptStore) load(persona string) string {
	if s.dir != "" {
		path := filepath.Join(s.dir, persona+".txt")
		raw, err := os.ReadFile(path)
		switch {
		case err == nil && strings.TrimSpace(string(raw)) != "":
			s.log.Info("Loaded prompt template override", "persona_type", persona, "path", path)
			return string(raw)
		case err != nil && !os.IsNotExist(err):
			s.log.Warn("Failed to read prompt template, using default",
				"persona_type", persona, "path", path, "error", err)
		}
	}
	return defaultPrompt(persona)
}
