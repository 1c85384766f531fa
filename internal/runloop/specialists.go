package runloop

import (
	"strings"

	"github.com/fyrsmithlabs/phaserun/internal/governance"
)

// SpecialistRule conditionally inserts a specialist agent into a phase's
// roster. A rule fires when the intake mentions any keyword
// (case-insensitive) or its governance flag is set.
type SpecialistRule struct {
	// Name identifies the rule in logs.
	Name string

	// Agent is the specialist inserted when the rule fires.
	Agent string

	// Keywords are matched against the intake summary.
	Keywords []string

	// Flag is the governance flag that also fires the rule.
	Flag string

	// Anchor, when set, places the specialist immediately before this
	// agent if it is present in the roster. Without an anchor (or when
	// the anchor is absent) the specialist is appended at the end.
	Anchor string
}

// DefaultSpecialistRules returns the built-in rule table. The security
// auditor is the only anchored specialist: it runs immediately before the
// QA lead so findings land ahead of final sign-off.
func DefaultSpecialistRules() []SpecialistRule {
	return []SpecialistRule{
		{
			Name:     "security",
			Agent:    "security-auditor",
			Keywords: []string{"security", "auth", "encryption", "credentials", "pii"},
			Flag:     "security_review",
			Anchor:   "qa-lead",
		},
		{
			Name:     "performance",
			Agent:    "performance-analyst",
			Keywords: []string{"performance", "latency", "throughput", "scalability"},
			Flag:     "performance_review",
		},
		{
			Name:     "compliance",
			Agent:    "compliance-reviewer",
			Keywords: []string{"compliance", "gdpr", "hipaa", "audit trail"},
			Flag:     "compliance_review",
		},
	}
}

// matches reports whether the rule fires for the given intake and flags.
func (r *SpecialistRule) matches(intake string, gov governance.Config) bool {
	if r.Flag != "" && gov.Flag(r.Flag) {
		return true
	}
	lower := strings.ToLower(intake)
	for _, kw := range r.Keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// applySpecialists evaluates the rule table once for a phase and returns
// the final roster. Anchored specialists insert immediately before their
// anchor when it is present; everything else appends. Specialists already
// in the roster are suppressed.
func applySpecialists(base []string, intake string, gov governance.Config, rules []SpecialistRule) []string {
	roster := append([]string(nil), base...)

	present := make(map[string]struct{}, len(roster))
	for _, a := range roster {
		present[a] = struct{}{}
	}

	for i := range rules {
		rule := &rules[i]
		if !rule.matches(intake, gov) {
			continue
		}
		if _, dup := present[rule.Agent]; dup {
			continue
		}
		present[rule.Agent] = struct{}{}

		if rule.Anchor != "" {
			if at := indexOf(roster, rule.Anchor); at >= 0 {
				roster = append(roster[:at], append([]string{rule.Agent}, roster[at:]...)...)
				continue
			}
		}
		roster = append(roster, rule.Agent)
	}

	return roster
}

func indexOf(list []string, target string) int {
	for i, v := range list {
		if v == target {
			return i
		}
	}
	return -1
}
