package core

// Rule identifies which resolution step produced a RoutingDecision.
type Rule string

const (
	RuleVagueSticky       Rule = "vague-sticky"
	RuleColdStart         Rule = "cold-start"
	RuleColdStartDefault  Rule = "cold-start-default"
	RuleNoChange          Rule = "no-change"
	RuleEntryExcluded     Rule = "entry-excluded"
	RuleSwitch            Rule = "switch"
	RuleFallback          Rule = "fallback"
	RuleLowConfidence     Rule = "low-confidence"
	RuleLocked            Rule = "locked"
	RuleClassifierFailure Rule = "classifier-failure"
)

// RoutingDecision is the engine output. Changed is true iff Route differs from
// the route passed in as current; a cold start always counts as a change.
type RoutingDecision struct {
	Route   string `json:"route"`
	Changed bool   `json:"changed"`
	Rule    Rule   `json:"rule,omitempty"`
}

// Hold returns a decision keeping route unchanged.
func Hold(route string, rule Rule) RoutingDecision {
	return RoutingDecision{Route: route, Changed: false, Rule: rule}
}

// Switch returns a decision moving to route.
func Switch(route string, rule Rule) RoutingDecision {
	return RoutingDecision{Route: route, Changed: true, Rule: rule}
}
