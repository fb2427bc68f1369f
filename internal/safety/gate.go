// Package safety implements the deterministic transcript filter that runs
// before any LLM sees customer speech. It scores a transcript against a fixed
// catalog of prompt-injection and toxicity signals and blocks it when the
// summed weight crosses a threshold.
//
// This is a front-line filter, not a classifier. It is CPU-bound, has no
// dependencies beyond the regexp package, and every rule is reviewable in
// this file.
package safety

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// DefaultThreshold is the score at or above which a transcript is blocked.
const DefaultThreshold = 5

// Signal names a matched pattern and the weight it contributed.
type Signal struct {
	// Name identifies the catalog rule that matched.
	Name string `json:"name"`
	// Weight is the score contribution of the match.
	Weight int `json:"weight"`
}

// Verdict is the outcome of scoring one transcript.
type Verdict struct {
	// Blocked is true when Score >= the gate's threshold.
	Blocked bool `json:"blocked"`
	// Score is the summed weight of all matched signals.
	Score int `json:"score"`
	// Signals lists every matched rule.
	Signals []Signal `json:"signals"`
}

// rule is one catalog entry. Each rule fires at most once per transcript
// regardless of how many times its pattern matches.
type rule struct {
	name    string
	weight  int
	pattern *regexp.Regexp
}

// catalog is the fixed signal catalog. Weights are calibrated so that a
// single strong injection attempt (weight >= 5) blocks on its own while
// weaker signals must co-occur.
var catalog = []rule{
	{
		name:    "instruction_override",
		weight:  5,
		pattern: regexp.MustCompile(`(?i)\b(ignore|disregard|forget|override)\b.{0,40}\b(previous|prior|above|earlier|all)\b.{0,30}\b(instructions?|prompts?|rules?|directives?)\b`),
	},
	{
		name:    "role_switch",
		weight:  5,
		pattern: regexp.MustCompile(`(?i)\b(you are now|act as|pretend (to be|you are)|roleplay as|from now on you)\b`),
	},
	{
		name:    "system_prompt_probe",
		weight:  5,
		pattern: regexp.MustCompile(`(?i)\b(reveal|show|print|repeat|output|tell me)\b.{0,40}\b(system prompt|initial prompt|hidden (prompt|instructions)|your (instructions|rules|prompt))\b`),
	},
	{
		name:    "code_execution",
		weight:  4,
		pattern: regexp.MustCompile(`(?i)\b(execute|run|eval)\b.{0,30}\b(code|command|script|shell|bash|python)\b|\brm\s+-rf\b|\bsudo\b`),
	},
	{
		name:    "filesystem_access",
		weight:  4,
		pattern: regexp.MustCompile(`(?i)\b(read|open|write|delete|list)\b.{0,30}\b(file|directory|filesystem|/etc/|environment variables?)\b`),
	},
	{
		name:    "control_tokens",
		weight:  5,
		pattern: regexp.MustCompile(`<\|[a-z_]+\|>|\[/?(INST|SYS)\]|<<SYS>>`),
	},
	{
		name:    "jailbreak_phrase",
		weight:  5,
		pattern: regexp.MustCompile(`(?i)\b(DAN mode|developer mode|jailbreak|do anything now|no restrictions apply|without (any )?(filters|restrictions|limitations))\b`),
	},
	{
		name:    "data_uri",
		weight:  3,
		pattern: regexp.MustCompile(`(?i)data:[a-z]+/[a-z0-9.+-]+;base64,`),
	},
	{
		name:    "fenced_code",
		weight:  2,
		pattern: regexp.MustCompile("```"),
	},
	{
		name:    "toxic_phrase",
		weight:  3,
		pattern: regexp.MustCompile(`(?i)\b(kill yourself|piece of (shit|garbage)|fuck(ing)? (you|this|idiot)|stupid (bitch|asshole)|go to hell)\b`),
	},
}

// urlPattern matches http(s) links for the untrusted-link signal and for
// Sanitize.
var urlPattern = regexp.MustCompile(`(?i)\bhttps?://([a-z0-9.-]+)[^\s]*`)

// Gate scores transcripts against the signal catalog. The zero value is not
// usable; construct with [NewGate].
type Gate struct {
	threshold      int
	allowedDomains map[string]struct{}
	logger         *slog.Logger
}

// NewGate returns a Gate with the given blocking threshold and link-domain
// allowlist. A threshold below 1 falls back to [DefaultThreshold].
func NewGate(threshold int, allowedDomains []string, logger *slog.Logger) *Gate {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]struct{}, len(allowedDomains))
	for _, d := range allowedDomains {
		allowed[strings.ToLower(d)] = struct{}{}
	}
	return &Gate{threshold: threshold, allowedDomains: allowed, logger: logger}
}

// Score evaluates text against the catalog and returns a verdict. Each rule
// contributes its weight at most once.
func (g *Gate) Score(text string) Verdict {
	var v Verdict
	for _, r := range catalog {
		if r.pattern.MatchString(text) {
			v.Signals = append(v.Signals, Signal{Name: r.name, Weight: r.weight})
			v.Score += r.weight
		}
	}
	if sig, ok := g.untrustedLink(text); ok {
		v.Signals = append(v.Signals, sig)
		v.Score += sig.Weight
	}
	v.Blocked = v.Score >= g.threshold
	if v.Blocked {
		g.logger.Warn("transcript blocked by safety gate",
			"score", v.Score,
			"threshold", g.threshold,
			"signals", signalNames(v.Signals),
		)
	}
	return v
}

// untrustedLink reports a signal when text contains a link whose domain is
// not on the allowlist.
func (g *Gate) untrustedLink(text string) (Signal, bool) {
	for _, m := range urlPattern.FindAllStringSubmatch(text, -1) {
		domain := strings.ToLower(m[1])
		if !g.domainAllowed(domain) {
			return Signal{Name: "untrusted_link", Weight: 3}, true
		}
	}
	return Signal{}, false
}

// domainAllowed reports whether domain or one of its parent domains is on
// the allowlist.
func (g *Gate) domainAllowed(domain string) bool {
	if _, ok := g.allowedDomains[domain]; ok {
		return true
	}
	for {
		i := strings.IndexByte(domain, '.')
		if i < 0 {
			return false
		}
		domain = domain[i+1:]
		if _, ok := g.allowedDomains[domain]; ok {
			return true
		}
	}
}

// Sanitize returns text with untrusted links stripped and fenced code blocks
// neutralised. It never blocks; it is used on transcripts that pass the gate
// but still carry low-weight signals.
func (g *Gate) Sanitize(text string) string {
	out := urlPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := urlPattern.FindStringSubmatch(m)
		if len(sub) > 1 && g.domainAllowed(strings.ToLower(sub[1])) {
			return m
		}
		return "[link removed]"
	})
	out = strings.ReplaceAll(out, "```", "'''")
	return out
}

// signalNames flattens signals for log output.
func signalNames(signals []Signal) string {
	names := make([]string, len(signals))
	for i, s := range signals {
		names[i] = fmt.Sprintf("%s(%d)", s.Name, s.Weight)
	}
	return strings.Join(names, ",")
}
