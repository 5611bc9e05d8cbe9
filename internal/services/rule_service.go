package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"

	"adsdash/internal/logger"
)

// GlobalRuleDomain is the domain name of the rule that applies to every expert.
const GlobalRuleDomain = "global"

// ErrBlankRule is returned when an empty rule is applied or saved.
var ErrBlankRule = errors.New("rule text is empty")

// RuleBackend reads and writes per-domain prompt rules.
type RuleBackend interface {
	AgentRule(ctx context.Context, domain string) (string, error)
	SaveAgentRule(ctx context.Context, domain, text string) error
	AgentDefaultPrompt(ctx context.Context, domain string) (string, error)
}

// RuleService manages prompt rule overrides. A rule is either saved on the backend,
// where it applies to every later chat, or staged locally for the next send only.
type RuleService struct {
	mu          sync.Mutex
	initialized bool
	backend     RuleBackend
	saved       map[string]string
	staged      map[string]string
}

// NewRuleService creates a RuleService over backend.
func NewRuleService(backend RuleBackend) *RuleService {
	return &RuleService{
		backend: backend,
		saved:   make(map[string]string),
		staged:  make(map[string]string),
	}
}

// Name returns the service name "rules" for registration.
func (r *RuleService) Name() string {
	return "rules"
}

// Initialize prepares the service.
func (r *RuleService) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = true
	return nil
}

// Load returns the rule text to edit for domain: the saved override when there is one,
// otherwise the backend's default prompt. custom reports which it was.
func (r *RuleService) Load(ctx context.Context, domain string) (text string, custom bool, err error) {
	saved, err := r.backend.AgentRule(ctx, domain)
	if err != nil {
		return "", false, fmt.Errorf("failed to load %s rule: %w", domain, err)
	}

	r.mu.Lock()
	r.saved[domain] = saved
	r.mu.Unlock()

	if strings.TrimSpace(saved) != "" {
		return saved, true, nil
	}

	def, err := r.backend.AgentDefaultPrompt(ctx, domain)
	if err != nil {
		logger.Debug("No default prompt", "domain", domain, "error", err)
		return "", false, nil
	}
	return def, false, nil
}

// HasCustom reports whether the last Load or CommitPersistent of domain found a saved
// override.
func (r *RuleService) HasCustom(domain string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.TrimSpace(r.saved[domain]) != ""
}

// StageEphemeral stages text as the rule of domain for the next send only.
func (r *RuleService) StageEphemeral(domain, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrBlankRule
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staged[domain] = text
	return nil
}

// Staged returns a copy of the staged overrides.
func (r *RuleService) Staged() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.staged))
	for k, v := range r.staged {
		out[k] = v
	}
	return out
}

// TakeOverrides returns the staged overrides and clears them. It returns nil when
// nothing is staged.
func (r *RuleService) TakeOverrides() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.staged) == 0 {
		return nil
	}
	out := r.staged
	r.staged = make(map[string]string)
	return out
}

// CommitPersistent saves text as the rule of domain on the backend.
func (r *RuleService) CommitPersistent(ctx context.Context, domain, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrBlankRule
	}
	if err := r.backend.SaveAgentRule(ctx, domain, text); err != nil {
		return fmt.Errorf("failed to save %s rule: %w", domain, err)
	}
	r.mu.Lock()
	r.saved[domain] = text
	r.mu.Unlock()
	logger.Info("Saved rule", "domain", domain)
	return nil
}

// Edit opens the current rule of domain in editor and saves the result. It reports
// false when the text came back empty or unchanged; nothing is saved then.
func (r *RuleService) Edit(ctx context.Context, domain string, editor *EditorService) (bool, error) {
	current, _, err := r.Load(ctx, domain)
	if err != nil {
		return false, err
	}
	edited, err := editor.Edit(domain, current)
	if err != nil {
		return false, err
	}
	if edited == "" || edited == strings.TrimSpace(current) {
		return false, nil
	}
	return true, r.CommitPersistent(ctx, domain, edited)
}

// DiffKind marks a line of a rule diff.
type DiffKind int

const (
	DiffSame DiffKind = iota
	DiffRemoved
	DiffAdded
)

// DiffLine is one line of a rule diff.
type DiffLine struct {
	Kind DiffKind
	Text string
}

// Diff compares the default prompt of domain with its saved override line by line.
// Without a saved override the result is empty.
func (r *RuleService) Diff(ctx context.Context, domain string) ([]DiffLine, error) {
	saved, err := r.backend.AgentRule(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s rule: %w", domain, err)
	}
	if strings.TrimSpace(saved) == "" {
		return []DiffLine{}, nil
	}
	def, err := r.backend.AgentDefaultPrompt(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s default prompt: %w", domain, err)
	}
	return diffLines(def, saved), nil
}

func diffLines(from, to string) []DiffLine {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(withNewline(from), withNewline(to))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	out := []DiffLine{}
	for _, d := range diffs {
		kind := DiffSame
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			kind = DiffRemoved
		case diffmatchpatch.DiffInsert:
			kind = DiffAdded
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out = append(out, DiffLine{Kind: kind, Text: strings.TrimSuffix(line, "\n")})
		}
	}
	return out
}

func withNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// FormatDiff renders diff lines with "- ", "+ " and "  " prefixes.
func FormatDiff(lines []DiffLine) string {
	var b strings.Builder
	for _, l := range lines {
		switch l.Kind {
		case DiffRemoved:
			b.WriteString("- ")
		case DiffAdded:
			b.WriteString("+ ")
		default:
			b.WriteString("  ")
		}
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// GetGlobalRuleService returns the rules service from the global registry.
func GetGlobalRuleService() (*RuleService, error) {
	return Lookup[*RuleService](GetGlobalRegistry(), "rules")
}
