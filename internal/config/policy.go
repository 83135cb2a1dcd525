package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/carlosmourajunior/minhasfinancas/internal/billing"
)

// Policy is the billing policy file:
//
//	cutoff_date: 2025-09-01
//	alert_lookback_cycles: 4
//	alert_grace_months: 1
//	recurring_series_length: 6
//	statement_category_name: Card Statement
type Policy struct {
	CutoffDate            string `yaml:"cutoff_date"`
	AlertLookbackCycles   int    `yaml:"alert_lookback_cycles"`
	AlertGraceMonths      int    `yaml:"alert_grace_months"`
	RecurringSeriesLength int    `yaml:"recurring_series_length"`
	StatementCategoryName string `yaml:"statement_category_name"`
}

// DefaultPolicy returns the policy used when no file is configured.
func DefaultPolicy() Policy {
	p := billing.DefaultPolicy()
	return Policy{
		AlertLookbackCycles:   p.LookbackCycles,
		AlertGraceMonths:      p.GraceMonths,
		RecurringSeriesLength: billing.DefaultSeriesLength,
		StatementCategoryName: "Card Statement",
	}
}

// LoadPolicy reads a YAML policy file over the defaults. An empty path or a
// missing file yields the defaults.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return policy, nil
	}
	if err != nil {
		return policy, fmt.Errorf("failed to read billing policy %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, fmt.Errorf("failed to parse billing policy %s: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return policy, fmt.Errorf("invalid billing policy %s: %w", path, err)
	}
	return policy, nil
}

func (p *Policy) applyEnv() error {
	if cutoff, ok := os.LookupEnv("BILLING_CUTOFF_DATE"); ok {
		p.CutoffDate = cutoff
	}
	p.AlertLookbackCycles = getEnvInt("BILLING_ALERT_LOOKBACK", p.AlertLookbackCycles)
	p.RecurringSeriesLength = getEnvInt("BILLING_SERIES_LENGTH", p.RecurringSeriesLength)
	return p.Validate()
}

// Validate checks the policy values.
func (p Policy) Validate() error {
	if _, err := p.Cutoff(); err != nil {
		return err
	}
	if p.AlertLookbackCycles < 1 {
		return fmt.Errorf("alert_lookback_cycles must be at least 1, got %d", p.AlertLookbackCycles)
	}
	if p.AlertGraceMonths < 0 {
		return fmt.Errorf("alert_grace_months cannot be negative, got %d", p.AlertGraceMonths)
	}
	if p.RecurringSeriesLength < 1 {
		return fmt.Errorf("recurring_series_length must be at least 1, got %d", p.RecurringSeriesLength)
	}
	if strings.TrimSpace(p.StatementCategoryName) == "" {
		return errors.New("statement_category_name cannot be empty")
	}
	return nil
}

// Cutoff parses the cutoff date; nil means no cutoff.
func (p Policy) Cutoff() (*time.Time, error) {
	if strings.TrimSpace(p.CutoffDate) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(p.CutoffDate))
	if err != nil {
		return nil, fmt.Errorf("cutoff_date must be YYYY-MM-DD: %w", err)
	}
	return &t, nil
}

// Alerts converts the policy into the engine's alert window policy.
func (p Policy) Alerts() billing.Policy {
	cutoff, _ := p.Cutoff()
	return billing.Policy{
		LookbackCycles: p.AlertLookbackCycles,
		GraceMonths:    p.AlertGraceMonths,
		Cutoff:         cutoff,
	}
}
