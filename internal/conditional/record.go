package conditional

import (
	"errors"
	"fmt"

	"github.com/sol-strategies/dotbot-if/internal/directive"
)

var (
	ErrInvalidDirective     = errors.New("cannot handle this directive")
	ErrInvalidRecord        = errors.New("if record must be a mapping")
	ErrMissingCondition     = errors.New("missing cond or not parameter")
	ErrConflictingCondition = errors.New("cond and not parameters are mutually exclusive")
	ErrInvalidCondition     = errors.New("parameter must be a command string or a [description, command] pair")
	ErrInvalidBranch        = errors.New("branch must be a directive list")
	ErrInvalidSettings      = errors.New("invalid if defaults")
)

// recordSpec is the raw shape of one `if` record.
type recordSpec struct {
	Cond  any `mapstructure:"cond"`
	Not   any `mapstructure:"not"`
	Met   any `mapstructure:"met"`
	Then  any `mapstructure:"then"`
	Unmet any `mapstructure:"unmet"`
	Else  any `mapstructure:"else"`
}

// record is a validated `if` record with branch aliases resolved.
type record struct {
	Description string
	Command     string
	// Negate is set for `not`: the condition is met on a non-zero exit.
	Negate bool
	Met    directive.List
	Unmet  directive.List
}

func (r *record) isMet(exitCode int) bool {
	if r.Negate {
		return exitCode != 0
	}
	return exitCode == 0
}

// branch returns the directive list to run for the outcome, or nil.
func (r *record) branch(met bool) directive.List {
	if met {
		return r.Met
	}
	return r.Unmet
}

func parseRecord(data any) (*record, error) {
	m, ok := directive.AsMap(data)
	if !ok {
		return nil, fmt.Errorf("%w, got %T", ErrInvalidRecord, data)
	}

	var spec recordSpec
	unused, err := directive.Decode(m, &spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	for _, key := range unused {
		logger().Warn("ignoring unknown parameter", "parameter", key)
	}

	rec := &record{}
	hasCond, hasNot := !directive.IsEmpty(spec.Cond), !directive.IsEmpty(spec.Not)
	switch {
	case hasCond && hasNot:
		return nil, ErrConflictingCondition
	case hasCond:
		rec.Description, rec.Command, err = parseCondition("cond", spec.Cond)
	case hasNot:
		rec.Description, rec.Command, err = parseCondition("not", spec.Not)
		rec.Negate = true
	default:
		return nil, ErrMissingCondition
	}
	if err != nil {
		return nil, err
	}

	if rec.Met, err = parseBranch("met", spec.Met, "then", spec.Then); err != nil {
		return nil, err
	}
	if rec.Unmet, err = parseBranch("unmet", spec.Unmet, "else", spec.Else); err != nil {
		return nil, err
	}
	return rec, nil
}

// parseCondition accepts a command string or a [description, command] pair.
func parseCondition(param string, v any) (description, command string, err error) {
	switch t := v.(type) {
	case string:
		return "", t, nil
	case []any:
		if len(t) != 2 {
			return "", "", fmt.Errorf("%q %w, got %d elements", param, ErrInvalidCondition, len(t))
		}
		description, descOK := t[0].(string)
		command, cmdOK := t[1].(string)
		if !descOK || !cmdOK || command == "" {
			return "", "", fmt.Errorf("%q %w", param, ErrInvalidCondition)
		}
		return description, command, nil
	default:
		return "", "", fmt.Errorf("%q %w, got %T", param, ErrInvalidCondition, v)
	}
}

// parseBranch resolves a branch and its alias; the first non-empty wins.
func parseBranch(name string, v any, aliasName string, alias any) (directive.List, error) {
	if directive.IsEmpty(v) {
		name, v = aliasName, alias
	}
	if directive.IsEmpty(v) {
		return nil, nil
	}
	list, err := directive.ParseList(v)
	if err != nil {
		return nil, fmt.Errorf("%q %w: %w", name, ErrInvalidBranch, err)
	}
	return list, nil
}
