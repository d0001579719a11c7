// Package policy is the server-side enforcement point for role-scoped RPCs.
// The dashboard gate may hide a page, but only this policy decides whether a
// query runs.
package policy

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"

	"github.com/lufespi/gestor-academico/internal/role"
)

const (
	ActionCall    = "call"
	ActionReadAny = "read_any"
)

//go:embed model.conf
var modelContent string

//go:embed policy.csv
var policyContent string

type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// New builds the enforcer from the embedded model and policy rules.
func New() (*Enforcer, error) {
	return NewFromRules(policyContent)
}

// NewFromRules loads CSV policy lines of the form "p, role, rpc, action"
// through the string adapter. Blank lines and '#' comments are skipped; a line
// the adapter cannot load, or one naming an unknown role, is an error.
func NewFromRules(rules string) (*Enforcer, error) {
	m, err := model.NewModelFromString(modelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	lines := policyLines(rules)
	if len(lines) == 0 {
		return nil, errors.New("no policy rules")
	}
	adapter := stringadapter.NewAdapter(strings.Join(lines, "\n"))
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load casbin policies: %w", err)
	}

	e := &Enforcer{enforcer: enforcer}
	if err := e.validate(len(lines)); err != nil {
		return nil, err
	}
	return e, nil
}

// Rules returns the loaded policy as (role, rpc, action) triples.
func (e *Enforcer) Rules() ([][]string, error) {
	return e.enforcer.GetPolicy()
}

// validate checks what the adapter loaded. The adapter drops lines it cannot
// parse, so a short count means a malformed line.
func (e *Enforcer) validate(expected int) error {
	rules, err := e.Rules()
	if err != nil {
		return fmt.Errorf("read casbin policies: %w", err)
	}
	if len(rules) != expected {
		return fmt.Errorf("loaded %d of %d policy lines: expected \"p, role, rpc, action\"", len(rules), expected)
	}
	for _, rule := range rules {
		if _, ok := role.Parse(rule[0]); !ok {
			return fmt.Errorf("policy rule %v: unknown role %q", rule, rule[0])
		}
	}
	return nil
}

func policyLines(rules string) []string {
	var out []string
	for _, line := range strings.Split(rules, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Allow reports whether r may perform action on the named RPC. Unknown roles
// are always denied.
func (e *Enforcer) Allow(r role.Role, rpcName, action string) (bool, error) {
	if !r.Valid() {
		return false, nil
	}
	return e.enforcer.Enforce(string(r), rpcName, action)
}

func (e *Enforcer) CanCall(r role.Role, rpcName string) (bool, error) {
	return e.Allow(r, rpcName, ActionCall)
}
