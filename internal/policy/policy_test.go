package policy

import (
	"testing"

	"github.com/lufespi/gestor-academico/internal/role"
	"github.com/lufespi/gestor-academico/internal/rpc"
)

func TestEmbeddedPolicy(t *testing.T) {
	enforcer, err := New()
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}

	cases := []struct {
		role    role.Role
		rpc     string
		action  string
		allowed bool
	}{
		{role.Coordinator, rpc.TotalStudents, ActionCall, true},
		{role.Professor, rpc.TotalStudents, ActionCall, false},
		{role.Student, rpc.TotalStudents, ActionCall, false},
		{role.Student, rpc.MyProjectDetails, ActionCall, true},
		{role.Coordinator, rpc.MyProjectDetails, ActionCall, false},
		{role.Professor, rpc.MyAdvisees, ActionCall, true},
		{role.Coordinator, rpc.MyAdvisees, ActionCall, false},
		{role.Student, rpc.Students, ActionCall, false},
		{role.Coordinator, rpc.UserRole, ActionReadAny, true},
		{role.Professor, rpc.UserRole, ActionReadAny, false},
		{role.Student, rpc.UserRole, ActionCall, true},
		{role.Role("admin"), rpc.TotalStudents, ActionCall, false},
		{role.None, rpc.UserRole, ActionCall, false},
	}
	for _, tc := range cases {
		allowed, err := enforcer.Allow(tc.role, tc.rpc, tc.action)
		if err != nil {
			t.Fatalf("enforce %s %s %s: %v", tc.role, tc.rpc, tc.action, err)
		}
		if allowed != tc.allowed {
			t.Fatalf("%s %s %s: expected allowed=%v", tc.role, tc.rpc, tc.action, tc.allowed)
		}
	}
}

func TestEveryRoleMayReadOwnRole(t *testing.T) {
	enforcer, err := New()
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}
	for _, r := range role.All() {
		allowed, err := enforcer.CanCall(r, rpc.UserRole)
		if err != nil || !allowed {
			t.Fatalf("role %s: expected %s allowed, got %v (err=%v)", r, rpc.UserRole, allowed, err)
		}
	}
}

func TestPolicyOnlyNamesKnownRPCs(t *testing.T) {
	enforcer, err := New()
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}
	rules, err := enforcer.Rules()
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	if len(rules) != len(policyLines(policyContent)) {
		t.Fatalf("expected every policy line loaded, got %d of %d", len(rules), len(policyLines(policyContent)))
	}
	for _, rule := range rules {
		if !rpc.Known(rule[1]) {
			t.Fatalf("unknown rpc %s", rule[1])
		}
	}
}

func TestNewFromRulesRejectsMalformedLines(t *testing.T) {
	bad := map[string]string{
		"short line":   "p, coordinator, get_total_students",
		"unknown role": "p, admin, get_total_students, call",
		"unknown type": "x, coordinator, get_total_students, call",
		"only comment": "# nothing here\n",
	}
	for name, rules := range bad {
		t.Run(name, func(t *testing.T) {
			if _, err := NewFromRules(rules); err == nil {
				t.Fatalf("expected error for %q", rules)
			}
		})
	}

	enforcer, err := NewFromRules("# comment\n\n   p, student, get_my_deadlines, call  \n")
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}
	allowed, err := enforcer.CanCall(role.Student, rpc.MyDeadlines)
	if err != nil || !allowed {
		t.Fatalf("expected student to call %s, got %v (err=%v)", rpc.MyDeadlines, allowed, err)
	}
}
