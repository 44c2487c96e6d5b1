package security

import (
	"context"
	"fmt"
	"os"
	"reflect"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"pharmaflow/pkg/logger"
)

// DefaultRule grants admins everything and everyone else the exact "resource:action" permission.
const DefaultRule = `actor.admin || (resource + ":" + action) in actor.permissions`

// Rule overrides the default rule for one resource/action pair.
type Rule struct {
	Resource Resource `yaml:"resource"`
	Action   Action   `yaml:"action"`
	Expr     string   `yaml:"expr"`
}

// PolicyFile is the YAML document shape.
type PolicyFile struct {
	Rules []Rule `yaml:"rules"`
}

type ruleKey struct {
	resource Resource
	action   Action
}

// PolicyAuthorizer evaluates CEL rules. Programs are compiled once at construction.
type PolicyAuthorizer struct {
	fallback cel.Program
	rules    map[ruleKey]cel.Program
}

var _ Authorizer = (*PolicyAuthorizer)(nil)

// NewPolicyAuthorizer compiles the default rule plus overrides.
func NewPolicyAuthorizer(rules []Rule) (*PolicyAuthorizer, error) {
	env, err := cel.NewEnv(
		cel.Variable("actor", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("resource", cel.StringType),
		cel.Variable("action", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	fallback, err := compileRule(env, DefaultRule)
	if err != nil {
		return nil, fmt.Errorf("default rule: %w", err)
	}

	a := &PolicyAuthorizer{
		fallback: fallback,
		rules:    make(map[ruleKey]cel.Program, len(rules)),
	}
	for _, r := range rules {
		prg, err := compileRule(env, r.Expr)
		if err != nil {
			return nil, fmt.Errorf("rule %s:%s: %w", r.Resource, r.Action, err)
		}
		a.rules[ruleKey{r.Resource, r.Action}] = prg
	}
	return a, nil
}

// LoadPolicyFile reads rules from a YAML file. An empty path yields no overrides.
func LoadPolicyFile(path string) ([]Rule, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var file PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	return file.Rules, nil
}

func compileRule(env *cel.Env, expr string) (cel.Program, error) {
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
		return nil, fmt.Errorf("expression must evaluate to bool, got %v", ast.OutputType())
	}
	return env.Program(ast)
}

// Authorize implements Authorizer. Evaluation errors deny.
func (a *PolicyAuthorizer) Authorize(ctx context.Context, actor Actor, resource Resource, action Action) bool {
	prg, ok := a.rules[ruleKey{resource, action}]
	if !ok {
		prg = a.fallback
	}

	roles := actor.Roles
	if roles == nil {
		roles = []string{}
	}
	perms := actor.Permissions
	if perms == nil {
		perms = []string{}
	}

	out, _, err := prg.Eval(map[string]any{
		"actor": map[string]any{
			"id":          actor.ID,
			"roles":       roles,
			"permissions": perms,
			"admin":       actor.Admin,
		},
		"resource": string(resource),
		"action":   string(action),
	})
	if err != nil {
		logger.Warn(ctx, "policy evaluation failed",
			"resource", resource, "action", action, "error", err)
		return false
	}
	allowed, ok := out.Value().(bool)
	return ok && allowed
}
