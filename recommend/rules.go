package recommend

import (
	"fmt"

	"github.com/code19m/errx"
	"github.com/google/cel-go/cel"
	"github.com/rise-and-shine/recoengine/domain"
)

const CodeRuleInvalid = "BUSINESS_RULE_INVALID"

// Rules are CEL drop conditions compiled once at start-up. Programs are safe for
// concurrent evaluation.
type Rules struct {
	rules []compiledRule
}

type compiledRule struct {
	name string
	prg  cel.Program
}

func newRuleEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("player", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("request", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// CompileRules type-checks every expression. An expression that does not yield a bool
// is rejected.
func CompileRules(cfgs []RuleConfig) (*Rules, error) {
	env, err := newRuleEnv()
	if err != nil {
		return nil, errx.Wrap(err)
	}

	r := &Rules{rules: make([]compiledRule, 0, len(cfgs))}
	for _, c := range cfgs {
		ast, issues := env.Compile(c.DropIf)
		if issues != nil && issues.Err() != nil {
			return nil, invalidRule(c, issues.Err().Error())
		}
		out := ast.OutputType()
		if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
			return nil, invalidRule(c, fmt.Sprintf("expression yields %s, want bool", out))
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, invalidRule(c, err.Error())
		}
		r.rules = append(r.rules, compiledRule{name: c.Name, prg: prg})
	}
	return r, nil
}

func invalidRule(c RuleConfig, msg string) error {
	return errx.New(msg,
		errx.WithCode(CodeRuleInvalid),
		errx.WithType(errx.T_Validation),
		errx.WithDetails(errx.D{"rule": c.Name, "drop_if": c.DropIf}),
	)
}

func (r *Rules) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}

// Drop returns the name of the first rule that drops item.
func (r *Rules) Drop(
	item domain.ItemFeatures,
	player domain.PlayerFeatures,
	req domain.RecommendationRequest,
) (string, bool, error) {
	if r.Len() == 0 {
		return "", false, nil
	}

	input := map[string]any{
		"item":    item.Env(),
		"player":  player.Env(),
		"request": requestEnv(req),
	}
	for _, rule := range r.rules {
		out, _, err := rule.prg.Eval(input)
		if err != nil {
			return "", false, errx.New(err.Error(),
				errx.WithCode(CodeRuleInvalid),
				errx.WithDetails(errx.D{"rule": rule.name, "item_id": item.ItemID}),
			)
		}
		if drop, ok := out.Value().(bool); ok && drop {
			return rule.name, true, nil
		}
	}
	return "", false, nil
}

func requestEnv(req domain.RecommendationRequest) map[string]any {
	params := req.Parameters
	if params == nil {
		params = map[string]any{}
	}
	return map[string]any{
		"player_id":   req.PlayerID,
		"count":       req.Count,
		"context":     req.Context,
		"device_type": req.DeviceType,
		"session_id":  req.SessionID,
		"parameters":  params,
	}
}
