package policy

import (
	"fmt"
)

const PolicyVersion = "2026-01-01"

// SummerizeConclusion folds the conclusions of every statement into a
// verdict. An explicit ALLOW or DENY short-circuits.
func SummerizeConclusion(conclusions []Conclusion, defaultAllow bool) bool {
	result := UNSET
	for _, c := range conclusions {
		switch c {
		case ALLOW:
			return true
		case DENY:
			return false
		default:
			result = result.Or(c)
		}
	}
	if result == UNSET {
		return defaultAllow
	}
	return result == ALLOW || result == OK
}

func EvaluatePolicy(doc PolicyDocument, ctx RequestContext, action string) (Conclusion, error) {
	policy, ok := doc.Versions[PolicyVersion]
	if !ok {
		return UNSET, fmt.Errorf("unsupported policy version")
	}

	statements, ok := policy.Statements[action]
	if !ok {
		return UNSET, nil
	}

	conclusion := UNSET
	for _, stmt := range statements {
		evalResult, err := Eval(ctx, stmt.Condition)
		if err != nil {
			continue
		}
		if evalResult.Result == true {
			conclusion = conclusion.Or(ParseConclusion(stmt.Emit))
		}
	}
	return conclusion, nil
}

// Authorize evaluates action and falls back to the policy default when no
// statement reaches a verdict.
func Authorize(doc PolicyDocument, ctx RequestContext, action string) (bool, error) {
	conclusion, err := EvaluatePolicy(doc, ctx, action)
	if err != nil {
		return false, err
	}
	return SummerizeConclusion([]Conclusion{conclusion}, doc.Versions[PolicyVersion].Defaults[action]), nil
}

func Eval(ctx RequestContext, expr Expr) (EvalResult, error) {
	if expr.Const != nil {
		return EvalResult{Operator: "Const", Result: expr.Const}, nil
	}

	args := make([]any, 0, len(expr.Args))
	results := make([]EvalResult, 0, len(expr.Args))
	for _, arg := range expr.Args {
		result, err := Eval(ctx, arg)
		if err != nil {
			return failure(expr.Operator, "%s", err.Error())
		}
		args = append(args, result.Result)
		results = append(results, result)
	}

	operatorFunc, exists := operators[expr.Operator]
	if !exists {
		return failure(expr.Operator, "unknown operator: %s", expr.Operator)
	}
	result, err := operatorFunc(ctx, args)
	result.Args = results
	return result, err
}
