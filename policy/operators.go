package policy

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

type Operator func(ctx RequestContext, args []any) (EvalResult, error)

var operators = map[string]Operator{
	"And":         opAnd,
	"Or":          opOr,
	"Not":         opNot,
	"Eq":          opEq,
	"Contains":    opContains,
	"Load":        opLoad,
	"IsRequester": opIsRequester,
}

func failure(op, format string, args ...any) (EvalResult, error) {
	err := fmt.Errorf(format, args...)
	return EvalResult{Operator: op, Error: err.Error()}, err
}

func bools(op string, args []any) ([]bool, error) {
	out := make([]bool, len(args))
	for i, arg := range args {
		b, ok := arg.(bool)
		if !ok {
			return nil, fmt.Errorf("bad argument type for %s at index %d. Expected bool but got %v", op, i, reflect.TypeOf(arg))
		}
		out[i] = b
	}
	return out, nil
}

func opAnd(ctx RequestContext, args []any) (EvalResult, error) {
	values, err := bools("And", args)
	if err != nil {
		return failure("And", "%s", err.Error())
	}
	return EvalResult{Operator: "And", Result: !slices.Contains(values, false)}, nil
}

func opOr(ctx RequestContext, args []any) (EvalResult, error) {
	values, err := bools("Or", args)
	if err != nil {
		return failure("Or", "%s", err.Error())
	}
	return EvalResult{Operator: "Or", Result: slices.Contains(values, true)}, nil
}

func opNot(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 1 {
		return failure("Not", "bad argument length for Not. Expected 1 but got %d", len(args))
	}
	values, err := bools("Not", args)
	if err != nil {
		return failure("Not", "%s", err.Error())
	}
	return EvalResult{Operator: "Not", Result: !values[0]}, nil
}

func opEq(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 2 {
		return failure("Eq", "bad argument length for Eq. Expected 2 but got %d", len(args))
	}
	return EvalResult{Operator: "Eq", Result: args[0] == args[1]}, nil
}

func opContains(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 2 {
		return failure("Contains", "bad argument length for Contains. Expected 2 but got %d", len(args))
	}

	switch haystack := args[0].(type) {
	case []any:
		return EvalResult{Operator: "Contains", Result: slices.Contains(haystack, args[1])}, nil
	case string:
		needle, ok := args[1].(string)
		if !ok {
			return failure("Contains", "bad argument type for Contains. Expected string but got %v", reflect.TypeOf(args[1]))
		}
		return EvalResult{Operator: "Contains", Result: strings.Contains(haystack, needle)}, nil
	default:
		return failure("Contains", "bad argument type for Contains. Expected []any or string but got %v", reflect.TypeOf(args[0]))
	}
}

func opLoad(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 1 {
		return failure("Load", "bad argument length for Load. Expected 1 but got %d", len(args))
	}
	key, ok := args[0].(string)
	if !ok {
		return failure("Load", "bad argument type for Load. Expected string but got %v", reflect.TypeOf(args[0]))
	}

	value, ok := resolveDotNotation(structToMap(ctx), key)
	if !ok {
		return failure("Load", "key not found: %s", key)
	}
	return EvalResult{Operator: "Load", Result: value}, nil
}

// opIsRequester reports whether the value equals the acting avatar. An
// anonymous request never matches.
func opIsRequester(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 1 {
		return failure("IsRequester", "bad argument length for IsRequester. Expected 1 but got %d", len(args))
	}
	id, _ := args[0].(string)
	return EvalResult{Operator: "IsRequester", Result: ctx.Requester != "" && id == ctx.Requester}, nil
}
