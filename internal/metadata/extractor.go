// Package metadata extracts a strategy's universe and cadence from its
// parsed AST by reading class-variable assignments, without ever running
// the strategy's code.
package metadata

import (
	"fmt"
	"strings"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/pyast"
)

const (
	maxTickerLen    = 12
	maxUniverseSize = 200
)

// Extract walks mod looking for the first class that assigns a `universe`
// class variable, and returns its universe and cadence. It never executes
// strategy code; everything is read straight off the AST.
func Extract(mod *pyast.Module) (domain.StrategyMetadata, error) {
	for _, stmt := range mod.Body {
		cd, ok := stmt.(*pyast.ClassDef)
		if !ok {
			continue
		}

		var universeNode, cadenceNode pyast.Node
		for _, item := range cd.Body {
			assign, ok := item.(*pyast.Assign)
			if !ok {
				continue
			}
			for _, target := range assign.Targets {
				name, ok := target.(*pyast.Name)
				if !ok {
					continue
				}
				switch name.Id {
				case "universe":
					universeNode = assign.Value
				case "cadence":
					cadenceNode = assign.Value
				}
			}
		}

		if universeNode == nil {
			continue
		}

		universe, err := parseUniverse(universeNode, cd.Name)
		if err != nil {
			return domain.StrategyMetadata{}, err
		}

		cadence := domain.DefaultCadence()
		if cadenceNode != nil {
			cadence, err = parseCadence(cadenceNode, cd.Name)
			if err != nil {
				return domain.StrategyMetadata{}, err
			}
		}

		return domain.StrategyMetadata{Universe: universe, Cadence: cadence}, nil
	}

	return domain.StrategyMetadata{}, fmt.Errorf(
		"no strategy class with 'universe' found; define it as a class variable, " +
			`e.g. universe = ["SPY", "IEF"]`)
}

func parseUniverse(node pyast.Node, className string) ([]string, error) {
	list, ok := node.(*pyast.List)
	if !ok {
		return nil, fmt.Errorf(
			"%s.universe must be a list literal of ticker strings, e.g. universe = [\"SPY\", \"IEF\"]",
			className)
	}
	if len(list.Elts) == 0 {
		return nil, fmt.Errorf("%s.universe must not be empty", className)
	}

	var errs []string
	var cleaned []string
	seen := map[string]bool{}

	for i, elt := range list.Elts {
		c, ok := elt.(*pyast.Constant)
		if !ok || c.Kind != "string" {
			errs = append(errs, fmt.Sprintf("  universe[%d]: expected string literal", i))
			continue
		}
		ticker := strings.ToUpper(strings.TrimSpace(c.Str))
		switch {
		case ticker == "":
			errs = append(errs, fmt.Sprintf("  universe[%d]: empty or whitespace-only ticker", i))
		case len(ticker) > maxTickerLen:
			errs = append(errs, fmt.Sprintf("  universe[%d]: '%s' exceeds %d characters", i, ticker, maxTickerLen))
		case seen[ticker]:
			continue
		default:
			seen[ticker] = true
			cleaned = append(cleaned, ticker)
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%s.universe has invalid tickers:\n%s", className, strings.Join(errs, "\n"))
	}
	if len(cleaned) > maxUniverseSize {
		return nil, fmt.Errorf("%s.universe has %d tickers (max %d)", className, len(cleaned), maxUniverseSize)
	}
	return cleaned, nil
}

func parseCadence(node pyast.Node, className string) (domain.Cadence, error) {
	call, ok := node.(*pyast.Call)
	if !ok {
		return domain.Cadence{}, fmt.Errorf(
			"%s.cadence must be a Cadence(...) call, e.g. cadence = Cadence(bar_size=BarSize.DAILY)",
			className)
	}

	funcName, ok := callableName(call.Func)
	if !ok || funcName != "Cadence" {
		return domain.Cadence{}, fmt.Errorf("%s.cadence must be a Cadence(...) call, got %s(...)", className, funcName)
	}

	cadence := domain.DefaultCadence()

	for arg, val := range call.Keywords {
		attrStr, err := resolveEnumAttr(val, className)
		if err != nil {
			return domain.Cadence{}, err
		}

		switch arg {
		case "bar_size":
			bs, ok := parseBarSize(attrStr)
			if !ok {
				return domain.Cadence{}, fmt.Errorf(
					"%s.cadence: unknown bar_size '%s'. Valid: BarSize.DAILY, BarSize.WEEKLY, BarSize.MONTHLY, BarSize.QUARTERLY",
					className, attrStr)
			}
			cadence.BarSize = bs
		case "execution":
			ex, ok := parseExecutionTiming(attrStr)
			if !ok {
				return domain.Cadence{}, fmt.Errorf(
					"%s.cadence: unknown execution '%s'. Valid: ExecutionTiming.CLOSE_TO_CLOSE, ExecutionTiming.CLOSE_TO_NEXT_OPEN, ExecutionTiming.OPEN_TO_OPEN",
					className, attrStr)
			}
			cadence.Execution = ex
		default:
			return domain.Cadence{}, fmt.Errorf(
				"%s.cadence: unknown argument '%s'. Valid arguments: bar_size, execution", className, arg)
		}
	}

	return cadence, nil
}

func callableName(n pyast.Node) (string, bool) {
	switch v := n.(type) {
	case *pyast.Name:
		return v.Id, true
	case *pyast.Attribute:
		return v.Attr, true
	default:
		return "", false
	}
}

// resolveEnumAttr resolves `BarSize.DAILY` to "DAILY"; any other shape
// (a bare variable, a call, anything else) is rejected exactly as the
// extractor refuses to evaluate expressions.
func resolveEnumAttr(n pyast.Node, className string) (string, error) {
	attr, ok := n.(*pyast.Attribute)
	if !ok {
		return "", fmt.Errorf(
			"%s.cadence arguments must be BarSize.X or ExecutionTiming.Y, not variables or function calls",
			className)
	}
	if _, ok := attr.Value.(*pyast.Name); !ok {
		return "", fmt.Errorf(
			"%s.cadence arguments must be BarSize.X or ExecutionTiming.Y, not variables or function calls",
			className)
	}
	return attr.Attr, nil
}

func parseBarSize(s string) (domain.BarSize, bool) {
	switch s {
	case "DAILY":
		return domain.BarDaily, true
	case "WEEKLY":
		return domain.BarWeekly, true
	case "MONTHLY":
		return domain.BarMonthly, true
	case "QUARTERLY":
		return domain.BarQuarterly, true
	default:
		return "", false
	}
}

func parseExecutionTiming(s string) (domain.ExecutionTiming, bool) {
	switch s {
	case "CLOSE_TO_CLOSE":
		return domain.CloseToClose, true
	case "CLOSE_TO_NEXT_OPEN":
		return domain.CloseToNextOpen, true
	case "OPEN_TO_OPEN":
		return domain.OpenToOpen, true
	default:
		return "", false
	}
}
