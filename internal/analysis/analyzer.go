package analysis

import (
	"strings"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/pyast"
)

// Analyze parses req.StrategyCode and runs every static check against it,
// appending any violation to req's error list. It never returns an error
// itself: all findings are recorded on the request for the caller to
// inspect via req.Errors.
func Analyze(req *domain.BacktestRequest) *pyast.Module {
	errs := req.EnsureErrors()

	mod, err := pyast.Parse(req.StrategyCode)
	if err != nil {
		errs.Add("Syntax error: " + err.Error())
		return nil
	}

	for _, stmt := range mod.Body {
		validateImports(stmt, errs)
		validateBuiltins(stmt, errs)
		validateAttributes(stmt, errs)
	}
	validateStrategyClass(mod, errs)

	return mod
}

func validateImports(root pyast.Node, errs *domain.ErrorList) {
	pyast.Walk(root, func(n pyast.Node) {
		switch v := n.(type) {
		case *pyast.Import:
			modRoot := strings.SplitN(v.Module, ".", 2)[0]
			if !AllowedModules[modRoot] {
				errs.AddLine("Import of '"+v.Module+"' is not allowed", v.Line)
			}
		case *pyast.ImportFrom:
			modRoot := strings.SplitN(v.Module, ".", 2)[0]
			if !AllowedModules[modRoot] {
				errs.AddLine("Import from '"+v.Module+"' is not allowed", v.Line)
			}
		}
	})
}

func validateBuiltins(root pyast.Node, errs *domain.ErrorList) {
	pyast.Walk(root, func(n pyast.Node) {
		call, ok := n.(*pyast.Call)
		if !ok {
			return
		}
		name, ok := call.Func.(*pyast.Name)
		if !ok {
			return
		}
		switch {
		case ForbiddenBuiltins[name.Id]:
			errs.AddLine("Use of '"+name.Id+"()' is forbidden", call.Line)
		case pythonBuiltinNames[name.Id] && !AllowedBuiltins[name.Id]:
			errs.AddLine("Builtin '"+name.Id+"()' is not allowed", call.Line)
		}
	})
}

func validateAttributes(root pyast.Node, errs *domain.ErrorList) {
	pyast.Walk(root, func(n pyast.Node) {
		attr, ok := n.(*pyast.Attribute)
		if !ok {
			return
		}
		if ForbiddenAttributes[attr.Attr] {
			errs.AddLine("Access to '"+attr.Attr+"' is forbidden", attr.Line)
		}
	})
}

// validateStrategyClass verifies the module defines at least one class
// inheriting, directly or via a dotted attribute access, from Strategy.
func validateStrategyClass(mod *pyast.Module, errs *domain.ErrorList) {
	found := false
	pyast.Walk(mod, func(n pyast.Node) {
		cd, ok := n.(*pyast.ClassDef)
		if !ok || found {
			return
		}
		for _, base := range cd.Bases {
			if base == "Strategy" || strings.HasSuffix(base, ".Strategy") {
				found = true
				return
			}
		}
	})
	if !found {
		errs.Add("Code must define a class that inherits from Strategy")
	}
}
