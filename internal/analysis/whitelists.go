// Package analysis implements the static analyzer that runs over a
// strategy's parsed AST before it is ever executed: it rejects syntax
// outside a fixed allow-list, imports outside a fixed module set, forbidden
// builtin calls, forbidden attribute access, and the absence of a class
// that inherits from Strategy.
package analysis

// AllowedModules is the set of importable module roots. Anything imported
// outside this set is rejected, since the sandbox has no way to provide it
// safely anyway.
var AllowedModules = map[string]bool{
	"numpy": true, "pandas": true, "math": true, "statistics": true,
	"talib":          true,
	"hqg_algorithms": true,
	"datetime":       true, "typing": true, "collections": true,
	"itertools": true, "functools": true, "dataclasses": true,
	"enum": true, "decimal": true, "fractions": true, "abc": true,
}

// AllowedBuiltins is the set of builtin function names a strategy may call.
var AllowedBuiltins = map[string]bool{
	"int": true, "float": true, "str": true, "bool": true, "list": true,
	"dict": true, "set": true, "tuple": true, "frozenset": true,
	"bytes": true, "bytearray": true, "complex": true,
	"range": true, "enumerate": true, "zip": true, "map": true,
	"filter": true, "reversed": true, "sorted": true,
	"len": true, "sum": true, "min": true, "max": true, "abs": true,
	"round": true, "pow": true, "all": true, "any": true,
	"isinstance": true, "issubclass": true, "type": true, "callable": true,
	"hasattr": true, "getattr": true, "setattr": true, "delattr": true,
	"id": true, "hash": true, "repr": true, "format": true,
	"iter": true, "next": true,
	"print": true, "slice": true, "object": true, "super": true,
	"property": true, "staticmethod": true, "classmethod": true,
	"divmod": true, "ord": true, "chr": true, "bin": true, "hex": true, "oct": true,
}

// ForbiddenBuiltins is always rejected, regardless of AllowedBuiltins.
var ForbiddenBuiltins = map[string]bool{
	"eval": true, "exec": true, "compile": true, "__import__": true,
	"open": true, "input": true,
	"breakpoint": true, "help": true,
	"globals": true, "locals": true, "vars": true, "dir": true,
	"memoryview": true,
}

// ForbiddenAttributes is always rejected as an attribute name, since each
// one is a path to introspection, frame access, or import machinery that
// could escape the sandbox's intended surface.
var ForbiddenAttributes = map[string]bool{
	"__globals__": true, "__locals__": true, "__code__": true, "__builtins__": true,
	"__dict__": true, "__class__": true, "__bases__": true, "__mro__": true,
	"__subclasses__": true, "__init_subclass__": true, "__set_name__": true,
	"__frame__": true, "__traceback__": true, "f_globals": true, "f_locals": true,
	"f_code": true, "gi_frame": true, "gi_code": true, "cr_frame": true, "cr_code": true,
	"__loader__": true, "__spec__": true, "__path__": true, "__file__": true, "__cached__": true,
	"__reduce__": true, "__reduce_ex__": true, "__getstate__": true, "__setstate__": true,
}

// pythonBuiltinNames approximates CPython's `dir(builtins)` for the subset
// relevant to distinguishing "unknown name" from "builtin not on the
// allow-list" — a strategy calling an undefined name is a different error
// than one calling a real but disallowed builtin.
var pythonBuiltinNames = func() map[string]bool {
	names := map[string]bool{}
	for n := range AllowedBuiltins {
		names[n] = true
	}
	for n := range ForbiddenBuiltins {
		names[n] = true
	}
	extra := []string{
		"ArithmeticError", "AssertionError", "AttributeError", "BaseException",
		"Exception", "IndexError", "KeyError", "NotImplementedError",
		"OverflowError", "RuntimeError", "StopIteration", "TypeError",
		"ValueError", "ZeroDivisionError", "True", "False", "None",
		"NotImplemented", "Ellipsis", "__name__", "__doc__",
	}
	for _, n := range extra {
		names[n] = true
	}
	return names
}()
