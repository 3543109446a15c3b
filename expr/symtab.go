package expr

// SymbolTable holds the fully-qualified names (e.g. "Param.Frame") that are
// available for interpolation in the current context, and their values.
type SymbolTable map[string]string

// Contains reports whether the symbol has a bound value.
func (s SymbolTable) Contains(symbol string) bool {
	_, ok := s[symbol]
	return ok
}

// Symbols returns the defined symbol names in unspecified order.
func (s SymbolTable) Symbols() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	return names
}

// Union returns a new table containing the entries of s overlaid with the
// entries of each of the given tables, later tables taking precedence.
func (s SymbolTable) Union(others ...SymbolTable) SymbolTable {
	merged := make(SymbolTable, len(s))
	for name, value := range s {
		merged[name] = value
	}
	for _, other := range others {
		for name, value := range other {
			merged[name] = value
		}
	}
	return merged
}
