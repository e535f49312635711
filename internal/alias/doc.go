// Package alias holds the shell's alias definitions.
//
// A Table is an ordered, capacity-bounded list of name to expansion pairs.
// Lookups match the whole input line exactly and the first definition wins,
// so redefining a name does not shadow the earlier entry. Expansions are
// substituted verbatim and never re-resolved.
//
// Tables are loaded from and flushed to a flat profile file holding one
// "name=expansion" record per line.
package alias
