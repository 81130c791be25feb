// Package validation checks decoded configuration trees against rule strings.
//
// # Basic Usage
//
//	v := validation.Make(section, validation.Rules{
//	    "paths":      "list|strings",
//	    "cache_file": "nullable|string",
//	    "analyser":   "nullable|map",
//	}).Strict().Under("deptrac")
//
//	if v.Fails() {
//	    return v.Errors().Err()
//	}
//
// # Available Rules
//
// Presence:
//   - required  : key present and not null
//   - nullable  : absent or null values skip the remaining rules
//   - sometimes : absent keys skip the remaining rules
//
// Types:
//   - string, boolean, integer, numeric
//   - list    : any decoded sequence
//   - strings : sequence of strings only
//   - map     : string-keyed mapping
//
// Constraints:
//   - in:a,b,c : string, or every element of a string list, is one of a, b, c
//   - min:n    : string length, list length or map size is at least n
//   - regex:re : string matches re
//
// Strict validators additionally reject keys that have no rule, reporting
// `Unrecognized option "x" under "deptrac".`
package validation
