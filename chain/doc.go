// Package chain builds filter chains from YAML definitions.
//
// A definition names a root node; nodes reference registered filters and
// predicates by name, nest pipelines, fan-outs and conditionals, and may
// include other definitions by name through a Loader. Includes are resolved
// recursively and cycles are rejected.
package chain
