// Package output provides output formatting for the pathnet CLI.
//
// Three formats are supported: an aligned text table (default), JSON and
// YAML. Values can implement Tabular to control their table layout; plain
// slices of structs are laid out by reflection using their json tags.
package output
