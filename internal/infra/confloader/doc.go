// Package confloader provides configuration loading mechanism.
//
// This package implements a configuration loader on top of koanf and a
// file watcher on top of fsnotify.
//
// Priority (highest to lowest):
//
//  1. Overrides (command-line flags)
//  2. Environment variables (PATHNET_SECTION_KEY)
//  3. Configuration file (YAML)
//  4. Values already set in the target struct
//
// The watcher is shared by configuration reloads and trace re-runs
// (pathnet replay --watch).
package confloader
