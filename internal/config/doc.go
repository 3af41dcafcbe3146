// Package config loads binder settings from a bind.hcl file. Settings from
// the file are defaults; command-line flags override them.
package config
