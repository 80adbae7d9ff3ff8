// Package config handles application configuration loading and management.
//
// Configuration is stored in ~/.schaltwerk/config.json and includes the default
// shell, terminal geometry, output retention and stuck-detection timings.
package config
