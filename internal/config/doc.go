// Package config loads the two configuration layers: process bootstrap from
// the environment (config path, admin listen address, log level) and the
// relay's runtime settings from a YAML file that can be reloaded while the
// service runs.
package config
