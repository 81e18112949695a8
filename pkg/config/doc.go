// Package config loads the YAML file describing the nodes a watchdog manages.
package config
