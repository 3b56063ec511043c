// Package config handles loading the forwarder configuration from a YAML
// file, applying defaults and validating the result.
package config
