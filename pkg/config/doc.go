// Package config loads the platform configuration: module root,
// repositories, timer wheel parameters, redeploy engine selection and
// logging. Values come from an optional YAML file with environment
// overrides applied last.
package config
