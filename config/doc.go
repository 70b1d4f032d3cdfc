// Package config provides the application's configuration surface.
//
// Configuration is loaded once at process start from a YAML file via viper,
// validated, and never mutated afterwards. The sandbox limits defined here
// (platform maximum timeout, grace period, output capacity, concurrency
// ceiling, step ceiling, default tier) bound every run the engine accepts.
package config
