// Package config loads service configuration from environment variables
// using envconfig. Every field has a default, so an empty environment
// yields a runnable service with a deny-all URL scope.
package config
