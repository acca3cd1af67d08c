// Package config loads and validates service configuration.
//
// Values come from, in increasing precedence: built-in defaults, an optional
// config.yaml, an optional .env file and STUDYCYCLE_* environment variables.
// Nested keys map onto variables by replacing dots with underscores, so
// training.learning_rate is read from STUDYCYCLE_TRAINING_LEARNING_RATE.
package config
