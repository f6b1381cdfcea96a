// Package logging provides a tiny abstraction over slog so the runtime can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. Agent execution strategies and the process supervisor
// log through this interface; passing nil selects NoOpLogger.
package logging
