// Package observability provides structured logging for the review tool.
//
// Logs are written to stderr with zap so they never interleave with the
// operator prompts on stdout. The context-aware Logger tags every entry with
// the review session ID and reviewer carried in the context.
package observability
