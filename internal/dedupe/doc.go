// Package dedupe remembers recent submissions for a configurable window so
// a retried tool call can be answered with the original result instead of
// repeating a side effect.
package dedupe
