// Package dedupe tracks recent story views per viewer so that a story's view
// counter moves once per viewer within a configurable window.
package dedupe
