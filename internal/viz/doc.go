// Package viz renders fits and residuals in the terminal.
//
// The package draws on a Braille pixel canvas and wraps it in two layers:
//
//   - [Canvas]: Braille-based pixel canvas for high-fidelity rendering
//   - [Plot]: data-space scatter and curve plot with an axis frame
//   - [FitView]: Bubble Tea view that replays an inversion live
//
// # Key Bindings
//
//	Space - Pause/Resume the replay
//	Q     - Quit (cancels a still-running inversion)
//
// FitView buffers every accepted iteration, so the replay pace is set by
// the UI tick rather than by how fast the engine converges.
package viz
