// Package viz renders trotting runs in the terminal.
//
//   - [Monitor]: Bubble Tea live view of a closed-loop run, fed with
//     [TickMsg] and [DoneMsg] through tea.Program.Send
//   - [GaitChart]: per-leg stance and swing bars over a time window
//   - [TopDown]: Braille top view of the feet and the CoM
//   - [Plot]: asciigraph line charts of stored series
//
// # Key Bindings
//
//	T - Cycle color themes
//	G - Cycle the plotted series
//	Q - Quit
package viz
