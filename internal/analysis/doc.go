// Package analysis characterizes recorded closed-loop trajectories.
//
//   - [PowerSpectrum] and [DominantFrequency]: spectrum of one state
//     signal, e.g. the base height oscillating with the gait
//   - [GeneratePhasePortrait]: 2D phase space trajectory of two state
//     entries
//   - [StroboscopicSection]: the state sampled once per gait period; a
//     trot that settles into a limit cycle collapses to a point
//   - [Analyze]: summary statistics of the base pose
//
// Everything works on states as stored by the storage package, so runs
// can be analyzed after the fact:
//
//	states, times, _ := store.LoadStates(id)
//	report := analysis.Analyze(states, times, 18, 0.5)
package analysis
