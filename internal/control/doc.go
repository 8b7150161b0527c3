// Package control holds the torque laws applied between controller ticks.
//
// A tick produces a [mpc.Command]: a feedforward torque, a feedback gain
// and the state it was planned around. Between ticks the plant runs the
// affine law
//
//	u = U + K (x - X)
//
// saturated at the joint torque limits:
//
//   - [Feedback]: the law of one command
//   - [PD]: a joint-space posture controller that emits constant commands,
//     used as a baseline against the MPC
package control
