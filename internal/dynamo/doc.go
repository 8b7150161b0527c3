// Package dynamo provides the core primitives shared by the trajectory
// optimization packages.
//
// The package defines:
//
//   - [State]: stacked generalized coordinates and velocities x = [q; v]
//   - [Control]: joint torque vector
//   - [Pool]: fixed-size worker pool used for stage-parallel work
//   - sentinel errors for configuration and numerical failures
//
// # Example
//
//	pool := dynamo.NewPool(4)
//	err := pool.Run(len(stages), func(worker, i int) error {
//		return linearize(worker, stages[i])
//	})
//
// # Thread Safety
//
// State and Control are plain slices and are not safe for concurrent
// mutation. A Pool may be shared, but Run calls must not be nested.
package dynamo
