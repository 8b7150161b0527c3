package robot

import (
	"math"

	"github.com/golang/geo/r3"
)

// mat3 is a row-major 3x3 matrix. The leg kinematics only ever needs
// elementary rotations and their derivatives.
type mat3 [3][3]float64

func rotX(a float64) mat3 {
	s, c := math.Sincos(a)
	return mat3{{1, 0, 0}, {0, c, -s}, {0, s, c}}
}

func rotY(a float64) mat3 {
	s, c := math.Sincos(a)
	return mat3{{c, 0, s}, {0, 1, 0}, {-s, 0, c}}
}

func rotZ(a float64) mat3 {
	s, c := math.Sincos(a)
	return mat3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

func drotX(a float64) mat3 {
	s, c := math.Sincos(a)
	return mat3{{0, 0, 0}, {0, -s, -c}, {0, c, -s}}
}

func drotY(a float64) mat3 {
	s, c := math.Sincos(a)
	return mat3{{-s, 0, c}, {0, 0, 0}, {-c, 0, -s}}
}

func drotZ(a float64) mat3 {
	s, c := math.Sincos(a)
	return mat3{{-s, -c, 0}, {c, -s, 0}, {0, 0, 0}}
}

func (m mat3) mul(o mat3) mat3 {
	var r mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j] + m[i][2]*o[2][j]
		}
	}
	return r
}

func (m mat3) apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// rpy returns Rz(yaw) Ry(pitch) Rx(roll) and its partial derivatives
// with respect to roll, pitch and yaw.
func rpy(roll, pitch, yaw float64) (r mat3, d [3]mat3) {
	rx, ry, rz := rotX(roll), rotY(pitch), rotZ(yaw)
	r = rz.mul(ry).mul(rx)
	d[0] = rz.mul(ry).mul(drotX(roll))
	d[1] = rz.mul(drotY(pitch)).mul(rx)
	d[2] = drotZ(yaw).mul(ry).mul(rx)
	return r, d
}

// RotateZ rotates v about the world z axis by yaw.
func RotateZ(v r3.Vector, yaw float64) r3.Vector {
	return rotZ(yaw).apply(v)
}
