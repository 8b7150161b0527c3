package robot

import (
	_ "embed"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/legmpc/internal/dynamo"
)

//go:embed a1.yaml
var defaultDescription []byte

// Description is the lumped-parameter description of a quadruped: a rigid
// base carrying four three-joint legs (abduction, hip, knee) with massless
// links and lumped joint inertia.
type Description struct {
	Name          string           `yaml:"name"`
	Mass          float64          `yaml:"mass"`
	BaseInertia   []float64        `yaml:"base_inertia"`
	JointInertia  float64          `yaml:"joint_inertia"`
	JointDamping  float64          `yaml:"joint_damping"`
	Gravity       float64          `yaml:"gravity"`
	ThighOffset   float64          `yaml:"thigh_offset"`
	ThighLength   float64          `yaml:"thigh_length"`
	CalfLength    float64          `yaml:"calf_length"`
	FixedBasePose []float64        `yaml:"fixed_base_pose"`
	Legs          []LegDescription `yaml:"legs"`
	Limits        LimitDescription `yaml:"limits"`
}

type LegDescription struct {
	Name string    `yaml:"name"`
	Foot string    `yaml:"foot"`
	Hip  []float64 `yaml:"hip"`
	// Side is +1 for left legs and -1 for right legs.
	Side float64 `yaml:"side"`
}

type LimitDescription struct {
	Abduction []float64 `yaml:"abduction"`
	Hip       []float64 `yaml:"hip"`
	Knee      []float64 `yaml:"knee"`
	Velocity  float64   `yaml:"velocity"`
	Torque    float64   `yaml:"torque"`
}

// DefaultDescription returns the embedded A1-like description.
func DefaultDescription() *Description {
	desc, err := ParseDescription(defaultDescription)
	if err != nil {
		panic(fmt.Sprintf("robot: embedded description is invalid: %v", err))
	}
	return desc
}

// LoadDescription reads a YAML description file. An empty path selects
// the embedded default.
func LoadDescription(path string) (*Description, error) {
	if path == "" {
		return DefaultDescription(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read robot description: %w", err)
	}
	return ParseDescription(data)
}

func ParseDescription(data []byte) (*Description, error) {
	var desc Description
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("%w: parse robot description: %v", dynamo.ErrConfig, err)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return &desc, nil
}

func (d *Description) Validate() error {
	var err error
	if d.Mass <= 0 {
		err = multierr.Append(err, dynamo.Configf("mass must be positive, got %g", d.Mass))
	}
	if d.JointInertia <= 0 {
		err = multierr.Append(err, dynamo.Configf("joint_inertia must be positive, got %g", d.JointInertia))
	}
	if d.ThighLength <= 0 || d.CalfLength <= 0 {
		err = multierr.Append(err, dynamo.Configf("link lengths must be positive"))
	}
	err = multierr.Append(err, dynamo.CheckDim("base_inertia", len(d.BaseInertia), 3))
	for i, v := range d.BaseInertia {
		if v <= 0 {
			err = multierr.Append(err, dynamo.Configf("base_inertia[%d] must be positive, got %g", i, v))
		}
	}
	if d.FixedBasePose != nil {
		err = multierr.Append(err, dynamo.CheckDim("fixed_base_pose", len(d.FixedBasePose), 6))
	}
	if len(d.Legs) != 4 {
		err = multierr.Append(err, dynamo.Configf("expected 4 legs, got %d", len(d.Legs)))
	}
	seen := make(map[string]bool)
	for _, leg := range d.Legs {
		if leg.Foot == "" {
			err = multierr.Append(err, dynamo.Configf("leg %q has no foot frame", leg.Name))
		}
		if seen[leg.Foot] {
			err = multierr.Append(err, dynamo.Configf("duplicate foot frame %q", leg.Foot))
		}
		seen[leg.Foot] = true
		err = multierr.Append(err, dynamo.CheckDim("leg "+leg.Name+" hip", len(leg.Hip), 3))
		if leg.Side != 1 && leg.Side != -1 {
			err = multierr.Append(err, dynamo.Configf("leg %q side must be +1 or -1, got %g", leg.Name, leg.Side))
		}
	}
	ranges := []struct {
		name string
		r    []float64
	}{
		{"abduction", d.Limits.Abduction},
		{"hip", d.Limits.Hip},
		{"knee", d.Limits.Knee},
	}
	for _, rg := range ranges {
		if len(rg.r) != 2 || rg.r[0] >= rg.r[1] {
			err = multierr.Append(err, dynamo.Configf("limits.%s must be an increasing pair", rg.name))
		}
	}
	if d.Limits.Velocity <= 0 || d.Limits.Torque <= 0 {
		err = multierr.Append(err, dynamo.Configf("velocity and torque limits must be positive"))
	}
	return err
}
