package layout

import "github.com/alfredjeanlab/kgview/internal/model"

// Options tunes the force simulation. Zero values fall back to the
// defaults below.
type Options struct {
	// Width and Height of the canvas; the centering force pulls toward
	// (Width/2, Height/2).
	Width, Height float64

	LinkDistance float64 // target separation of linked nodes (100)
	LinkStrength float64 // spring coefficient (0.3)

	Charge            float64 // many-body strength, negative repels (-150)
	ChargeDistanceMin float64 // closer pairs are treated as this far (1)
	ChargeDistanceMax float64 // pairs farther apart do not interact (150)

	CollideStrength float64 // overlap resolution strength (0.9)

	// Radius returns the collision radius of a node. Default: 25 for
	// prominent types (Person, Organization), 20 otherwise.
	Radius func(*model.Node) float64

	CenterStrength float64 // centroid correction per tick (1)

	AlphaMin      float64 // convergence threshold (0.001)
	AlphaDecay    float64 // geometric cooling rate (0.02)
	VelocityDecay float64 // friction applied to velocity each tick (0.4)

	// Seed feeds the jiggle used to separate coincident nodes.
	Seed int64
}

// DefaultRadius is the collision radius used when Options.Radius is nil.
func DefaultRadius(n *model.Node) float64 {
	if n.Type.IsProminent() {
		return 25
	}
	return 20
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 960
	}
	if o.Height <= 0 {
		o.Height = 600
	}
	if o.LinkDistance <= 0 {
		o.LinkDistance = 100
	}
	if o.LinkStrength <= 0 {
		o.LinkStrength = 0.3
	}
	if o.Charge == 0 {
		o.Charge = -150
	}
	if o.ChargeDistanceMin <= 0 {
		o.ChargeDistanceMin = 1
	}
	if o.ChargeDistanceMax <= 0 {
		o.ChargeDistanceMax = 150
	}
	if o.CollideStrength <= 0 {
		o.CollideStrength = 0.9
	}
	if o.Radius == nil {
		o.Radius = DefaultRadius
	}
	if o.CenterStrength <= 0 {
		o.CenterStrength = 1
	}
	if o.AlphaMin <= 0 {
		o.AlphaMin = 0.001
	}
	if o.AlphaDecay <= 0 {
		o.AlphaDecay = 0.02
	}
	if o.VelocityDecay <= 0 {
		o.VelocityDecay = 0.4
	}
	if o.Seed == 0 {
		o.Seed = 1
	}
	return o
}
