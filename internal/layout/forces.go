package layout

import "math"

// applyLinks pulls linked nodes toward the rest length. The correction is
// split between endpoints by degree so hubs move less than leaves.
func (s *Simulation) applyLinks() {
	k := s.opts.LinkStrength * s.alpha
	for _, l := range s.links {
		src, tgt := l.source, l.target
		x := tgt.X + tgt.VX - src.X - src.VX
		y := tgt.Y + tgt.VY - src.Y - src.VY
		if x == 0 {
			x = s.jiggle()
		}
		if y == 0 {
			y = s.jiggle()
		}
		d := math.Sqrt(x*x + y*y)
		f := (d - s.distance) / d * k
		x *= f
		y *= f
		tgt.VX -= x * l.bias
		tgt.VY -= y * l.bias
		src.VX += x * (1 - l.bias)
		src.VY += y * (1 - l.bias)
	}
}

// applyCharge applies the pairwise inverse-square repulsion, ignoring pairs
// beyond ChargeDistanceMax.
func (s *Simulation) applyCharge() {
	maxSq := s.opts.ChargeDistanceMax * s.opts.ChargeDistanceMax
	minSq := s.opts.ChargeDistanceMin * s.opts.ChargeDistanceMin
	strength := s.opts.Charge * s.alpha
	for _, a := range s.nodes {
		for _, b := range s.nodes {
			if a == b {
				continue
			}
			x := b.X - a.X
			y := b.Y - a.Y
			l := x*x + y*y
			if l >= maxSq {
				continue
			}
			if x == 0 {
				x = s.jiggle()
				l += x * x
			}
			if y == 0 {
				y = s.jiggle()
				l += y * y
			}
			if l < minSq {
				l = math.Sqrt(minSq * l)
			}
			w := strength / l
			a.VX += x * w
			a.VY += y * w
		}
	}
}

// applyCollide pushes apart circles that will overlap after this tick's
// velocity is applied. Larger nodes move less.
func (s *Simulation) applyCollide() {
	for i, a := range s.nodes {
		ra := s.opts.Radius(a)
		xa, ya := a.X+a.VX, a.Y+a.VY
		for _, b := range s.nodes[i+1:] {
			rb := s.opts.Radius(b)
			r := ra + rb
			x := xa - b.X - b.VX
			y := ya - b.Y - b.VY
			l := x*x + y*y
			if l >= r*r {
				continue
			}
			if x == 0 {
				x = s.jiggle()
				l += x * x
			}
			if y == 0 {
				y = s.jiggle()
				l += y * y
			}
			l = math.Sqrt(l)
			f := (r - l) / l * s.opts.CollideStrength
			x *= f
			y *= f
			share := rb * rb / (ra*ra + rb*rb)
			a.VX += x * share
			a.VY += y * share
			b.VX -= x * (1 - share)
			b.VY -= y * (1 - share)
		}
	}
}

// applyCenter translates every node so the centroid moves toward the
// canvas center.
func (s *Simulation) applyCenter() {
	if len(s.nodes) == 0 {
		return
	}
	var sx, sy float64
	for _, n := range s.nodes {
		sx += n.X
		sy += n.Y
	}
	count := float64(len(s.nodes))
	sx = (sx/count - s.opts.Width/2) * s.opts.CenterStrength
	sy = (sy/count - s.opts.Height/2) * s.opts.CenterStrength
	for _, n := range s.nodes {
		n.X -= sx
		n.Y -= sy
	}
}
