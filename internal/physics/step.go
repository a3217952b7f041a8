// Package physics implements the single authoritative simulation step
// shared, byte-for-byte, by the server's per-tick update and the client's
// prediction/replay path. It is grounded on the original engine's
// PhysicsEngine::SimulatePlayer/ApplyInput/ApplyPhysics/ClampValues and is
// deliberately a pure function: no clock reads, no globals, so the same
// (state, input, dt) always produces the same result.
package physics

import (
	"math"

	"github.com/janne-rocket/rocket-net/internal/model"
)

const (
	Acceleration  = 100.0
	MaxSpeed      = 500.0
	RotationSpeed = math.Pi
	Friction      = 0.95

	WorldWidth  = 1920.0
	WorldHeight = 1080.0

	twoPi = 2 * math.Pi
)

// Step advances state by dt seconds under input, in the exact order the
// original engine applies: rotation, thrust, integrate position, apply
// friction, recompute speed, wrap the world, clamp velocity. Friction is
// applied once per call regardless of dt (a quirk of the original engine
// preserved deliberately: at low tick rates it damps far more than a
// true per-second coefficient would).
func Step(state model.PlayerState, input model.Keyboard, dt float32) model.PlayerState {
	next := state

	applyInput(&next, input, dt)
	applyPhysics(&next, dt)
	clampValues(&next)

	next.Keyboard = input
	next.DeltaTime = dt
	return next
}

func applyInput(p *model.PlayerState, input model.Keyboard, dt float32) {
	if input.Has(model.KeyLeft) {
		p.Rotation -= RotationSpeed * dt
	}
	if input.Has(model.KeyRight) {
		p.Rotation += RotationSpeed * dt
	}

	for p.Rotation < 0 {
		p.Rotation += twoPi
	}
	for p.Rotation >= twoPi {
		p.Rotation -= twoPi
	}

	if input.Has(model.KeyUp) {
		p.Vel.X += float32(math.Cos(float64(p.Rotation))) * Acceleration * dt
		p.Vel.Y += float32(math.Sin(float64(p.Rotation))) * Acceleration * dt
	}
	if input.Has(model.KeyDown) {
		p.Vel.X += float32(math.Cos(float64(p.Rotation))) * Acceleration * dt * -0.5
		p.Vel.Y += float32(math.Sin(float64(p.Rotation))) * Acceleration * dt * -0.5
	}
}

func applyPhysics(p *model.PlayerState, dt float32) {
	p.Pos.X += p.Vel.X * dt
	p.Pos.Y += p.Vel.Y * dt

	p.Vel.X *= Friction
	p.Vel.Y *= Friction

	p.Speed = float32(math.Sqrt(float64(p.Vel.X*p.Vel.X + p.Vel.Y*p.Vel.Y)))

	p.Pos.X = wrap(p.Pos.X, WorldWidth)
	p.Pos.Y = wrap(p.Pos.Y, WorldHeight)
}

// wrap reduces v into [0, bound) by true modulo, matching spec's "wrap
// modulo the world" (a generalization of the original's single-edge snap,
// which only corrects a value that crossed the boundary by less than one
// world-width per tick).
func wrap(v, bound float32) float32 {
	m := float32(math.Mod(float64(v), float64(bound)))
	if m < 0 {
		m += bound
	}
	return m
}

func clampValues(p *model.PlayerState) {
	if p.Speed > MaxSpeed {
		scale := MaxSpeed / p.Speed
		p.Vel.X *= scale
		p.Vel.Y *= scale
		p.Speed = MaxSpeed
	}
}
