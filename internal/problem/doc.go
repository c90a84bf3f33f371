// Package problem defines the data model for differential equation
// problems: the immutable [Spec] describing an equation instance, the
// [State] vector, the calling conventions for user-supplied dynamics,
// residual and noise functions, and the error taxonomy shared across
// the solver core.
//
// A Spec is pure data. It carries no solver state and is safe to reuse
// across runs; every integration run clones what it needs.
//
//   - ODE:  du/dt = f(u, p, t), supplied as [ODEFunc]
//   - DAE:  0 = resid(du, u, p, t), supplied as [ResidualFunc]
//   - SDE:  du = f dt + g dW, drift [ODEFunc] plus diffusion [NoiseFunc]
//   - DDE:  du/dt = f(u, h, p, t) with delayed-state accessor h, [DDEFunc]
package problem
