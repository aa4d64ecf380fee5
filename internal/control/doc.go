// Package control provides the discrete feedback law that drives a heater or
// cooler toward a setpoint.
//
// A single [PID] type covers the three laws used by the thermal demos:
//
//   - [ModePositional]: continuous-form PID, integral of e·Tp and derivative Δe/Tp
//   - [ModeIncremental]: velocity-form PI, u = clamp(u_prev + Δu)
//   - [ModeLegacy]: the aquarium variant that integrates the previous error
//
// Gains are given either as proportional gain plus integral and derivative
// times ([FormTime]) or as raw Kp/Ki/Kd ([FormParallel]).
//
// # Usage
//
//	pid, err := control.New(control.Config{
//		Mode: control.ModePositional, Form: control.FormTime,
//		Kp: 5, Ti: 70, Td: 10, Tp: 1, OutMin: 0, OutMax: 2000,
//	})
//	u := pid.Update(25, 20) // called once per sample period
//
// The output is always clamped to [OutMin, OutMax].
package control
