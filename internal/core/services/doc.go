// Package services implements the driving port interfaces.
// Services contain the core pipeline logic and orchestrate
// calls to driven ports (decoders, derivers, sources, sinks and stores).
//
// Services are pure Go with no CGO; they depend only on domain, ports,
// the filter package and the logger.
package services
