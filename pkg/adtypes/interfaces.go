// Package adtypes defines the shared data structures and interfaces for adsdash.
// This file contains the service contract used by the service registry.
package adtypes

// Service is implemented by every adsdash service registered in the service registry.
// Services are constructed with their dependencies and prepared by Initialize.
type Service interface {
	Name() string
	Initialize() error
}
