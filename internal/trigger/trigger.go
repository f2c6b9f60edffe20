// Package trigger exposes on-demand out-of-band firing to the admin
// boundary, addressed by the same derived identity keys registration uses.
package trigger

import (
	"errors"

	"jobmill/internal/engine"
	"jobmill/internal/identity"
	"jobmill/pkg/logx"
)

// Status is the client-visible result of a run-now request.
type Status int

const (
	// Accepted means the fire request was handed to the engine. It says
	// nothing about the job finishing or succeeding.
	Accepted Status = iota
	// NotFound means no schedule is registered under the key.
	NotFound
	// Malformed means the key does not parse as "{tenant}:{job}-v{version}".
	Malformed
)

func (s Status) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case NotFound:
		return "not found"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Engine is the fire capability consumed here.
type Engine interface {
	FireNow(key string) error
}

type Service struct {
	eng Engine
	log logx.Logger
}

func New(eng Engine, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{eng: eng, log: log}
}

// TriggerNow requests one immediate fire for key. Fire-and-forget: two calls
// request two independent fires, and a run-now may overlap an in-flight cron
// fire of the same identity.
func (s *Service) TriggerNow(key string) Status {
	if _, _, _, err := identity.ParseKey(key); err != nil {
		s.log.Debug("run-now rejected: malformed key", logx.String("key", key))
		return Malformed
	}
	if err := s.eng.FireNow(key); err != nil {
		if errors.Is(err, engine.ErrNotRegistered) {
			s.log.Debug("run-now for unknown schedule", logx.String("key", key))
			return NotFound
		}
		// The engine's queue accepts or the key is unknown; anything else is
		// unexpected but stays client-visible as not-found rather than a fault.
		s.log.Warn("run-now failed", logx.String("key", key), logx.Err(err))
		return NotFound
	}
	s.log.Info("run-now accepted", logx.String("key", key))
	return Accepted
}
