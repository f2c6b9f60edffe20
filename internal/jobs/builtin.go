package jobs

import (
	"context"
	"encoding/json"

	"jobmill/internal/payload"
	"jobmill/pkg/logx"
)

// RegisterBuiltins installs the job classes that ship with the binary.
// Deployments register their own classes next to these in cmd wiring.
func RegisterBuiltins(r *Registry, log logx.Logger) error {
	builtins := map[string]Func{
		"noop": func(ctx context.Context, params payload.Value) error {
			return nil
		},
		"log_event": func(ctx context.Context, params payload.Value) error {
			b, err := json.Marshal(params)
			if err != nil {
				return err
			}
			log.Info("log_event fired", logx.String("params", string(b)))
			return nil
		},
	}
	for name, fn := range builtins {
		if err := r.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}
