package credential

import (
	"fmt"
	"strings"

	"github.com/dshills/autoflow/pkg/domain/types"
)

// RefPrefix marks a configuration string as a reference to a stored secret.
const RefPrefix = "secret://"

// IsRef reports whether v is a secret reference.
func IsRef(v types.Value) bool {
	s, ok := v.AsString()
	return ok && strings.HasPrefix(s, RefPrefix)
}

// Ref builds the reference string for a secret name.
func Ref(name string) string {
	return RefPrefix + name
}

// Resolve returns a copy of cfg with every secret reference replaced by the
// secret's value. cfg itself is not modified.
func Resolve(store Store, cfg types.Config) (types.Config, error) {
	out := cfg.Clone()
	for field, v := range cfg {
		if !IsRef(v) {
			continue
		}
		if store == nil {
			return nil, fmt.Errorf("field %s references a secret but no credential store is configured", field)
		}
		s, _ := v.AsString()
		secret, err := store.Get(strings.TrimPrefix(s, RefPrefix))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		out[field] = types.String(secret)
	}
	return out, nil
}
