package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSource string

// Validator checks the shape of seed items against the #Record CUE schema.
// Not safe for concurrent use.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile seed schema: %w", err)
	}
	schema := v.LookupPath(cue.ParsePath("#Record"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Record: %w", err)
	}
	return &Validator{ctx: ctx, schema: schema}, nil
}

// Validate returns nil if item matches #Record.
func (v *Validator) Validate(item Item) error {
	val := v.ctx.Encode(cueInput(item.Raw))
	if err := val.Err(); err != nil {
		return fmt.Errorf("item %d: %w", item.Position, err)
	}
	if err := v.schema.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("item %d: %w", item.Position, err)
	}
	return nil
}

// cueInput converts json.Number to Go numbers so CUE sees numeric kinds.
func cueInput(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, val := range raw {
		if n, ok := val.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				out[k] = i
				continue
			}
			if f, err := n.Float64(); err == nil {
				out[k] = f
				continue
			}
			out[k] = n.String()
			continue
		}
		out[k] = val
	}
	return out
}
