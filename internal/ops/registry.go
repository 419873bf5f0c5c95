// Package ops implements the operation registry, the built-in operation
// set, and the transfer and token-creation sub-flows.
package ops

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/solwire/solwire/internal/metrics"
	"github.com/solwire/solwire/internal/ops/operr"
	"github.com/solwire/solwire/internal/solana"
)

// FieldType names the validation rule applied to a parameter.
type FieldType string

const (
	// TypeString is a free-form string; required strings must be non-empty.
	TypeString FieldType = "string"
	// TypeAddress is a base58 32-byte public key.
	TypeAddress FieldType = "address"
	// TypeSignature is a base58 64-byte transaction signature.
	TypeSignature FieldType = "signature"
	// TypeAmount is a positive number of display units (SOL).
	TypeAmount FieldType = "amount"
	// TypeLimit is an integer in [1,100], defaulting to 10 when absent.
	TypeLimit FieldType = "limit"
	// TypeNumber is a non-negative number.
	TypeNumber FieldType = "number"
)

const (
	// MaxLimit caps the transaction history page size.
	MaxLimit = 100
	// DefaultLimit applies when the caller omits limit.
	DefaultLimit = 10
)

// Field describes one parameter of an operation schema.
type Field struct {
	Name        string
	Type        FieldType
	Required    bool
	Description string
}

// Schema is the declared parameter set of an operation.
type Schema []Field

// Handler executes an operation against validated, normalized parameters.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Descriptor binds an operation name to its schema and handler. The set is
// built once at startup and read-only thereafter.
type Descriptor struct {
	Name        string
	Description string
	Schema      Schema
	Handler     Handler
}

// Registry is the single source of truth for what a legal call is. All
// three front-ends validate through it, so acceptance behavior is identical
// across HTTP, WebSocket and stdio.
type Registry struct {
	descriptors map[string]Descriptor
	order       []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]Descriptor)}
}

// Register adds a descriptor. Called only during startup; duplicate names
// are a programming error.
func (r *Registry) Register(d Descriptor) {
	if _, exists := r.descriptors[d.Name]; exists {
		panic("operation already registered: " + d.Name)
	}
	r.descriptors[d.Name] = d
	r.order = append(r.order, d.Name)
}

// Resolve returns the descriptor for a name.
func (r *Registry) Resolve(name string) (Descriptor, error) {
	d, ok := r.descriptors[name]
	if !ok {
		return Descriptor{}, operr.UnknownOperation(name)
	}
	return d, nil
}

// Descriptors returns all registered descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.descriptors[name])
	}
	return out
}

// Names returns the sorted operation names.
func (r *Registry) Names() []string {
	out := append([]string(nil), r.order...)
	sort.Strings(out)
	return out
}

// Validate checks params against the operation's schema and returns the
// normalized parameter map. It runs before any handler and therefore before
// any remote call.
func (r *Registry) Validate(name string, params map[string]any) (map[string]any, error) {
	d, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return validateSchema(name, d.Schema, params)
}

// Execute validates, resolves and runs an operation. Handler failures that
// are not already categorized are wrapped as remote call failures carrying
// the operation name.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (any, error) {
	d, err := r.Resolve(name)
	if err != nil {
		metrics.RecordOperation(name, "unknown", 0)
		return nil, err
	}

	normalized, err := validateSchema(name, d.Schema, params)
	if err != nil {
		metrics.RecordOperation(name, "invalid", 0)
		return nil, err
	}

	start := time.Now()
	result, err := d.Handler(ctx, normalized)
	elapsed := time.Since(start)

	if err != nil {
		if operr.KindOf(err) == "" {
			err = operr.RemoteCallFailed(name, err)
		}
		metrics.RecordOperation(name, string(operr.KindOf(err)), elapsed)
		return nil, err
	}

	metrics.RecordOperation(name, "ok", elapsed)
	return result, nil
}

func validateSchema(op string, schema Schema, params map[string]any) (map[string]any, error) {
	normalized := make(map[string]any, len(schema))

	for _, field := range schema {
		raw, present := params[field.Name]
		if !present || raw == nil {
			if field.Type == TypeLimit {
				normalized[field.Name] = DefaultLimit
				continue
			}
			if field.Required {
				return nil, operr.Required(op, field.Name)
			}
			continue
		}

		value, err := normalizeField(op, field, raw)
		if err != nil {
			return nil, err
		}
		normalized[field.Name] = value
	}

	return normalized, nil
}

func normalizeField(op string, field Field, raw any) (any, error) {
	switch field.Type {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, operr.InvalidParams(op, field.Name, "must be a string")
		}
		s = strings.TrimSpace(s)
		if field.Required && s == "" {
			return nil, operr.Required(op, field.Name)
		}
		return s, nil

	case TypeAddress:
		s, ok := raw.(string)
		if !ok {
			return nil, operr.InvalidParams(op, field.Name, "must be a string")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, operr.Required(op, field.Name)
		}
		if err := solana.ValidateAddress(s); err != nil {
			return nil, operr.InvalidParams(op, field.Name, err.Error())
		}
		return s, nil

	case TypeSignature:
		s, ok := raw.(string)
		if !ok {
			return nil, operr.InvalidParams(op, field.Name, "must be a string")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, operr.Required(op, field.Name)
		}
		if err := solana.ValidateSignature(s); err != nil {
			return nil, operr.InvalidParams(op, field.Name, err.Error())
		}
		return s, nil

	case TypeAmount:
		amount, err := toFloat(raw)
		if err != nil {
			return nil, operr.InvalidParams(op, field.Name, "must be a number")
		}
		if amount <= 0 {
			return nil, operr.InvalidParams(op, field.Name, "must be greater than zero")
		}
		return amount, nil

	case TypeNumber:
		n, err := toFloat(raw)
		if err != nil {
			return nil, operr.InvalidParams(op, field.Name, "must be a number")
		}
		if n < 0 {
			return nil, operr.InvalidParams(op, field.Name, "must not be negative")
		}
		return n, nil

	case TypeLimit:
		n, err := toFloat(raw)
		if err != nil {
			return nil, operr.InvalidParams(op, field.Name, "must be an integer")
		}
		limit := int(n)
		if float64(limit) != n {
			return nil, operr.InvalidParams(op, field.Name, "must be an integer")
		}
		if limit < 1 || limit > MaxLimit {
			return nil, operr.InvalidParams(op, field.Name,
				fmt.Sprintf("must be between 1 and %d", MaxLimit))
		}
		return limit, nil

	default:
		return nil, operr.InvalidParams(op, field.Name, "unsupported field type")
	}
}

// toFloat accepts the numeric shapes JSON decoding and loosely-typed
// front-ends produce.
func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("not a number")
	}
}
