package server

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/leapopt/pkg/compiler"
)

// solveOptions mirrors compiler.SolveOptions for request decoding.
type solveOptions struct {
	Backend   string        `mapstructure:"backend"`
	TimeLimit time.Duration `mapstructure:"time_limit"`
	MaxNodes  int           `mapstructure:"max_nodes"`
	MaxSteps  uint64        `mapstructure:"max_steps"`
}

// solveOptions decodes request options over the server defaults. Durations
// accept Go duration strings ("30s") or seconds as numbers.
func (s *Server) solveOptions(raw map[string]any) (compiler.SolveOptions, error) {
	out := s.solve
	if len(raw) == 0 {
		return out, nil
	}

	opts := solveOptions{
		Backend:   out.Backend,
		TimeLimit: out.TimeLimit,
		MaxNodes:  out.MaxNodes,
		MaxSteps:  out.MaxSteps,
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(raw); err != nil {
		return out, fmt.Errorf("invalid solve options: %w", err)
	}
	if opts.TimeLimit < 0 {
		return out, fmt.Errorf("invalid solve options: negative time_limit")
	}

	out.Backend = opts.Backend
	out.TimeLimit = opts.TimeLimit
	out.MaxNodes = opts.MaxNodes
	out.MaxSteps = opts.MaxSteps
	return out, nil
}

// secondsHook turns JSON numbers into durations in seconds.
func secondsHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Float64:
		return time.Duration(data.(float64) * float64(time.Second)), nil
	case reflect.Int, reflect.Int64:
		return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
	}
	return data, nil
}
