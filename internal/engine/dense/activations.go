package dense

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"

	"netgraph/internal/engine"
)

var (
	ErrActivationExists   = errors.New("activation already registered")
	ErrActivationNotFound = errors.New("activation not found")
)

// ActivationFunc transforms one last-axis vector in place.
type ActivationFunc func(params engine.ActivationParams, v []float64)

var activationRegistry = struct {
	mu sync.RWMutex
	m  map[string]ActivationFunc
}{
	m: make(map[string]ActivationFunc),
}

func init() {
	initializeBuiltInActivations()
}

const (
	seluAlpha = 1.6732632423543772
	seluScale = 1.0507009873554805
)

func elementwise(fn func(x float64) float64) ActivationFunc {
	return func(_ engine.ActivationParams, v []float64) {
		for i, x := range v {
			v[i] = fn(x)
		}
	}
}

func initializeBuiltInActivations() {
	MustRegisterActivation("linear", func(engine.ActivationParams, []float64) {})
	MustRegisterActivation("elu", func(p engine.ActivationParams, v []float64) {
		alpha := 1.0
		if p.Alpha != nil {
			alpha = *p.Alpha
		}
		for i, x := range v {
			if x <= 0 {
				v[i] = alpha * math.Expm1(x)
			}
		}
	})
	MustRegisterActivation("selu", elementwise(func(x float64) float64 {
		if x > 0 {
			return seluScale * x
		}
		return seluScale * seluAlpha * math.Expm1(x)
	}))
	MustRegisterActivation("relu", func(p engine.ActivationParams, v []float64) {
		for i, x := range v {
			if x < 0 {
				x = 0
			}
			if p.MaxValue != nil && x > *p.MaxValue {
				x = *p.MaxValue
			}
			v[i] = x
		}
	})
	MustRegisterActivation("relu6", elementwise(func(x float64) float64 {
		return math.Min(math.Max(x, 0), 6)
	}))
	MustRegisterActivation("sigmoid", elementwise(func(x float64) float64 {
		return 1.0 / (1.0 + math.Exp(-x))
	}))
	MustRegisterActivation("hardSigmoid", elementwise(func(x float64) float64 {
		return math.Min(math.Max(0.2*x+0.5, 0), 1)
	}))
	MustRegisterActivation("softplus", elementwise(func(x float64) float64 {
		if x > 30 {
			return x
		}
		return math.Log1p(math.Exp(x))
	}))
	MustRegisterActivation("softsign", elementwise(func(x float64) float64 {
		return x / (1 + math.Abs(x))
	}))
	MustRegisterActivation("tanh", elementwise(math.Tanh))
	MustRegisterActivation("softmax", func(_ engine.ActivationParams, v []float64) {
		if len(v) == 0 {
			return
		}
		peak := floats.Max(v)
		for i, x := range v {
			v[i] = math.Exp(x - peak)
		}
		floats.Scale(1/floats.Sum(v), v)
	})
}

func RegisterActivation(name string, fn ActivationFunc) error {
	if name == "" {
		return errors.New("activation name is required")
	}
	if fn == nil {
		return errors.New("activation function is required")
	}

	activationRegistry.mu.Lock()
	defer activationRegistry.mu.Unlock()

	if _, exists := activationRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrActivationExists, name)
	}
	activationRegistry.m[name] = fn
	return nil
}

func MustRegisterActivation(name string, fn ActivationFunc) {
	if err := RegisterActivation(name, fn); err != nil {
		panic(err)
	}
}

func GetActivation(name string) (ActivationFunc, error) {
	activationRegistry.mu.RLock()
	fn, ok := activationRegistry.m[name]
	activationRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActivationNotFound, name)
	}
	return fn, nil
}

func ListActivations() []string {
	activationRegistry.mu.RLock()
	defer activationRegistry.mu.RUnlock()

	names := make([]string, 0, len(activationRegistry.m))
	for name := range activationRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetActivationRegistryForTests() {
	activationRegistry.mu.Lock()
	activationRegistry.m = make(map[string]ActivationFunc)
	activationRegistry.mu.Unlock()
	initializeBuiltInActivations()
}
