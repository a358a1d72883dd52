package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netgraph/internal/check"
	"netgraph/internal/fault"
)

func TestDefaultsValidate(t *testing.T) {
	for _, kind := range Kinds {
		o := New(kind)
		require.NoError(t, o.Validate(), kind)
		require.NotNil(t, o.LearningRate)
		assert.Equal(t, DefaultLearningRate, *o.LearningRate)
	}
	assert.Equal(t, DefaultMomentum, *New(Momentum).Momentum)
}

func TestValidateRequiredAndPositive(t *testing.T) {
	cases := []struct {
		name    string
		in      Optimizer
		wantErr bool
	}{
		{name: "sgd missing lr", in: Optimizer{Type: SGD}, wantErr: true},
		{name: "sgd zero lr", in: Optimizer{Type: SGD, LearningRate: check.Ptr(0.0)}, wantErr: true},
		{name: "sgd negative lr", in: Optimizer{Type: SGD, LearningRate: check.Ptr(-1.0)}, wantErr: true},
		{name: "sgd lr", in: Optimizer{Type: SGD, LearningRate: check.Ptr(0.01)}},
		{name: "momentum missing momentum", in: Optimizer{Type: Momentum, LearningRate: check.Ptr(0.1)}, wantErr: true},
		{name: "momentum nesterov", in: Optimizer{Type: Momentum, LearningRate: check.Ptr(0.1), Momentum: check.Ptr(0.9), UseNesterov: true}},
		{name: "adagrad negative accumulator", in: Optimizer{Type: Adagrad, LearningRate: check.Ptr(0.1), InitialAccumulatorValue: check.Ptr(-1.0)}, wantErr: true},
		{name: "adadelta empty", in: Optimizer{Type: Adadelta}},
		{name: "adadelta negative rho", in: Optimizer{Type: Adadelta, Rho: check.Ptr(-0.5)}, wantErr: true},
		{name: "adam empty", in: Optimizer{Type: Adam}},
		{name: "adam betas", in: Optimizer{Type: Adam, Beta1: check.Ptr(0.9), Beta2: check.Ptr(0.999), Epsilon: check.Ptr(1e-7)}},
		{name: "adamax zero decay", in: Optimizer{Type: Adamax, Decay: check.Ptr(0.0)}, wantErr: true},
		{name: "rmsprop missing lr", in: Optimizer{Type: RMSProp, Centered: true}, wantErr: true},
		{name: "rmsprop centered", in: Optimizer{Type: RMSProp, LearningRate: check.Ptr(0.001), Centered: true}},
		{name: "sgd with beta1", in: Optimizer{Type: SGD, LearningRate: check.Ptr(0.1), Beta1: check.Ptr(0.9)}, wantErr: true},
		{name: "adam centered", in: Optimizer{Type: Adam, Centered: true}, wantErr: true},
		{name: "missing type", in: Optimizer{}, wantErr: true},
		{name: "unknown type", in: Optimizer{Type: "_lion"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, fault.Of(fault.OptimizerVerify))
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("adam")
	require.NoError(t, err)
	assert.Equal(t, Adam, k)

	k, err = ParseKind("_RMSProp")
	require.NoError(t, err)
	assert.Equal(t, RMSProp, k)

	_, err = ParseKind("nadam")
	require.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	src := New(Momentum)
	dst := src.Clone()
	*dst.Momentum = 0.5
	assert.Equal(t, DefaultMomentum, *src.Momentum)
}

func TestCompileRejectsInvalidBeforeEngine(t *testing.T) {
	_, err := Compile(nil, Optimizer{Type: SGD})
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.Of(fault.OptimizerCompile))
}
