package schematic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoResolver(ops ...OperationRef) Resolver {
	sig := Signature{
		Inputs:  []PortSignature{{Name: "input", Type: "string"}},
		Outputs: []PortSignature{{Name: "output", Type: "string"}},
	}
	set := map[OperationRef]bool{}
	for _, op := range ops {
		set[op] = true
	}
	return func(op OperationRef) (Signature, bool) {
		if set[op] {
			return sig, true
		}
		return Signature{}, false
	}
}

func TestValidateEarlyPassesOnWellFormedSchematic(t *testing.T) {
	s, err := Build(simpleDef())
	require.NoError(t, err)
	assert.Empty(t, ValidateEarly(s))
}

func TestValidateEarlyCatchesDanglingReference(t *testing.T) {
	def := simpleDef()
	def.Connections[0].FromNode = "dangling1"
	s, err := Build(def)
	require.NoError(t, err)

	errs := ValidateEarly(s)
	require.NotEmpty(t, errs)

	var kinds []string
	for _, e := range errs {
		kinds = append(kinds, e.Kind)
		assert.Equal(t, "early", e.Phase)
	}
	assert.Contains(t, kinds, "DanglingReference")
	assert.Contains(t, kinds, "NoInputs")
}

func TestValidateEarlyCatchesNoOutputs(t *testing.T) {
	def := Definition{
		Nodes: []NodeSpec{
			{Name: InputNodeName, Outputs: []PortSignature{{Name: "in", Type: "string"}}},
			{Name: OutputNodeName, Inputs: []PortSignature{{Name: "out", Type: "string"}}},
		},
	}
	s, err := Build(def)
	require.NoError(t, err)

	errs := ValidateEarly(s)
	var kinds []string
	for _, e := range errs {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, "NoOutputs")
}

func TestValidateEarlyOmitsBoundaryFromQualifiedNamesCheck(t *testing.T) {
	s, err := Build(simpleDef())
	require.NoError(t, err)
	for _, e := range ValidateEarly(s) {
		assert.NotEqual(t, "NotFullyQualified", e.Kind)
	}
}

func TestValidateLateOmitsSelfNamespace(t *testing.T) {
	def := simpleDef()
	def.Nodes[1].Operation = OperationRef{Namespace: "self", Name: "schematic"}
	s, err := Build(def)
	require.NoError(t, err)

	errs := ValidateLate(s, echoResolver())
	for _, e := range errs {
		assert.NotEqual(t, "MissingComponentModels", e.Kind)
	}
}

func TestValidateFinalDoesNotOmitSelfNamespace(t *testing.T) {
	def := simpleDef()
	def.Nodes[1].Operation = OperationRef{Namespace: "self", Name: "schematic"}
	s, err := Build(def)
	require.NoError(t, err)

	errs := ValidateFinal(s, echoResolver())
	var kinds []string
	for _, e := range errs {
		kinds = append(kinds, e.Kind)
		assert.Equal(t, "final", e.Phase)
	}
	assert.Contains(t, kinds, "MissingComponentModels")
}

func TestValidateLateCatchesInvalidPort(t *testing.T) {
	def := simpleDef()
	def.Connections[0].ToPort = "nope"
	s, err := Build(def)
	require.NoError(t, err)

	resolve := echoResolver(OperationRef{Namespace: "test", Name: "echo"})
	errs := ValidateLate(s, resolve)
	var kinds []string
	for _, e := range errs {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, "InvalidConnections")
}

func TestNoneSourcedDefaultEdgeIsNotDangling(t *testing.T) {
	def := simpleDef()
	def.Connections = append(def.Connections, ConnectionSpec{
		FromNode: NoneNodeName,
		FromPort: "unused",
		ToNode:   "echo",
		ToPort:   "input",
		Default:  &Default{Literal: "fallback"},
	})
	s, err := Build(def)
	require.NoError(t, err)

	for _, e := range ValidateEarly(s) {
		assert.NotEqual(t, "DanglingReference", e.Kind)
	}
}
