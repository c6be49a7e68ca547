package cachekey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseComponents() Components {
	return Components{
		FileHash:      "abc123",
		Model:         "m-A",
		PromptHash:    "prompthash1",
		SchemaVersion: 1,
		ConfigHash:    "cfg1",
	}
}

func TestCompute_Deterministic(t *testing.T) {
	c := baseComponents()

	k1, err := Compute(c)
	require.NoError(t, err)
	k2, err := Compute(c)
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64) // hex-encoded sha256
}

func TestCompute_AnyFactorChangesKey(t *testing.T) {
	base := baseComponents()
	baseKey, err := Compute(base)
	require.NoError(t, err)

	variants := []Components{
		{FileHash: "different", Model: base.Model, PromptHash: base.PromptHash, SchemaVersion: base.SchemaVersion, ConfigHash: base.ConfigHash},
		{FileHash: base.FileHash, Model: "m-B", PromptHash: base.PromptHash, SchemaVersion: base.SchemaVersion, ConfigHash: base.ConfigHash},
		{FileHash: base.FileHash, Model: base.Model, PromptHash: "different", SchemaVersion: base.SchemaVersion, ConfigHash: base.ConfigHash},
		{FileHash: base.FileHash, Model: base.Model, PromptHash: base.PromptHash, SchemaVersion: base.SchemaVersion + 1, ConfigHash: base.ConfigHash},
		{FileHash: base.FileHash, Model: base.Model, PromptHash: base.PromptHash, SchemaVersion: base.SchemaVersion, ConfigHash: "different"},
	}

	for _, v := range variants {
		k, err := Compute(v)
		require.NoError(t, err)
		assert.NotEqual(t, baseKey, k)
	}
}

func TestCompute_RejectsDelimiterInComponent(t *testing.T) {
	c := baseComponents()
	c.Model = "m|A"

	_, err := Compute(c)
	assert.Error(t, err)
}

func TestCompute_RejectsMissingRequiredFields(t *testing.T) {
	_, err := Compute(Components{})
	assert.Error(t, err)
}
