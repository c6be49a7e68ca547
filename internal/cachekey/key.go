// Package cachekey computes the composite, multi-factor cache key that
// identifies a single cached analysis artifact.
package cachekey

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sevigo/codewarden/internal/hash"
)

// delimiter joins the five key components before hashing. None of the
// components (hex digests, model identifiers, decimal integers) can contain
// it, so the concatenation is unambiguous.
const delimiter = "|"

// Components is the fixed-order tuple of factors that determine cache
// identity. Changing any one factor must change the derived key.
type Components struct {
	FileHash      string
	Model         string
	PromptHash    string
	SchemaVersion int
	ConfigHash    string
}

// Validate rejects components that would make the delimited concatenation
// ambiguous, or that are structurally incomplete.
func (c Components) Validate() error {
	if c.FileHash == "" || c.PromptHash == "" {
		return fmt.Errorf("cachekey: file_hash and prompt_hash are required")
	}
	if c.Model == "" {
		return fmt.Errorf("cachekey: model is required")
	}
	for name, v := range map[string]string{
		"file_hash":   c.FileHash,
		"model":       c.Model,
		"prompt_hash": c.PromptHash,
		"config_hash": c.ConfigHash,
	} {
		if strings.Contains(v, delimiter) {
			return fmt.Errorf("cachekey: component %s contains the reserved delimiter", name)
		}
	}
	return nil
}

// Compute returns the hex-encoded composite cache key
// H(file_hash || model || prompt_hash || schema_version || config_hash).
func Compute(c Components) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}

	parts := []string{
		c.FileHash,
		c.Model,
		c.PromptHash,
		strconv.Itoa(c.SchemaVersion),
		c.ConfigHash,
	}

	hasher := hash.NewContentHasher()
	return hasher.HashString(strings.Join(parts, delimiter)), nil
}
