package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hash domains keep digests of different record kinds from colliding even
// when their canonical payloads are byte-identical.
const (
	DomainSelection = "calcsync/selection/v1"
	DomainTemplate  = "calcsync/template/v1"
)

// Pair is one (path, value) component of a drill selection.
type Pair struct {
	Path  string `json:"path" yaml:"path"`
	Value string `json:"value" yaml:"value"`
}

func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SelectionHash identifies a drilldown request. Pair order is significant
// because drill paths are resolved in order.
func SelectionHash(category string, pairs []Pair) string {
	encoded := make([]any, 0, len(pairs))
	for _, p := range pairs {
		encoded = append(encoded, []string{p.Path, p.Value})
	}
	data, err := MarshalCanonical(map[string]any{
		"category":  category,
		"selection": encoded,
	})
	if err != nil {
		// Only strings are encoded above.
		panic(fmt.Sprintf("SelectionHash: %v", err))
	}
	return hashWithDomain(DomainSelection, data)
}

// TemplateHash returns a content hash of a compiled template spec.
func TemplateHash(spec TemplateSpec) (string, error) {
	data, err := MarshalCanonical(spec.canonical())
	if err != nil {
		return "", fmt.Errorf("TemplateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTemplate, data), nil
}
