package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/fable/internal/rule"
	"github.com/roach88/fable/internal/world"
)

// Domain prefixes. The version suffix leaves room for a format change.
const (
	DomainWorld = "fable/world/v1"
	DomainRules = "fable/rules/v1"
)

// hashWithDomain returns hex(SHA256(domain + 0x00 + data)).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// World returns the digest of s. Two stores with the same tuple form have
// the same digest.
func World(s world.Store) (string, error) {
	b, err := Marshal(WorldValue(s))
	if err != nil {
		return "", fmt.Errorf("digest world: %w", err)
	}
	return hashWithDomain(DomainWorld, b), nil
}

// Rules returns the digest of a rule set. Rule order matters.
func Rules(rules []rule.Rule) (string, error) {
	b, err := Marshal(RulesValue(rules))
	if err != nil {
		return "", fmt.Errorf("digest rules: %w", err)
	}
	return hashWithDomain(DomainRules, b), nil
}

// MustWorld is like World but panics on error.
func MustWorld(s world.Store) string {
	d, err := World(s)
	if err != nil {
		panic(err)
	}
	return d
}
