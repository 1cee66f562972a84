package media

import (
	"fmt"
	"strings"
)

// ModelTier selects a whisper model size.
type ModelTier string

const (
	TierTiny   ModelTier = "tiny"
	TierBase   ModelTier = "base"
	TierSmall  ModelTier = "small"
	TierMedium ModelTier = "medium"
	TierLarge  ModelTier = "large"

	DefaultTier = TierSmall
)

var tiers = []ModelTier{TierTiny, TierBase, TierSmall, TierMedium, TierLarge}

var tierDescriptions = map[ModelTier]string{
	TierTiny:   "39M params, fastest",
	TierBase:   "74M params",
	TierSmall:  "244M params",
	TierMedium: "769M params",
	TierLarge:  "1550M params, most accurate",
}

// Tiers lists every tier from smallest to largest.
func Tiers() []ModelTier {
	out := make([]ModelTier, len(tiers))
	copy(out, tiers)
	return out
}

func ParseModelTier(s string) (ModelTier, error) {
	t := ModelTier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown model tier %q (want one of %v)", s, tiers)
	}
	return t, nil
}

func (t ModelTier) Valid() bool {
	_, ok := tierDescriptions[t]
	return ok
}

// ModelID is the identifier whisper engines use for this tier.
func (t ModelTier) ModelID() string {
	return string(t)
}

func (t ModelTier) Describe() string {
	return tierDescriptions[t]
}

func (t ModelTier) String() string {
	return string(t)
}
