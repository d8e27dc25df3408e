// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package recommend

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/contractguard-ai/contractguard/services/agent/datatypes"
)

//go:embed library.yaml
var libraryYAML []byte

type libraryEntry struct {
	ProposedText string `yaml:"proposed_text"`
	Rationale    string `yaml:"rationale"`
	Likelihood   string `yaml:"likelihood"`
}

type libraryTiers struct {
	Aggressive libraryEntry `yaml:"aggressive"`
	Moderate   libraryEntry `yaml:"moderate"`
	Minimal    libraryEntry `yaml:"minimal"`
}

type libraryFile struct {
	Categories map[string]libraryTiers `yaml:"categories"`
	Default    libraryTiers            `yaml:"default"`
}

// Library is the static clause library backing the failure-masking fallback.
// Lookup always yields all three tiers: categories missing from the file
// resolve to the default entry.
type Library struct {
	categories map[datatypes.ClauseCategory]libraryTiers
	fallback   libraryTiers
}

// LoadLibrary parses the embedded library file.
func LoadLibrary() (*Library, error) {
	var file libraryFile
	if err := yaml.Unmarshal(libraryYAML, &file); err != nil {
		return nil, fmt.Errorf("parse clause library: %w", err)
	}
	lib := &Library{
		categories: make(map[datatypes.ClauseCategory]libraryTiers, len(file.Categories)),
		fallback:   file.Default,
	}
	for name, tiers := range file.Categories {
		category := datatypes.ClauseCategory(name)
		if !category.IsValid() {
			return nil, fmt.Errorf("clause library: unknown category %q", name)
		}
		lib.categories[category] = tiers
	}
	return lib, nil
}

// Recommendations returns the three library tiers for a category.
func (l *Library) Recommendations(category datatypes.ClauseCategory) []datatypes.TieredRecommendation {
	tiers, ok := l.categories[category]
	if !ok {
		tiers = l.fallback
	}
	return []datatypes.TieredRecommendation{
		tierFromEntry(datatypes.TierAggressive, tiers.Aggressive),
		tierFromEntry(datatypes.TierModerate, tiers.Moderate),
		tierFromEntry(datatypes.TierMinimal, tiers.Minimal),
	}
}

// Tier returns one library tier for a category.
func (l *Library) Tier(category datatypes.ClauseCategory, tier datatypes.RecommendationTier) datatypes.TieredRecommendation {
	tiers, ok := l.categories[category]
	if !ok {
		tiers = l.fallback
	}
	switch tier {
	case datatypes.TierAggressive:
		return tierFromEntry(tier, tiers.Aggressive)
	case datatypes.TierMinimal:
		return tierFromEntry(tier, tiers.Minimal)
	default:
		return tierFromEntry(datatypes.TierModerate, tiers.Moderate)
	}
}

func tierFromEntry(tier datatypes.RecommendationTier, entry libraryEntry) datatypes.TieredRecommendation {
	likelihood := datatypes.AcceptanceLikelihood(entry.Likelihood)
	switch likelihood {
	case datatypes.LikelihoodLow, datatypes.LikelihoodMedium, datatypes.LikelihoodHigh:
	default:
		likelihood = datatypes.LikelihoodMedium
	}
	return datatypes.TieredRecommendation{
		Tier:         tier,
		ProposedText: entry.ProposedText,
		Rationale:    entry.Rationale,
		Likelihood:   likelihood,
	}
}
