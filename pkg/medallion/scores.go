package medallion

import "strings"

// Derived scalar scores attached at the Gold tier. All functions tolerate
// empty inputs (contributing zero) and clamp to their stated bounds.

var nightlifeKeywords = []string{
	"bar", "pub", "club", "nightclub", "lounge", "brewery", "wine",
	"cocktail", "music venue", "theater", "cinema",
}

var familyKeywords = []string{
	"school", "park", "playground", "library", "community center",
	"daycare", "pediatric", "family", "youth", "recreation",
}

var culturalKeywords = []string{
	"museum", "art", "gallery", "theater", "music", "concert", "cultural",
	"heritage", "historic", "library", "exhibition", "festival", "opera",
	"symphony",
}

var greenSpaceKeywords = []string{
	"park", "garden", "trail", "beach", "forest", "nature", "outdoor",
	"recreation", "green", "golf", "lake", "river", "hiking", "biking",
	"open space",
}

// countMatches counts items containing any keyword, case-insensitive
// substring match. Each item counts at most once.
func countMatches(items, keywords []string) int {
	var n int
	for _, item := range items {
		item = strings.ToLower(item)
		for _, kw := range keywords {
			if strings.Contains(item, kw) {
				n++
				break
			}
		}
	}
	return n
}

func hasAnyTag(tags []string, wanted ...string) bool {
	for _, tag := range tags {
		tag = strings.ToLower(tag)
		for _, w := range wanted {
			if strings.Contains(tag, w) {
				return true
			}
		}
	}
	return false
}

// NightlifeScore rates nightlife amenities on [0, 10].
func NightlifeScore(amenities, tags []string) float64 {
	score := float64(countMatches(amenities, nightlifeKeywords)) * 1.5
	if hasAnyTag(tags, "nightlife", "entertainment") {
		score += 2
	}
	return clamp(score, 0, 10)
}

// FamilyFriendlyScore combines school ratings, safety, and family amenities
// on [0, 10]. Nil ratings contribute zero.
func FamilyFriendlyScore(schoolRating, safetyRating *float64, amenities, tags []string) float64 {
	var school, safety float64
	if schoolRating != nil {
		school = clamp(*schoolRating, 0, 10)
	}
	if safetyRating != nil {
		safety = clamp(*safetyRating, 0, 10)
	}
	amenityScore := clamp(float64(countMatches(amenities, familyKeywords))*2, 0, 10)

	score := school*0.4 + safety*0.3 + amenityScore*0.3
	if hasAnyTag(tags, "family", "quiet") {
		score += 1
	}
	return clamp(score, 0, 10)
}

// CulturalScore rates cultural amenities and topics on [0, 10].
func CulturalScore(amenities, topics []string) float64 {
	score := float64(countMatches(amenities, culturalKeywords)) * 1.5
	score += float64(countMatches(topics, culturalKeywords)) * 0.5
	return clamp(score, 0, 10)
}

// GreenSpaceScore rates outdoor amenities on [0, 10].
func GreenSpaceScore(amenities, tags []string) float64 {
	score := float64(countMatches(amenities, greenSpaceKeywords)) * 1.5
	if hasAnyTag(tags, "outdoor", "nature", "green") {
		score += 2
	}
	return clamp(score, 0, 10)
}

// KnowledgeScore estimates how well-documented a neighborhood is on [0, 1]:
// correlated article count, topic richness, amenity richness.
func KnowledgeScore(wikipediaCount, topicCount, amenityCount int) float64 {
	score := min(float64(wikipediaCount)/10, 0.5)
	score += min(float64(topicCount)/20, 0.3)
	score += min(float64(amenityCount)/20, 0.2)
	return clamp(score, 0, 1)
}

// OverallConfidence blends an article's location, extraction, and content
// signals on [0, 1]. Missing inputs default to 0.5.
func OverallConfidence(locationConfidence, extractionConfidence, contentRatio *float64) float64 {
	return clamp(orDefault(locationConfidence, 0.5)*0.5+
		orDefault(extractionConfidence, 0.5)*0.3+
		orDefault(contentRatio, 0.5)*0.2, 0, 1)
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
