package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchMethod_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		method   MatchMethod
		expected bool
	}{
		{name: "none is valid", method: MatchNone, expected: true},
		{name: "automatic is valid", method: MatchAutomatic, expected: true},
		{name: "manual is valid", method: MatchManual, expected: true},
		{name: "empty is invalid", method: "", expected: false},
		{name: "unknown is invalid", method: "fuzzy", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.method.IsValid())
		})
	}
}

func TestMenuItem_StateRoundTrip(t *testing.T) {
	ref := int64(7)
	conf := 0.75
	item := &MenuItem{ID: 1, OriginalName: "양념 치킨"}

	item.Apply(MatchState{StandardMenuID: &ref, Confidence: &conf, Method: MatchAutomatic})

	assert.True(t, item.IsMatched())
	assert.False(t, item.IsManual())
	assert.Equal(t, MatchAutomatic, item.State().Method)

	item.Apply(Unmatched())
	assert.False(t, item.IsMatched())
	assert.Nil(t, item.MatchConfidence)
	assert.Equal(t, MatchNone, item.MatchMethod)
}

func TestStandardMenuEntry_Keys(t *testing.T) {
	entry := &StandardMenuEntry{
		NormalizedName: "후라이드치킨",
		Aliases:        []string{"후라이드 치킨", "후라이드치킨", ""},
	}

	assert.Equal(t, []string{"후라이드치킨", "후라이드 치킨"}, entry.Keys())
	assert.True(t, entry.HasKey("후라이드 치킨"))
	assert.False(t, entry.HasKey("양념치킨"))
}
