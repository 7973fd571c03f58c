package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeChannelName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercases", in: "General", want: "general"},
		{name: "spaces to hyphens", in: "Exam Schedules", want: "exam-schedules"},
		{name: "collapses runs", in: "exam \t schedules", want: "exam-schedules"},
		{name: "trims edges", in: "  results processing  ", want: "results-processing"},
		{name: "already normalized", in: "exam-schedules", want: "exam-schedules"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeChannelName(tt.in))
		})
	}
}

func TestNormalizeChannelNameIdempotent(t *testing.T) {
	inputs := []string{"Exam Schedules", "  A  B  C  ", "général chat", "already-done"}
	for _, in := range inputs {
		once := NormalizeChannelName(in)
		assert.Equal(t, once, NormalizeChannelName(once), "normalize(normalize(%q))", in)
	}
}

func TestNormalizeChannelNameCollision(t *testing.T) {
	// The duplicate-channel check relies on both spellings mapping to the
	// same stored name.
	assert.Equal(t,
		NormalizeChannelName("Exam Schedules"),
		NormalizeChannelName("exam schedules"),
	)
}
