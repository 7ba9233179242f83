package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scoreintake/internal/model"
)

func TestProfile_Types(t *testing.T) {
	t.Parallel()

	p := NewColumnProfiler(nil)
	cases := []struct {
		name    string
		samples []string
		want    model.ObservedType
	}{
		{"scores", []string{"85", "90.5", "120", "0"}, model.ObservedScore},
		{"grades", []string{"A", "B+", "c", "优秀"}, model.ObservedGrade},
		{"ranks", []string{"151", "300", "1200", "999"}, model.ObservedRank},
		{"dates", []string{"2024-03-01", "2024/3/2", "2024年3月3日"}, model.ObservedDate},
		{"text", []string{"张三", "李四"}, model.ObservedText},
		{"empty", []string{"", " "}, model.ObservedText},
	}
	for _, tc := range cases {
		got := p.Profile(tc.name, tc.samples)
		assert.Equal(t, tc.want, got.ObservedType, tc.name)
	}
}

func TestProfile_AmbiguousIsLowConfidenceText(t *testing.T) {
	t.Parallel()

	p := NewColumnProfiler(nil)
	got := p.Profile("mixed", []string{"85", "90", "A", "B", "张三"})
	assert.Equal(t, model.ObservedText, got.ObservedType)
	assert.InDelta(t, 0.2, got.SampleConfidence, 1e-9)
}

func TestProfile_OnlyFirstTenSamples(t *testing.T) {
	t.Parallel()

	p := NewColumnProfiler(nil)
	samples := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "x", "y", "z"}
	got := p.Profile("n", samples)
	assert.Equal(t, model.ObservedScore, got.ObservedType)
	assert.Equal(t, 1.0, got.SampleConfidence)
}

func TestParseNumber(t *testing.T) {
	t.Parallel()

	cases := map[string]float64{
		"85":     85,
		"1,200":  1200,
		"９０":     90,
		"88分":    88,
		" 72.5 ": 72.5,
	}
	for in, want := range cases {
		got, ok := ParseNumber(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "缺考", "abc", "NaN"} {
		_, ok := ParseNumber(in)
		assert.False(t, ok, in)
	}
}
