package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "in range", in: 0.7, want: 0.7},
		{name: "lower bound", in: 0, want: 0},
		{name: "upper bound", in: 1, want: 1},
		{name: "negative", in: -0.3, want: 0},
		{name: "above one", in: 1.8, want: 1},
		{name: "nan", in: math.NaN(), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampConfidence(tt.in))
		})
	}
}

func TestCustomerText_PrefersClarifyingQuestion(t *testing.T) {
	d := &RequestDetails{
		ClarifyingQuestion: "Which product are you using?",
		InfoMessage:        "I can help with API questions.",
	}
	assert.Equal(t, "Which product are you using?", d.CustomerText())

	d.ClarifyingQuestion = ""
	assert.Equal(t, "I can help with API questions.", d.CustomerText())
}
