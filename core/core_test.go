package core

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteSet(t *testing.T) {
	s := NewRouteSet("billing", "support", "", "billing")

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("billing"))
	assert.False(t, s.Contains("lobby"))
	assert.False(t, s.Contains(""))
	assert.Equal(t, []string{"billing", "support"}, s.Sorted())

	var empty RouteSet
	assert.False(t, empty.Contains("billing"))
	assert.Equal(t, 0, empty.Len())
}

func TestClassificationResult_Validate(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		wantErr    bool
	}{
		{"lower bound", 0, false},
		{"upper bound", 1, false},
		{"mid", 0.42, false},
		{"negative", -0.1, true},
		{"above one", 1.01, true},
		{"nan", math.NaN(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ClassificationResult{SuggestedRoute: "billing", Confidence: tt.confidence}.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidClassification))

			var ice *InvalidClassificationError
			require.True(t, errors.As(err, &ice))
			assert.Equal(t, "confidence", ice.Field)
		})
	}
}

func TestConversationRouteState_Apply(t *testing.T) {
	st := &ConversationRouteState{}

	st.Apply(Switch("billing", RuleColdStart))
	assert.Equal(t, "billing", st.CurrentRoute)
	assert.Empty(t, st.PreviousRoute)

	st.Apply(Hold("billing", RuleNoChange))
	assert.Equal(t, []string{"billing"}, st.RouteHistory)

	st.Apply(Switch("support", RuleSwitch))
	assert.Equal(t, "support", st.CurrentRoute)
	assert.Equal(t, "billing", st.PreviousRoute)
	assert.Equal(t, []string{"billing", "support"}, st.RouteHistory)
	assert.False(t, st.RouteLocked)
}

func TestRecent(t *testing.T) {
	msgs := []Message{UserMessage("a"), AssistantMessage("b"), UserMessage("c")}

	assert.Len(t, Recent(msgs, 0), 3)
	assert.Len(t, Recent(msgs, 10), 3)
	assert.Equal(t, []Message{AssistantMessage("b"), UserMessage("c")}, Recent(msgs, 2))
	assert.Empty(t, Recent(nil, 5))
}
