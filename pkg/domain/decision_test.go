package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecisionTerminal(t *testing.T) {
	cases := []struct {
		kind     DecisionKind
		terminal bool
	}{
		{DecisionAllow, true},
		{DecisionAllowWithRedaction, true},
		{DecisionDeny, true},
		{DecisionAdvisoryDeny, false},
	}

	for _, tc := range cases {
		d := Decision{Kind: tc.kind}
		assert.Equal(t, tc.terminal, d.Terminal(), "kind %s", tc.kind)
	}
}
