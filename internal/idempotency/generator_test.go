package idempotency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKey(t *testing.T) {
	g := NewGenerator()

	a := g.GenerateKey(ScopeRuleExecution, map[string]interface{}{"rule_id": "rule_1", "event_id": "evt_1"})
	b := g.GenerateKey(ScopeRuleExecution, map[string]interface{}{"event_id": "evt_1", "rule_id": "rule_1"})
	assert.Equal(t, a, b, "parameter order must not matter")
	assert.Contains(t, a, string(ScopeRuleExecution)+"-")

	other := g.GenerateKey(ScopeRuleExecution, map[string]interface{}{"rule_id": "rule_1", "event_id": "evt_2"})
	assert.NotEqual(t, a, other)

	scoped := g.GenerateKey(ScopeRedemption, map[string]interface{}{"rule_id": "rule_1", "event_id": "evt_1"})
	assert.NotEqual(t, a, scoped)

	assert.True(t, g.ValidateKey(ScopeRuleExecution, map[string]interface{}{"rule_id": "rule_1", "event_id": "evt_1"}, a))
	assert.False(t, g.ValidateKey(ScopePointExpiry, map[string]interface{}{"rule_id": "rule_1", "event_id": "evt_1"}, a))
}
