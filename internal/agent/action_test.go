package agent

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Freelance-Autopilot/internal/domain"
)

func TestEntryWireShape(t *testing.T) {
	entry := Entry{Agent: CFO, Action: SmartSplit{
		TransactionID: "t1",
		Amount:        decimal.NewFromInt(10000),
		Tax:           decimal.NewFromInt(3000),
		Savings:       decimal.NewFromInt(2000),
		Buffer:        decimal.NewFromInt(5000),
		Config:        domain.DefaultSplit,
	}}

	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, "CFO", generic["agent"])
	assert.Equal(t, "smart_split", generic["type"])
	payload, ok := generic["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "3000", payload["tax"])
}

func TestEntryDecodeRestoresConcreteType(t *testing.T) {
	start := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	raw := []byte(`{"agent":"Productivity","type":"create_deep_work_block","payload":{"start":"2026-10-15T09:00:00Z","end":"2026-10-15T11:00:00Z","title":"Deep Work - Focus Block"}}`)

	var entry Entry
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, Productivity, entry.Agent)

	block, ok := entry.Action.(CreateDeepWorkBlock)
	require.True(t, ok, "got %T", entry.Action)
	assert.True(t, block.Start.Equal(start))
	assert.Equal(t, 2*time.Hour, block.End.Sub(block.Start))
}

func TestEntryDecodeRejectsUnknownType(t *testing.T) {
	var entry Entry
	err := json.Unmarshal([]byte(`{"agent":"CFO","type":"wire_money","payload":{}}`), &entry)
	require.Error(t, err)

	err = json.Unmarshal([]byte(`{"agent":"Hunter","type":"create_bid"}`), &entry)
	require.Error(t, err)
}

func TestEntryMarshalRequiresAction(t *testing.T) {
	_, err := json.Marshal(Entry{Agent: Tax})
	require.Error(t, err)
}
