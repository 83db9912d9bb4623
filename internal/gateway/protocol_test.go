package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	f, err := NewRequest("r1", "session.turn", map[string]string{"sessionId": "s1"})
	require.NoError(t, err)
	assert.Equal(t, FrameTypeRequest, f.Type)
	assert.Equal(t, "r1", f.ID)
	assert.Equal(t, "session.turn", f.Method)
	assert.JSONEq(t, `{"sessionId":"s1"}`, string(f.Params))
}

func TestNewResponse(t *testing.T) {
	f, err := NewResponse("r1", map[string]bool{"ok": true})
	require.NoError(t, err)
	assert.Equal(t, FrameTypeResponse, f.Type)
	require.NotNil(t, f.OK)
	assert.True(t, *f.OK)
}

func TestNewErrorResponse(t *testing.T) {
	f := NewErrorResponse("r1", ErrorShape{Code: "turn_limit", Message: "limit hit"})
	require.NotNil(t, f.OK)
	assert.False(t, *f.OK)
	require.NotNil(t, f.Error)
	assert.Equal(t, "turn_limit", f.Error.Code)
}

func TestFrameRoundTrip(t *testing.T) {
	f, err := NewEvent("pipeline.progress", map[string]string{"stage": "price"}, 7)
	require.NoError(t, err)

	data, err := json.Marshal(f)
	require.NoError(t, err)

	var back Frame
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, FrameTypeEvent, back.Type)
	assert.Equal(t, "pipeline.progress", back.Event)
	assert.Equal(t, int64(7), back.Seq)
}
