package jsoncodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type progressRequest struct {
	TaskID string `json:"taskId"`
}

func TestCodec(t *testing.T) {
	c := Codec{}
	assert.Equal(t, "json", c.Name())

	data, err := c.Marshal(&progressRequest{TaskID: "01J"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"taskId":"01J"}`, string(data))

	var req progressRequest
	require.NoError(t, c.Unmarshal(data, &req))
	assert.Equal(t, "01J", req.TaskID)

	require.NoError(t, c.Unmarshal(nil, &req))
	assert.Error(t, c.Unmarshal([]byte("{"), &req))
}
