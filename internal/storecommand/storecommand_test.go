package storecommand

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStopSignMetadataRoundTripsWithinByteRange(t *testing.T) {
	ss := StopSign{ConfigId: 2, Nodes: []uint64{1, 2, 3}, Metadata: []byte{0, 127, 255}}

	data, err := json.Marshal(ss)
	assert.NoError(t, err)

	var got StopSign
	assert.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, ss, got)
}

func TestStopSignMetadataOutOfRangeIsTruncatedOnDecode(t *testing.T) {
	wire := `{"config_id":1,"nodes":[1],"metadata":[256,511,260]}`

	var got StopSign
	assert.NoError(t, json.Unmarshal([]byte(wire), &got))
	assert.Equal(t, []byte{0, 255, 4}, got.Metadata)
}

func TestConsistencyFromWireDefaultsUnknownToStrong(t *testing.T) {
	assert.Equal(t, Strong, ConsistencyFromWire(0))
	assert.Equal(t, RelaxedReads, ConsistencyFromWire(1))
	assert.Equal(t, Strong, ConsistencyFromWire(99))
}
