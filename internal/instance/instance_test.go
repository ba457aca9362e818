package instance

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    ID
		wantErr bool
	}{
		{name: "numeric", input: "555", want: "555"},
		{name: "trimmed", input: "  42 ", want: "42"},
		{name: "uuid-like", input: "a1b2-c3", want: "a1b2-c3"},
		{name: "empty", input: "", wantErr: true},
		{name: "blank", input: "   ", wantErr: true},
		{name: "path", input: "../1", wantErr: true},
		{name: "space inside", input: "1 2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseID(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNaming(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "tnr-555", HostAlias("", "555"))
	assert.Equal(t, "gpu-7", HostAlias("gpu", "7"))
	assert.Equal(t, "ssh_key_555", KeyFileName("555"))
	assert.Equal(t, ID("12"), FromInt(12))
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StatusRunning, ParseStatus("running"))
	assert.Equal(t, StatusStopped, ParseStatus(" STOPPED "))
	assert.Equal(t, StatusUnknown, ParseStatus(""))
	assert.Equal(t, Status("SNAPSHOTTING"), ParseStatus("snapshotting"))
}

func TestRecord_DecodesMixedNumbers(t *testing.T) {
	t.Parallel()

	payload := `{"status":"RUNNING","ip":"1.2.3.4","cpu_cores":"8","num_gpus":1,"gpu_type":"a100xl","disk_size_gb":null}`

	var r Record
	require.NoError(t, json.Unmarshal([]byte(payload), &r))

	assert.Equal(t, StatusRunning, r.Status)
	assert.Equal(t, FlexInt(8), r.CPUCores)
	assert.Equal(t, FlexInt(1), r.NumGPUs)
	assert.Equal(t, FlexInt(0), r.DiskSizeGB)
	assert.True(t, r.HasGPU())
}

func TestRecord_RejectsGarbageNumbers(t *testing.T) {
	t.Parallel()

	var r Record
	err := json.Unmarshal([]byte(`{"cpu_cores":"many"}`), &r)
	assert.Error(t, err)
}

func TestRecord_HasGPU(t *testing.T) {
	t.Parallel()

	assert.False(t, Record{GPUType: "None", NumGPUs: 0}.HasGPU())
	assert.False(t, Record{GPUType: "", NumGPUs: 2}.HasGPU())
	assert.True(t, Record{GPUType: "t4", NumGPUs: 2}.HasGPU())
}

func TestID_UnmarshalJSON(t *testing.T) {
	var v struct {
		Identifier ID `json:"identifier"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"identifier": 555}`), &v))
	assert.Equal(t, ID("555"), v.Identifier)

	require.NoError(t, json.Unmarshal([]byte(`{"identifier": "42"}`), &v))
	assert.Equal(t, ID("42"), v.Identifier)

	assert.Error(t, json.Unmarshal([]byte(`{"identifier": [1]}`), &v))
}
