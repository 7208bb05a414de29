package translate

import (
	"encoding/json"
	"testing"
)

func TestCloudFilterString(t *testing.T) {
	tests := []struct {
		property string
		max      float64
		want     string
	}{
		{"", 40, "CLOUDY_PIXEL_PERCENTAGE < 40"},
		{"CLOUDY_PIXEL_PERCENTAGE", 30, "CLOUDY_PIXEL_PERCENTAGE < 30"},
		{"CLOUD_COVER", 12.5, "CLOUD_COVER < 12.5"},
	}

	for _, tt := range tests {
		if got := CloudFilterString(tt.property, tt.max); got != tt.want {
			t.Errorf("CloudFilterString(%q, %v) = %q, want %q", tt.property, tt.max, got, tt.want)
		}
	}
}

func TestCloudFilterCQL2(t *testing.T) {
	data, err := json.Marshal(CloudFilterCQL2(30))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded struct {
		Op   string            `json:"op"`
		Args []json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if decoded.Op != "<" {
		t.Errorf("Expected op <, got %s", decoded.Op)
	}
	if len(decoded.Args) != 2 {
		t.Fatalf("Expected 2 args, got %d", len(decoded.Args))
	}
	if string(decoded.Args[0]) != `{"property":"eo:cloud_cover"}` {
		t.Errorf("Unexpected left operand %s", decoded.Args[0])
	}
	if string(decoded.Args[1]) != `30` {
		t.Errorf("Unexpected right operand %s", decoded.Args[1])
	}
}
