package httpapi

import "testing"

func TestLayerURLEscapesName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"background", "/processed/background.png"},
		{"hat/cap", "/processed/hat%2Fcap.png"},
		{"bow?tie#1", "/processed/bow%3Ftie%231.png"},
		{"party hat", "/processed/party%20hat.png"},
	}
	for _, tt := range tests {
		if got := layerURL(tt.name); got != tt.want {
			t.Errorf("layerURL(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
