package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Alcohol", "Alcohol"},
		{"Malic_Acid", "Malic_Acid"},
		{"OD280/OD315 of diluted wines", "OD280_OD315_of_diluted_wines"},
		{"../../etc/passwd", "etc_passwd"},
		{"a   b", "a_b"},
		{"__x__", "x"},
		{"", "unknown"},
		{"///", "unknown"},
		{"färg", "f_rg"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestSanitizeFilename_Length(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("a", 500))
	assert.Len(t, got, maxFilenameLen)
}

func TestJoinFilename(t *testing.T) {
	assert.Equal(t, "kmeans_Color_Intensity_Hue_k3", JoinFilename("kmeans", "Color Intensity", "Hue", "k3"))
	assert.Equal(t, "kmeans_unknown", JoinFilename("kmeans", "/"))
}
