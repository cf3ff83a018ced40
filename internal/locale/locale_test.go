package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		tag    string
		want   string
		wantOK bool
	}{
		{"hi-IN", "Hindi", true},
		{"en-US", "English", true},
		{"te-IN", "Telugu", true},
		{"ta", "Tamil", true},
		{"MR-in", "Marathi", true},
		{"hi_IN", "Hindi", true},
		{"fr-FR", "", false},
		{"und-IN", "", false},
		{"und", "", false},
		{"", "", false},
		{"   ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, ok := Resolve(tt.tag)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestResolveOr(t *testing.T) {
	assert.Equal(t, "Hindi", ResolveOr("hi-IN", "English").Name)
	assert.Equal(t, English, ResolveOr("", "English"))
	assert.Equal(t, English, ResolveOr("xx-YY", "english"))
	assert.Equal(t, English, ResolveOr("und-IN", "English"))
	assert.Equal(t, English, ResolveOr("", ""))
	assert.Equal(t, Language{Name: "Klingon"}, ResolveOr("", "Klingon"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "hi", CodeOf("Hindi"))
	assert.Equal(t, "kn", CodeOf(" kannada "))
	assert.Equal(t, "en", CodeOf("Unknown"))
}
