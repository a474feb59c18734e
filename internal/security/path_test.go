package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"valid relative path", "config.json", false},
		{"valid nested path", "conf/config.json", false},
		{"empty path", "", true},
		{"traversal", "../../../etc/passwd", true},
		{"hidden traversal", "conf/../../secrets", true},
		{"absolute path", "/etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFilePathWithBase(t *testing.T) {
	assert.NoError(t, ValidateFilePathWithBase("cache.db", "data"))
	assert.Error(t, ValidateFilePathWithBase("../outside.db", "data"))
}
