package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormValidate(t *testing.T) {
	tests := []struct {
		name    string
		values  FormValues
		wantErr string
	}{
		{
			name:    "missing zip",
			values:  FormValues{OutputPath: "/tmp/out.zim"},
			wantErr: "no ZIP file selected",
		},
		{
			name:    "not a zip",
			values:  FormValues{ZipPath: "/tmp/site.tar", OutputPath: "/tmp/out.zim"},
			wantErr: "must be a ZIP archive",
		},
		{
			name:    "missing output",
			values:  FormValues{ZipPath: "/tmp/site.zip"},
			wantErr: "output ZIM file",
		},
		{
			name:   "complete",
			values: FormValues{ZipPath: "/tmp/site.ZIP", OutputPath: "/tmp/out.zim"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewForm(tt.values)
			err := f.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestFormValuesRoundTrip(t *testing.T) {
	initial := FormValues{
		ZipPath:      "/tmp/site.zip",
		OutputPath:   "/tmp/out.zim",
		Title:        "My Site",
		Language:     "eng",
		Description:  "d",
		RewriteLinks: true,
	}
	f := NewForm(initial)
	assert.Equal(t, initial, f.Values())
}

func TestFormSetOutputIfEmpty(t *testing.T) {
	f := NewForm(FormValues{ZipPath: "/tmp/site.zip"})
	f.SetOutputIfEmpty("/tmp/site.zim")
	assert.Equal(t, "/tmp/site.zim", f.Values().OutputPath)

	f.SetOutputIfEmpty("/elsewhere/other.zim")
	assert.Equal(t, "/tmp/site.zim", f.Values().OutputPath)
}
