package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimetableConfig_validate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		want    string
		wantErr bool
	}{
		{name: "default", mode: "", want: "separate"},
		{name: "separate", mode: "separate", want: "separate"},
		{name: "grouped cleaned", mode: " Grouped ", want: "grouped"},
		{name: "unknown", mode: "merged", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := TimetableConfig{PreviewMode: tt.mode}
			err := conf.validate()
			if tt.wantErr {
				assert.EqualError(t, err, `"merged" is not one of separate, grouped`)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, conf.PreviewMode)
		})
	}
}

func TestNewConfig_previewMode(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("TEST_TIMETABLE_PREVIEWMODE", " GROUPED")

	conf := NewConfig()
	assert.Equal(t, "TEST", conf.Env)
	assert.Equal(t, "grouped", conf.Timetable.PreviewMode)
}
