package flagx

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-d", "postgres://db/app", "-x", "1"},
			allowedFlags: []string{"-d"},
			want:         []string{"-d", "postgres://db/app"},
		},
		{
			name:         "flag with equals",
			args:         []string{"-t=15", "-x", "1"},
			allowedFlags: []string{"-t", "-r"},
			want:         []string{"-t=15"},
		},
		{
			name:         "unknown flags ignored",
			args:         []string{"-x", "1", "--y=2", "positional"},
			allowedFlags: []string{"-c", "-config"},
			want:         []string{},
		},
		{
			name:         "flag without value at end is kept as-is",
			args:         []string{"-a"},
			allowedFlags: []string{"-a"},
			want:         []string{"-a"},
		},
		{
			name:         "next dash-prefixed token is not a value",
			args:         []string{"-a", "-g=:50051"},
			allowedFlags: []string{"-a", "-g"},
			want:         []string{"-a", "-g=:50051"},
		},
		{
			name:         "order and repetition preserved",
			args:         []string{"-r", "7", "-a", ":8000", "-r", "14"},
			allowedFlags: []string{"-a", "-r"},
			want:         []string{"-r", "7", "-a", ":8000", "-r", "14"},
		},
		{
			name:         "empty args",
			args:         []string{},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowedFlags)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("FilterArgs() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	assert.Equal(t, "/etc/gophauth.json", ConfigFile([]string{"-c", "/etc/gophauth.json"}))
	assert.Equal(t, "/etc/long.json", ConfigFile([]string{"-d", "dsn", "-config", "/etc/long.json"}))
	assert.Equal(t, "/path/2.json", ConfigFile([]string{"-c", "/path/1.json", "-config=/path/2.json"}))
	assert.Empty(t, ConfigFile([]string{"-x", "1"}))
	assert.Empty(t, ConfigFile(nil))
}
