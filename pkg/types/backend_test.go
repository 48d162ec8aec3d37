package types

import (
	"errors"
	"testing"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Backend
		wantErr error
	}{
		{
			name:    "empty name returns ErrBackendEmpty",
			input:   "",
			wantErr: ErrBackendEmpty,
		},
		{
			name:    "unknown name returns ErrBackendUnknown",
			input:   "virtualenvwrapper",
			wantErr: ErrBackendUnknown,
		},
		{
			name:    "auto is not a concrete backend",
			input:   "auto",
			wantErr: ErrBackendUnknown,
		},
		{
			name:  "venv",
			input: "venv",
			want:  BackendVenv,
		},
		{
			name:  "micromamba",
			input: "micromamba",
			want:  BackendMicromamba,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBackend(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestBackendFamily(t *testing.T) {
	if BackendVenv.Family() != FamilyPip {
		t.Fatalf("venv should belong to the pip family")
	}
	if BackendMicromamba.Family() != FamilyConda {
		t.Fatalf("micromamba should belong to the conda family")
	}
}
