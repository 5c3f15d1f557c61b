package api

import "testing"

func TestValidateBufferSize(t *testing.T) {
	tests := []struct {
		size    int
		wantErr bool
	}{
		{128, false},
		{512, false},
		{2048, false},
		{0, true},
		{500, true},
		{4096, true},
	}

	for _, tt := range tests {
		err := ValidateBufferSize(tt.size)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateBufferSize(%d) error = %v, wantErr %v", tt.size, err, tt.wantErr)
		}
		if err != nil && !IsValidationError(err) {
			t.Errorf("ValidateBufferSize(%d) should return a validation error", tt.size)
		}
	}
}

func TestValidateSampleRate(t *testing.T) {
	tests := []struct {
		rate    int
		wantErr bool
	}{
		{44100, false},
		{48000, false},
		{96000, true},
		{-1, true},
	}

	for _, tt := range tests {
		if err := ValidateSampleRate(tt.rate); (err != nil) != tt.wantErr {
			t.Errorf("ValidateSampleRate(%d) error = %v, wantErr %v", tt.rate, err, tt.wantErr)
		}
	}
}

func TestValidateConfig(t *testing.T) {
	valid := DefaultConfig()
	valid.InputDevice = IntPtr(0)
	valid.OutputDevice = IntPtr(1)
	valid.Enabled = true

	if errs := ValidateConfig(valid); len(errs) != 0 {
		t.Errorf("ValidateConfig(valid) = %v", errs)
	}

	bad := Config{InputDevice: IntPtr(-2), BufferSize: 3, SampleRate: 1, Enabled: true}
	errs := ValidateConfig(bad)
	if len(errs) != 4 {
		t.Errorf("ValidateConfig(bad) returned %d errors, want 4: %v", len(errs), errs)
	}
	if FirstError(errs) == nil {
		t.Error("FirstError should return the first error")
	}
	if FirstError(nil) != nil {
		t.Error("FirstError(nil) should be nil")
	}
}

func TestValidateConfigEdit(t *testing.T) {
	if err := ValidateConfigEdit(ConfigEdit{BufferSize: IntPtr(1024)}); err != nil {
		t.Errorf("valid edit rejected: %v", err)
	}
	if err := ValidateConfigEdit(ConfigEdit{SampleRate: IntPtr(22050)}); err == nil {
		t.Error("invalid sample rate accepted")
	}
	if err := ValidateConfigEdit(ConfigEdit{OutputDevice: IntPtr(-1)}); err == nil {
		t.Error("negative device accepted")
	}
}

func TestValidateProfileName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"Studio", false},
		{" padded ", false},
		{"", true},
		{"   ", true},
		{"\t\n", true},
	}

	for _, tt := range tests {
		err := ValidateProfileName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateProfileName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
