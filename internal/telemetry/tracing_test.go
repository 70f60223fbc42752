package telemetry

import (
	"context"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "disabled", cfg: Config{}},
		{name: "http endpoint", cfg: Config{OTLPEndpoint: "http://localhost:4318", SampleRatio: 0.5}},
		{name: "bad scheme", cfg: Config{OTLPEndpoint: "grpc://localhost:4317"}, wantErr: true},
		{name: "no host", cfg: Config{OTLPEndpoint: "http://"}, wantErr: true},
		{name: "ratio too high", cfg: Config{SampleRatio: 1.5}, wantErr: true},
		{name: "negative ratio", cfg: Config{SampleRatio: -0.1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetupTracing_DisabledIsNoop(t *testing.T) {
	t.Parallel()

	shutdown, err := SetupTracing(context.Background(), Config{})
	if err != nil {
		t.Fatalf("SetupTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestSetupTracing_RejectsInvalid(t *testing.T) {
	t.Parallel()

	if _, err := SetupTracing(context.Background(), Config{OTLPEndpoint: "ftp://collector"}); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}
