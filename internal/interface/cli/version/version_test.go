package version

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/YoshitsuguKoike/procrunner/internal/buildinfo"
)

func TestNewCommand(t *testing.T) {
	cmd := NewCommand()

	if cmd.Use != "version" {
		t.Errorf("Expected Use='version', got '%s'", cmd.Use)
	}

	if cmd.Short == "" || cmd.Long == "" {
		t.Error("Short and Long descriptions should not be empty")
	}
}

func TestVersionCommand_Output(t *testing.T) {
	original := buildinfo.Version
	buildinfo.Version = "v1.2.3"
	defer func() { buildinfo.Version = original }()

	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	got := out.String()
	if !strings.HasPrefix(got, "procrunner version v1.2.3\n") {
		t.Errorf("Unexpected version line: %q", got)
	}
	if !strings.Contains(got, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Expected OS/Arch in output, got %q", got)
	}
}

func TestGetVersion_DefaultsToDev(t *testing.T) {
	original := buildinfo.Version
	buildinfo.Version = ""
	defer func() { buildinfo.Version = original }()

	if got := buildinfo.GetVersion(); got != "dev" {
		t.Errorf("GetVersion() = %q, want dev", got)
	}
}
