package ipc

import (
	"strings"
	"testing"
)

func TestDefaultPipeNameHonorsTrustedEnvOverride(t *testing.T) {
	t.Setenv(PipeEnvVar, `\\.\pipe\tinytools-ci_pipe`)

	if got := DefaultPipeName(); got != `\\.\pipe\tinytools-ci_pipe` {
		t.Fatalf("DefaultPipeName() = %q, want trusted env override", got)
	}
}

func TestDefaultPipeNameRejectsUntrustedEnvOverride(t *testing.T) {
	t.Setenv(PipeEnvVar, `\\.\pipe\other-app`)
	t.Setenv("USERNAME", "unit-tester")

	got := DefaultPipeName()
	if got != defaultPipePrefix+"unit-tester" {
		t.Fatalf("DefaultPipeName() = %q, want per-user default", got)
	}
}

func TestDefaultPipeNameSanitizesUsername(t *testing.T) {
	t.Setenv(PipeEnvVar, "")
	t.Setenv("USERNAME", "unit user!")

	if got, want := DefaultPipeName(), `\\.\pipe\tinytools-unit_user_`; got != want {
		t.Fatalf("DefaultPipeName() = %q, want %q", got, want)
	}
}

func TestDefaultPipeNameFallbackWhenUsernameEmpty(t *testing.T) {
	t.Setenv(PipeEnvVar, "")
	t.Setenv("USERNAME", "")

	got := DefaultPipeName()
	suffix, ok := strings.CutPrefix(got, defaultPipePrefix)
	if !ok || suffix == "" {
		t.Fatalf("DefaultPipeName() = %q, want non-empty suffix after %q", got, defaultPipePrefix)
	}
}

func TestDecodeRequestNormalizesCommand(t *testing.T) {
	req, err := decodeRequest([]byte(`{"command":"  Brightness "}`))
	if err != nil {
		t.Fatalf("decodeRequest error = %v", err)
	}
	if req.Command != "brightness" {
		t.Fatalf("Command = %q, want brightness", req.Command)
	}
	if req.Args == nil || len(req.Args) != 0 {
		t.Fatalf("Args = %#v, want empty non-nil slice", req.Args)
	}
}

func TestDecodeRequestRejectsMalformed(t *testing.T) {
	if _, err := decodeRequest([]byte(`{"command":`)); err == nil {
		t.Fatal("decodeRequest() expected error")
	}
}

func TestResponseHelpers(t *testing.T) {
	ok := OK("brightness %d%%\n", 40)
	if ok.ExitCode != 0 || ok.Stdout != "brightness 40%\n" || ok.Stderr != "" {
		t.Fatalf("OK() = %+v", ok)
	}
	fail := Fail("unknown command %q\n", "x")
	if fail.ExitCode != 1 || fail.Stderr != "unknown command \"x\"\n" {
		t.Fatalf("Fail() = %+v", fail)
	}
}
