package main

import (
	"errors"
	"flag"
	"io"
	"strings"
	"testing"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    cliOptions
		wantErr bool
		help    bool
	}{
		{name: "no args", args: nil},
		{name: "console long", args: []string{"--console"}, want: cliOptions{console: true}},
		{name: "console short", args: []string{"-c"}, want: cliOptions{console: true}},
		{name: "debug and console", args: []string{"--debug", "-c"}, want: cliOptions{console: true, debug: true}},
		{name: "help", args: []string{"--help"}, wantErr: true, help: true},
		{name: "unknown flag", args: []string{"--verbose"}, wantErr: true},
		{name: "stray argument", args: []string{"status"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args, io.Discard)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseArgs(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if tt.help != errors.Is(err, flag.ErrHelp) {
				t.Fatalf("parseArgs(%v) help = %v, want %v", tt.args, errors.Is(err, flag.ErrHelp), tt.help)
			}
			if err == nil && got != tt.want {
				t.Fatalf("parseArgs(%v) = %+v, want %+v", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseArgsPrintsUsage(t *testing.T) {
	var out strings.Builder
	if _, err := parseArgs([]string{"-h"}, &out); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("parseArgs(-h) error = %v", err)
	}
	if !strings.Contains(out.String(), "tinytools --console") {
		t.Fatalf("usage = %q", out.String())
	}
}
