package decoder

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/muurk/esptrace/internal/project"
	"github.com/muurk/esptrace/internal/urls"
)

type fakeMetadata struct {
	md  *project.Metadata
	err error
}

func (m fakeMetadata) Metadata(ctx context.Context, dir, env string) (*project.Metadata, error) {
	return m.md, m.err
}

// touch creates an empty file and returns its path.
func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	firmware := touch(t, dir, ".pio/build/d1_mini/firmware.elf")
	gcc := filepath.Join(dir, "bin", "xtensa-lx106-elf-gcc")
	addr2linePath := touch(t, dir, "bin/xtensa-lx106-elf-addr2line")

	tests := []struct {
		name        string
		opts        SetupOptions
		wantEnabled bool
		wantDiag    []string
		noDiag      bool
	}{
		{
			name: "metadata error disables",
			opts: SetupOptions{
				Metadata: fakeMetadata{err: &project.MetadataError{Dir: dir, Err: errors.New("no platformio.ini")}},
			},
			wantDiag: []string{"esp8266_exception_decoder: disabling, ", "no platformio.ini"},
		},
		{
			name: "missing firmware disables",
			opts: SetupOptions{
				Metadata: fakeMetadata{md: &project.Metadata{
					ProgPath:  filepath.Join(dir, "missing.elf"),
					CCPath:    gcc,
					BuildType: "debug",
				}},
			},
			wantDiag: []string{"disabling", "missing.elf does not exist, rebuild the project?"},
		},
		{
			name: "compiler without gcc suffix disables",
			opts: SetupOptions{
				Metadata: fakeMetadata{md: &project.Metadata{
					ProgPath:  firmware,
					CCPath:    "/usr/bin/clang",
					BuildType: "debug",
				}},
			},
			wantDiag: []string{"disabling, failed to find addr2line"},
		},
		{
			name: "release build prints hint",
			opts: SetupOptions{
				Metadata: fakeMetadata{md: &project.Metadata{
					ProgPath:  firmware,
					CCPath:    gcc,
					BuildType: "release",
				}},
			},
			wantEnabled: true,
			wantDiag:    []string{"Please build project in debug configuration", urls.BuildConfigurations},
		},
		{
			name: "debug build is silent",
			opts: SetupOptions{
				Metadata: fakeMetadata{md: &project.Metadata{
					ProgPath:  firmware,
					CCPath:    gcc,
					BuildType: "debug",
				}},
			},
			wantEnabled: true,
			noDiag:      true,
		},
		{
			name: "explicit paths without metadata source",
			opts: SetupOptions{
				Firmware:  firmware,
				Addr2line: addr2linePath,
			},
			wantEnabled: true,
			noDiag:      true,
		},
		{
			name: "explicit paths take build type from metadata",
			opts: SetupOptions{
				Firmware:  firmware,
				Addr2line: addr2linePath,
				Metadata: fakeMetadata{md: &project.Metadata{
					ProgPath:  filepath.Join(dir, "missing.elf"),
					BuildType: "release",
				}},
			},
			wantEnabled: true,
			wantDiag:    []string{"Please build project in debug configuration"},
		},
		{
			name: "explicit paths ignore metadata error",
			opts: SetupOptions{
				Firmware:  firmware,
				Addr2line: addr2linePath,
				Metadata:  fakeMetadata{err: errors.New("project metadata not loaded")},
			},
			wantEnabled: true,
			noDiag:      true,
		},
		{
			name: "disabled decoder still prints hint",
			opts: SetupOptions{
				Metadata: fakeMetadata{md: &project.Metadata{
					ProgPath:  filepath.Join(dir, "missing.elf"),
					CCPath:    gcc,
					BuildType: "release",
				}},
			},
			wantDiag: []string{"Please build project in debug configuration", "disabling", "missing.elf"},
		},
		{
			name: "explicit firmware with metadata toolchain",
			opts: SetupOptions{
				Firmware: firmware,
				Metadata: fakeMetadata{md: &project.Metadata{
					ProgPath:  filepath.Join(dir, "missing.elf"),
					CCPath:    gcc,
					BuildType: "debug",
				}},
			},
			wantEnabled: true,
			noDiag:      true,
		},
		{
			name: "explicit firmware without metadata source",
			opts: SetupOptions{
				Firmware: firmware,
			},
			wantDiag: []string{"disabling, no project metadata source"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var diag bytes.Buffer
			var gotPath string
			opts := tt.opts
			opts.Diag = &diag
			opts.Logger = zap.NewNop()
			opts.NewResolver = func(path string) Resolver {
				gotPath = path
				return newFakeResolver(t)
			}

			f := Setup(context.Background(), opts)

			if f.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v (diag: %q)", f.Enabled(), tt.wantEnabled, diag.String())
			}
			if tt.wantEnabled {
				if gotPath != addr2linePath {
					t.Errorf("resolver built for %q, want %q", gotPath, addr2linePath)
				}
				if f.Firmware() != firmware {
					t.Errorf("Firmware() = %q, want %q", f.Firmware(), firmware)
				}
			}
			for _, want := range tt.wantDiag {
				if !strings.Contains(diag.String(), want) {
					t.Errorf("diag %q does not contain %q", diag.String(), want)
				}
			}
			if tt.noDiag && diag.Len() != 0 {
				t.Errorf("diag = %q, want empty", diag.String())
			}
		})
	}
}

func TestSetup_HintBeforeDisabling(t *testing.T) {
	var diag bytes.Buffer
	f := Setup(context.Background(), SetupOptions{
		Metadata: fakeMetadata{md: &project.Metadata{
			ProgPath:  filepath.Join(t.TempDir(), "firmware.elf"),
			BuildType: "release",
		}},
		Diag: &diag,
	})
	if f.Enabled() {
		t.Fatal("Enabled() = true for a missing firmware")
	}

	out := diag.String()
	hint := strings.Index(out, "Please build project in debug configuration")
	disabling := strings.Index(out, Name+": disabling")
	if hint == -1 || disabling == -1 || hint > disabling {
		t.Errorf("diag = %q, want the build hint before the disabling notice", out)
	}
}

func TestResolveArtifacts_BuildTypeWithOverrides(t *testing.T) {
	dir := t.TempDir()
	firmware := touch(t, dir, "firmware.elf")
	addr2linePath := touch(t, dir, "xtensa-lx106-elf-addr2line")

	artifacts, err := ResolveArtifacts(context.Background(), SetupOptions{
		Firmware:  firmware,
		Addr2line: addr2linePath,
		Metadata:  fakeMetadata{md: &project.Metadata{BuildType: "release"}},
	})
	if err != nil {
		t.Fatalf("ResolveArtifacts() error = %v", err)
	}
	if artifacts.Firmware != firmware || artifacts.Addr2line != addr2linePath {
		t.Errorf("overrides replaced: %+v", artifacts)
	}
	if artifacts.BuildType != "release" {
		t.Errorf("BuildType = %q, want release", artifacts.BuildType)
	}
}

func TestSetup_DefaultsProjectRoot(t *testing.T) {
	dir := t.TempDir()
	firmware := touch(t, dir, "firmware.elf")
	addr2linePath := touch(t, dir, "xtensa-lx106-elf-addr2line")

	f := Setup(context.Background(), SetupOptions{
		ProjectDir: dir,
		Firmware:   firmware,
		Addr2line:  addr2linePath,
		NewResolver: func(string) Resolver {
			return ResolverFunc(func(string, uint64) (string, bool, error) {
				return "setup at " + filepath.Join(dir, "src", "main.cpp") + ":12", true, nil
			})
		},
	})

	got := f.Rx("Exception (9):\nepc1=0x40201234\n")
	want := "  epc1=0x40201234 in setup at " + filepath.Join("src", "main.cpp") + ":12\n"
	if !strings.HasSuffix(got, want) {
		t.Errorf("Rx() = %q, want suffix %q", got, want)
	}
}

func TestSetup_WithProjectLocator(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("toolchain layout uses .exe names on windows")
	}

	dir := t.TempDir()
	ini := "[env:d1_mini]\nplatform = espressif8266\nbuild_type = debug\n"
	if err := os.WriteFile(filepath.Join(dir, project.ConfigFileName), []byte(ini), 0644); err != nil {
		t.Fatal(err)
	}
	firmware := touch(t, dir, ".pio/build/d1_mini/firmware.elf")

	coreDir := t.TempDir()
	touch(t, coreDir, "packages/toolchain-xtensa/bin/xtensa-lx106-elf-gcc")
	addr2linePath := touch(t, coreDir, "packages/toolchain-xtensa/bin/xtensa-lx106-elf-addr2line")

	config := project.DefaultConfig()
	config.PIOPath = ""
	config.CoreDir = coreDir

	var gotPath string
	var diag bytes.Buffer
	f := Setup(context.Background(), SetupOptions{
		ProjectDir: dir,
		Metadata:   project.NewLocator(config, zap.NewNop()),
		NewResolver: func(path string) Resolver {
			gotPath = path
			return newFakeResolver(t)
		},
		Diag: &diag,
	})

	if !f.Enabled() {
		t.Fatalf("Enabled() = false, diag: %q", diag.String())
	}
	if f.Firmware() != firmware {
		t.Errorf("Firmware() = %q, want %q", f.Firmware(), firmware)
	}
	if gotPath != addr2linePath {
		t.Errorf("addr2line = %q, want %q", gotPath, addr2linePath)
	}
	if diag.Len() != 0 {
		t.Errorf("diag = %q, want empty for debug build", diag.String())
	}
}
