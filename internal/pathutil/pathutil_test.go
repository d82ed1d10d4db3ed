package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	root := t.TempDir()
	otherDir := t.TempDir()

	// Create a subdirectory inside the batch root
	subDir := filepath.Join(root, "exp-inputs")
	if err := os.MkdirAll(subDir, 0700); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	tests := []struct {
		name        string
		path        string
		root        string
		wantErr     bool
		errContains string
	}{
		{
			name: "valid path inside root",
			path: filepath.Join(root, "manifest.yaml"),
			root: root,
		},
		{
			name: "valid path in subdirectory of root",
			path: filepath.Join(subDir, "run0.yaml"),
			root: root,
		},
		{
			name: "path that is exactly the root",
			path: root,
			root: root,
		},
		{
			name:        "path traversal with dot-dot",
			path:        filepath.Join(root, "..", "etc", "passwd"),
			root:        root,
			wantErr:     true,
			errContains: "outside the batch root",
		},
		{
			name:        "absolute path outside root",
			path:        filepath.Join(otherDir, "run0.yaml"),
			root:        root,
			wantErr:     true,
			errContains: "outside the batch root",
		},
		{
			name:        "null bytes in path",
			path:        filepath.Join(root, "run\x000.yaml"),
			root:        root,
			wantErr:     true,
			errContains: "null byte",
		},
		{
			name:        "empty path",
			path:        "",
			root:        root,
			wantErr:     true,
			errContains: "empty",
		},
		{
			name:        "empty root",
			path:        filepath.Join(root, "run0.yaml"),
			root:        "",
			wantErr:     true,
			errContains: "root is empty",
		},
		{
			name:        "path traversal with embedded dot-dot",
			path:        filepath.Join(root, "exp-inputs", "..", "..", "etc", "passwd"),
			root:        root,
			wantErr:     true,
			errContains: "outside the batch root",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path, tt.root)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("ValidatePath() error = %v, want error containing %q", err, tt.errContains)
				}
			}
		})
	}
}

func TestValidatePath_SymlinkOutsideRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not supported on Windows")
	}

	root := t.TempDir()
	outsideDir := t.TempDir()

	// Create a symlink inside the root that points outside
	symlinkPath := filepath.Join(root, "escape")
	if err := os.Symlink(outsideDir, symlinkPath); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	// A path through the symlink should be rejected
	err := ValidatePath(filepath.Join(symlinkPath, "run0.yaml"), root)
	if err == nil {
		t.Error("ValidatePath() should reject symlink pointing outside the root")
	}
	if err != nil && !strings.Contains(err.Error(), "outside the batch root") {
		t.Errorf("ValidatePath() error = %v, want error about the batch root", err)
	}
}

func TestValidatePath_SymlinkInsideRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not supported on Windows")
	}

	root := t.TempDir()

	// Create a subdirectory and a symlink to it (both inside the root)
	realSubDir := filepath.Join(root, "real")
	if err := os.MkdirAll(realSubDir, 0700); err != nil {
		t.Fatalf("failed to create real subdir: %v", err)
	}

	symlinkPath := filepath.Join(root, "link")
	if err := os.Symlink(realSubDir, symlinkPath); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	// A path through a symlink that stays inside the root should be OK
	err := ValidatePath(filepath.Join(symlinkPath, "run0.yaml"), root)
	if err != nil {
		t.Errorf("ValidatePath() should accept symlink staying inside the root, got: %v", err)
	}
}

func TestRedactPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"simple", "/data/sweeps/foraging/manifest.yaml", ".../foraging/manifest.yaml"},
		{"deep", "/a/b/c/d/e.csv", ".../d/e.csv"},
		{"root file", "/file.csv", "file.csv"},
		{"relative", "dir/file.csv", ".../dir/file.csv"},
		{"just filename", "file.csv", "file.csv"},
		{"trailing slash cleaned", "/data/sweeps/foraging/", ".../sweeps/foraging"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactPath(tt.input)
			if got != tt.want {
				t.Errorf("RedactPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
