package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "secret")
	empty := filepath.Join(dir, "empty")

	if err := os.WriteFile(good, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(empty, []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("JOBSWIPE_TEST_SECRET", " from-env ")

	tests := []struct {
		name    string
		src     Source
		want    string
		wantErr string
	}{
		{name: "file wins", src: Source{File: good, Value: "inline", Env: "JOBSWIPE_TEST_SECRET"}, want: "from-file"},
		{name: "inline", src: Source{Value: " inline ", Env: "JOBSWIPE_TEST_SECRET"}, want: "inline"},
		{name: "env", src: Source{Env: "JOBSWIPE_TEST_SECRET"}, want: "from-env"},
		{name: "missing env", src: Source{Name: "password", Env: "JOBSWIPE_TEST_UNSET"}, wantErr: "set JOBSWIPE_TEST_UNSET"},
		{name: "empty file", src: Source{Name: "password", File: empty}, wantErr: "is empty"},
		{name: "missing file", src: Source{File: filepath.Join(dir, "nope")}, wantErr: "reading secret"},
		{name: "nothing", src: Source{}, wantErr: "secret is not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
