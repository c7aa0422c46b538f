package project

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
}

func TestFindConfigurationNearestWins(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ConfigFile))
	writeFile(t, filepath.Join(root, "app", DistConfigFile))
	nested := filepath.Join(root, "app", "src", "Domain")
	mkdir(t, nested)

	got, ok, err := FindConfiguration(nested)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !ok {
		t.Fatal("expected configuration to be found")
	}
	want := filepath.Join(root, "app", DistConfigFile)
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFindConfigurationPrefersNeonOverDist(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, DistConfigFile))
	writeFile(t, filepath.Join(root, ConfigFile))

	got, ok, err := FindConfiguration(root)
	if err != nil || !ok {
		t.Fatalf("find: ok=%v err=%v", ok, err)
	}
	if got != filepath.Join(root, ConfigFile) {
		t.Fatalf("expected phpstan.neon, got %q", got)
	}
}

func TestFindUpTerminatesWithoutMatch(t *testing.T) {
	root := t.TempDir()
	if _, ok, _ := FindConfiguration(filepath.Dir(root)); ok {
		t.Skip("a phpstan config exists above the temp directory")
	}
	if _, ok, _ := FindAutoloadFile(filepath.Dir(root)); ok {
		t.Skip("an autoload file exists above the temp directory")
	}
	nested := filepath.Join(root, "a", "b", "c")
	mkdir(t, nested)

	if got, ok, err := FindConfiguration(nested); err != nil || ok || got != "" {
		t.Fatalf("expected no configuration, got %q ok=%v err=%v", got, ok, err)
	}
	if got, ok, err := FindAutoloadFile(nested); err != nil || ok || got != "" {
		t.Fatalf("expected no autoload file, got %q ok=%v err=%v", got, ok, err)
	}
}

func TestFindAutoloadFile(t *testing.T) {
	root := t.TempDir()
	autoload := filepath.Join(root, "vendor", "autoload.php")
	writeFile(t, autoload)
	nested := filepath.Join(root, "src", "Http")
	mkdir(t, nested)

	got, ok, err := FindAutoloadFile(nested)
	if err != nil || !ok {
		t.Fatalf("find: ok=%v err=%v", ok, err)
	}
	if got != autoload {
		t.Fatalf("expected %q, got %q", autoload, got)
	}
}

func TestFindRealWorkPathOrder(t *testing.T) {
	root := t.TempDir()
	mkdir(t, filepath.Join(root, "src"))
	writeFile(t, filepath.Join(root, "source", "vendor", "autoload.php"))
	writeFile(t, filepath.Join(root, "sources", ConfigFile))

	got, err := FindRealWorkPath(root)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if want := filepath.Join(root, "source"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFindRealWorkPathSkipsFilesNamedLikeDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src"))

	got, err := FindRealWorkPath(root)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != "" {
		t.Fatalf("expected no work path, got %q", got)
	}
}

func TestCurrentWorkPathLongestRoot(t *testing.T) {
	roots := []string{
		filepath.FromSlash("/work"),
		filepath.FromSlash("/work/app"),
		filepath.FromSlash("/work/application"),
		filepath.FromSlash("/other"),
	}
	if got := CurrentWorkPath(filepath.FromSlash("/work/app/src"), roots); got != filepath.FromSlash("/work/app") {
		t.Fatalf("expected /work/app, got %q", got)
	}
	if got := CurrentWorkPath(filepath.FromSlash("/work/apple"), roots); got != filepath.FromSlash("/work") {
		t.Fatalf("expected /work for sibling prefix, got %q", got)
	}
	if got := CurrentWorkPath(filepath.FromSlash("/elsewhere"), roots); got != "" {
		t.Fatalf("expected no root, got %q", got)
	}
}

func TestFindAutoloadFileSkipsFileNamedVendor(t *testing.T) {
	root := t.TempDir()
	if _, ok, _ := FindAutoloadFile(filepath.Dir(root)); ok {
		t.Skip("temp dir ancestors contain vendor/autoload.php")
	}
	writeFile(t, filepath.Join(root, "vendor"))
	nested := filepath.Join(root, "app")
	mkdir(t, nested)

	got, ok, err := FindAutoloadFile(nested)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if ok || got != "" {
		t.Fatalf("expected no autoload file, got %q", got)
	}
}

func TestFindRealWorkPathSkipsFileNamedVendor(t *testing.T) {
	root := t.TempDir()
	mkdir(t, filepath.Join(root, "src"))
	writeFile(t, filepath.Join(root, "src", "vendor"))
	writeFile(t, filepath.Join(root, "source", ConfigFile))

	got, err := FindRealWorkPath(root)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if want := filepath.Join(root, "source"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
