package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFixtureJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.json")
	if err := os.WriteFile(path, []byte(`{"name":"widget","count":3}`), 0o644); err != nil {
		t.Fatal(err)
	}

	var dest struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	LoadFixtureJSON(t, path, &dest)
	if dest.Name != "widget" || dest.Count != 3 {
		t.Fatalf("dest = %+v", dest)
	}
}

func TestWriteAndCompareGolden(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.golden")

	WriteGolden(t, path, []byte("expected output"))
	CompareWithGolden(t, path, []byte("expected output"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "expected output" {
		t.Fatalf("golden content = %q", data)
	}
}

func TestCompareWithGoldenCreatesMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fresh.golden")

	CompareWithGolden(t, path, []byte("first run"))
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("golden file not created: %v", err)
	}
}

func TestFixturePath(t *testing.T) {
	if got := FixturePath("product.json"); got != filepath.Join("testdata", "product.json") {
		t.Fatalf("FixturePath = %q", got)
	}
}
