package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

func TestTypeOf(t *testing.T) {
	cases := []struct {
		path string
		want Type
	}{
		{"textures/grass.png", TypeImage},
		{"photo.jpg", TypeImage},
		{"photo.jpeg", TypeImage},
		{"old.bmp", TypeImage},
		{"shaders/sprite.shader", TypeShader},
		{"shaders/sprite.vert.spv", TypeNone},
		{"readme.md", TypeNone},
	}
	for _, c := range cases {
		if got := typeOf(c.path); got != c.want {
			t.Fatalf("typeOf(%q)\nhave %v\nwant %v", c.path, got, c.want)
		}
	}
}

func TestManagerIndexesAndLooksUp(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "shaders"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "shaders", "sprite.shader"), []byte("name = \"sprite\"\n"))
	writeFile(t, filepath.Join(root, "grass.png"), []byte{0x89, 'P', 'N', 'G'})
	writeFile(t, filepath.Join(root, "notes.txt"), []byte("ignored"))

	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Shutdown()
	if err := m.Initialize(root); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if got := m.Count(); got != 2 {
		t.Fatalf("indexed assets\nhave %d\nwant 2", got)
	}

	info, ok := m.Lookup("shaders/sprite.shader")
	if !ok {
		t.Fatal("sprite.shader was not indexed")
	}
	if info.Type != TypeShader {
		t.Fatalf("sprite.shader type\nhave %v\nwant %v", info.Type, TypeShader)
	}
	if _, ok := m.Lookup("notes.txt"); ok {
		t.Fatal("unknown extensions must not be indexed")
	}

	// Shutdown twice is safe.
	m.Shutdown()
	m.Shutdown()
}

func TestLoadShader(t *testing.T) {
	dir := t.TempDir()

	spirv := []byte{
		0x03, 0x02, 0x23, 0x07,
		0x00, 0x00, 0x01, 0x00,
	}
	writeFile(t, filepath.Join(dir, "demo.vert.spv"), spirv)
	writeFile(t, filepath.Join(dir, "demo.frag.spv"), spirv)
	writeFile(t, filepath.Join(dir, "demo.shader"), []byte(`
name = "demo"

[vertex]
path = "demo.vert.spv"
uniform_buffers = 1

[fragment]
path = "demo.frag.spv"
samplers = 2
`))

	sh, err := LoadShader(filepath.Join(dir, "demo.shader"))
	if err != nil {
		t.Fatalf("LoadShader: %v", err)
	}
	if sh.Name != "demo" {
		t.Fatalf("name\nhave %q\nwant \"demo\"", sh.Name)
	}
	if sh.Vertex.Stage != driver.ShaderStageVertex || sh.Fragment.Stage != driver.ShaderStageFragment {
		t.Fatal("stage assignment is wrong")
	}
	if sh.Vertex.EntryPoint != "main" {
		t.Fatalf("default entry point\nhave %q\nwant \"main\"", sh.Vertex.EntryPoint)
	}
	if sh.Vertex.UniformBufferCount != 1 {
		t.Fatalf("vertex uniform buffers\nhave %d\nwant 1", sh.Vertex.UniformBufferCount)
	}
	if sh.Fragment.SamplerCount != 2 {
		t.Fatalf("fragment samplers\nhave %d\nwant 2", sh.Fragment.SamplerCount)
	}
	if len(sh.Vertex.Code) != len(spirv) || len(sh.Fragment.Code) != len(spirv) {
		t.Fatal("bytecode was not loaded")
	}
}

func TestLoadShaderRejectsBadBytecode(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "bad.vert.spv"), []byte{1, 2, 3})
	writeFile(t, filepath.Join(dir, "bad.frag.spv"), []byte{1, 2, 3, 4})
	writeFile(t, filepath.Join(dir, "bad.shader"), []byte(`
[vertex]
path = "bad.vert.spv"

[fragment]
path = "bad.frag.spv"
`))

	if _, err := LoadShader(filepath.Join(dir, "bad.shader")); err == nil {
		t.Fatal("bytecode whose length is not a multiple of four must be rejected")
	}

	if _, err := LoadShader(filepath.Join(dir, "missing.shader")); err == nil {
		t.Fatal("a missing config must be an error")
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}
