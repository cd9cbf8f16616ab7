package gpu

import (
	"testing"

	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

func TestPipelineIsCachedPerState(t *testing.T) {
	dev, m, _ := testDevice(t, nil)
	sh := testShader(t, dev, 0)
	vb, _ := testQuad(t, dev)

	cmd := DrawCommand{
		Material:      &Material{Shader: sh},
		VertexBuffers: []VertexBufferBinding{{Buffer: vb}},
		VertexCount:   3,
	}
	if err := dev.Draw(cmd); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if err := dev.Draw(cmd); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if m.createPipelineCalls != 1 {
		t.Fatalf("pipelines created for identical state\nhave %d\nwant 1", m.createPipelineCalls)
	}

	// Changing fixed-function state is a different pipeline.
	blended := cmd
	blended.Blend = driver.BlendPremultiply()
	if err := dev.Draw(blended); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if m.createPipelineCalls != 2 {
		t.Fatalf("pipelines after blend change\nhave %d\nwant 2", m.createPipelineCalls)
	}

	culled := cmd
	culled.Cull = driver.CullModeBack
	if err := dev.Draw(culled); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if m.createPipelineCalls != 3 {
		t.Fatalf("pipelines after cull change\nhave %d\nwant 3", m.createPipelineCalls)
	}

	// Revisiting earlier state hits the cache.
	if err := dev.Draw(cmd); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if m.createPipelineCalls != 3 {
		t.Fatal("previously seen state must hit the cache")
	}
}

func TestPipelineKeyIncludesTargetSignature(t *testing.T) {
	dev, m, _ := testDevice(t, nil)
	sh := testShader(t, dev, 0)
	vb, _ := testQuad(t, dev)

	target, err := dev.CreateTarget("offscreen")
	if err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}
	if _, err := dev.CreateTexture("offscreen.color", 128, 128, driver.TextureFormatR8, 1, target); err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}

	cmd := DrawCommand{
		Material:      &Material{Shader: sh},
		VertexBuffers: []VertexBufferBinding{{Buffer: vb}},
		VertexCount:   3,
	}
	if err := dev.Draw(cmd); err != nil {
		t.Fatalf("Draw(backbuffer): %v", err)
	}

	offscreen := cmd
	offscreen.Target = target
	if err := dev.Draw(offscreen); err != nil {
		t.Fatalf("Draw(offscreen): %v", err)
	}
	if m.createPipelineCalls != 2 {
		t.Fatalf("pipelines across differing targets\nhave %d\nwant 2", m.createPipelineCalls)
	}

	// The offscreen pipeline carries the target's format, not the backbuffer's.
	info := m.pipelines[driver.Pipeline(m.nextPipeline)]
	if len(info.ColorFormats) != 1 || info.ColorFormats[0] != driver.TextureFormatR8 {
		t.Fatalf("offscreen pipeline color formats\nhave %v\nwant [R8]", info.ColorFormats)
	}
	if info.DepthStencilFormat != driver.TextureFormatNone {
		t.Fatalf("offscreen pipeline depth format\nhave %v\nwant None", info.DepthStencilFormat)
	}
}

func TestDestroyShaderReleasesOnlyItsPipelines(t *testing.T) {
	dev, m, _ := testDevice(t, nil)
	shA := testShader(t, dev, 0)
	shB := testShader(t, dev, 0)
	vb, _ := testQuad(t, dev)

	draw := func(sh *Shader) {
		t.Helper()
		err := dev.Draw(DrawCommand{
			Material:      &Material{Shader: sh},
			VertexBuffers: []VertexBufferBinding{{Buffer: vb}},
			VertexCount:   3,
		})
		if err != nil {
			t.Fatalf("Draw: %v", err)
		}
	}
	draw(shA)
	draw(shB)
	if m.createPipelineCalls != 2 {
		t.Fatalf("pipelines created\nhave %d\nwant 2", m.createPipelineCalls)
	}

	dev.DestroyShader(shA)
	if m.destroyPipelineCalls != 1 {
		t.Fatalf("pipelines destroyed with shader A\nhave %d\nwant 1", m.destroyPipelineCalls)
	}
	if len(m.pipelines) != 1 {
		t.Fatalf("pipelines alive\nhave %d\nwant 1", len(m.pipelines))
	}

	// Shader B keeps working against its cached pipeline.
	draw(shB)
	if m.createPipelineCalls != 2 {
		t.Fatal("shader B must still hit its cache")
	}
}

func TestTwoShadersSameStateDifferentPipelines(t *testing.T) {
	dev, m, _ := testDevice(t, nil)
	shA := testShader(t, dev, 0)
	shB := testShader(t, dev, 0)
	vb, _ := testQuad(t, dev)

	for _, sh := range []*Shader{shA, shB} {
		err := dev.Draw(DrawCommand{
			Material:      &Material{Shader: sh},
			VertexBuffers: []VertexBufferBinding{{Buffer: vb}},
			VertexCount:   3,
		})
		if err != nil {
			t.Fatalf("Draw: %v", err)
		}
	}
	if m.createPipelineCalls != 2 {
		t.Fatalf("identical state on distinct shaders\nhave %d pipelines\nwant 2", m.createPipelineCalls)
	}
}

func TestPipelineHashIsOrderSensitive(t *testing.T) {
	dev, _, _ := testDevice(t, nil)
	sh := testShader(t, dev, 0)

	posFormat := driver.NewVertexFormat(
		driver.VertexElement{Index: 0, Type: driver.VertexTypeFloat3},
	)
	uvFormat := driver.NewVertexFormat(
		driver.VertexElement{Index: 1, Type: driver.VertexTypeFloat2},
	)
	pos, err := dev.CreateVertexBuffer("pos", posFormat)
	if err != nil {
		t.Fatalf("CreateVertexBuffer: %v", err)
	}
	uv, err := dev.CreateVertexBuffer("uv", uvFormat)
	if err != nil {
		t.Fatalf("CreateVertexBuffer: %v", err)
	}

	ab := DrawCommand{VertexBuffers: []VertexBufferBinding{{Buffer: pos}, {Buffer: uv}}}
	ba := DrawCommand{VertexBuffers: []VertexBufferBinding{{Buffer: uv}, {Buffer: pos}}}

	keyAB := pipelineHash(sh, &ab, dev.backbuffer)
	keyBA := pipelineHash(sh, &ba, dev.backbuffer)
	if keyAB == keyBA {
		t.Fatal("vertex slot order must change the pipeline key")
	}

	again := pipelineHash(sh, &ab, dev.backbuffer)
	if keyAB != again {
		t.Fatal("the pipeline key must be deterministic")
	}
}
