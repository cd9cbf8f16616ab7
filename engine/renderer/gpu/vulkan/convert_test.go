package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

func TestTextureFormatUsesDetectedDepthFormat(t *testing.T) {
	d := &Driver{depthFormat: vk.FormatD32SfloatS8Uint}

	if got := d.textureFormat(driver.TextureFormatR8G8B8A8); got != vk.FormatR8g8b8a8Unorm {
		t.Fatalf("R8G8B8A8\nhave %v\nwant %v", got, vk.FormatR8g8b8a8Unorm)
	}
	if got := d.textureFormat(driver.TextureFormatR8); got != vk.FormatR8Unorm {
		t.Fatalf("R8\nhave %v\nwant %v", got, vk.FormatR8Unorm)
	}
	if got := d.textureFormat(driver.TextureFormatDepth24Stencil8); got != vk.FormatD32SfloatS8Uint {
		t.Fatalf("depth format must follow the device's detected format, have %v", got)
	}
}

func TestVertexFormatNormalization(t *testing.T) {
	cases := []struct {
		t          driver.VertexType
		normalized bool
		want       vk.Format
	}{
		{driver.VertexTypeFloat, false, vk.FormatR32Sfloat},
		{driver.VertexTypeFloat2, false, vk.FormatR32g32Sfloat},
		{driver.VertexTypeFloat3, false, vk.FormatR32g32b32Sfloat},
		{driver.VertexTypeFloat4, false, vk.FormatR32g32b32a32Sfloat},
		{driver.VertexTypeUByte4, true, vk.FormatR8g8b8a8Unorm},
		{driver.VertexTypeUByte4, false, vk.FormatR8g8b8a8Uint},
		{driver.VertexTypeByte4, true, vk.FormatR8g8b8a8Snorm},
		{driver.VertexTypeByte4, false, vk.FormatR8g8b8a8Sint},
		{driver.VertexTypeShort2, true, vk.FormatR16g16Snorm},
		{driver.VertexTypeUShort4, false, vk.FormatR16g16b16a16Uint},
	}
	for _, c := range cases {
		if got := vertexFormat(c.t, c.normalized); got != c.want {
			t.Fatalf("vertexFormat(%v, %t)\nhave %v\nwant %v", c.t, c.normalized, got, c.want)
		}
	}
}

func TestStoreOpResolveStillStores(t *testing.T) {
	// The resolve is expressed through the pass's resolve attachment; the
	// multisampled attachment itself still gets a plain store.
	if got := storeOp(driver.StoreOpResolveAndStore); got != vk.AttachmentStoreOpStore {
		t.Fatalf("storeOp(ResolveAndStore)\nhave %v\nwant %v", got, vk.AttachmentStoreOpStore)
	}
	if got := storeOp(driver.StoreOpDontCare); got != vk.AttachmentStoreOpDontCare {
		t.Fatalf("storeOp(DontCare)\nhave %v", got)
	}
}

func TestRenderPassKeyDistinguishesPasses(t *testing.T) {
	base := driver.RenderPassInfo{
		Colors: []driver.ColorAttachment{{
			Format:      driver.TextureFormatR8G8B8A8,
			SampleCount: 1,
			LoadOp:      driver.LoadOpClear,
			StoreOp:     driver.StoreOpStore,
		}},
	}

	loaded := base
	loaded.Colors = []driver.ColorAttachment{base.Colors[0]}
	loaded.Colors[0].LoadOp = driver.LoadOpLoad

	multisampled := base
	multisampled.Colors = []driver.ColorAttachment{base.Colors[0]}
	multisampled.Colors[0].SampleCount = 4
	multisampled.Colors[0].ResolveTexture = 1

	withDepth := base
	withDepth.DepthStencil = &driver.DepthStencilAttachment{
		Format:        driver.TextureFormatDepth24Stencil8,
		SampleCount:   1,
		DepthLoadOp:   driver.LoadOpClear,
		StencilLoadOp: driver.LoadOpLoad,
	}

	keys := map[string]string{
		"base":         renderPassKey(&base),
		"loaded":       renderPassKey(&loaded),
		"multisampled": renderPassKey(&multisampled),
		"withDepth":    renderPassKey(&withDepth),
	}
	seen := make(map[string]string)
	for name, key := range keys {
		if prev, dup := seen[key]; dup {
			t.Fatalf("pass variants %q and %q share key %q", prev, name, key)
		}
		seen[key] = name
	}

	// Identical descriptions produce identical keys.
	copyOfBase := base
	if renderPassKey(&copyOfBase) != keys["base"] {
		t.Fatal("equal pass descriptions must share a key")
	}

	// The key must not depend on texture identity, only on the signature.
	otherTexture := base
	otherTexture.Colors = []driver.ColorAttachment{base.Colors[0]}
	otherTexture.Colors[0].Texture = 42
	if renderPassKey(&otherTexture) != keys["base"] {
		t.Fatal("texture identity must not participate in the render pass key")
	}
}
