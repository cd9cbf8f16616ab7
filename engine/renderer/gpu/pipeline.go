package gpu

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/math"
	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

// pipelineKey identifies one immutable native pipeline: the combination of
// shader, vertex layouts, fixed-function state and the target's attachment
// format signature. The signature must participate because the native API
// bakes the render-target layout into the pipeline at creation.
type pipelineKey uint64

type keyHasher struct {
	buf [8]byte
	h   interface {
		Write(p []byte) (int, error)
		Sum64() uint64
	}
}

func newKeyHasher() *keyHasher {
	return &keyHasher{h: fnv.New64a()}
}

func (k *keyHasher) write(v uint64) {
	binary.LittleEndian.PutUint64(k.buf[:], v)
	k.h.Write(k.buf[:])
}

func (k *keyHasher) writeBool(v bool) {
	if v {
		k.write(1)
	} else {
		k.write(0)
	}
}

func (k *keyHasher) sum() pipelineKey { return pipelineKey(k.h.Sum64()) }

// pipelineHash derives the cache key for a draw command against a target.
func pipelineHash(sh *Shader, cmd *DrawCommand, target *Target) pipelineKey {
	k := newKeyHasher()

	k.h.Write(sh.id[:])

	for slot, vb := range cmd.VertexBuffers {
		k.write(uint64(slot))
		k.write(uint64(vb.Buffer.vertexFormat.Stride))
		k.writeBool(vb.InstanceRate)
		for _, el := range vb.Buffer.vertexFormat.Elements {
			k.write(uint64(el.Index))
			k.write(uint64(el.Type))
			k.writeBool(el.Normalized)
		}
	}

	k.writeBool(cmd.IndexBuffer != nil)
	if cmd.IndexBuffer != nil {
		k.write(uint64(cmd.IndexBuffer.indexFormat))
	}

	k.write(uint64(cmd.Cull))
	k.write(uint64(cmd.DepthCompare))
	k.writeBool(cmd.DepthTestEnabled)
	k.writeBool(cmd.DepthWriteEnabled)

	b := cmd.Blend
	k.write(uint64(b.ColorOp))
	k.write(uint64(b.ColorSrc))
	k.write(uint64(b.ColorDst))
	k.write(uint64(b.AlphaOp))
	k.write(uint64(b.AlphaSrc))
	k.write(uint64(b.AlphaDst))
	k.write(uint64(b.Mask))
	k.write(uint64(b.Constant.R) | uint64(b.Constant.G)<<8 | uint64(b.Constant.B)<<16 | uint64(b.Constant.A)<<24)

	for _, att := range target.attachments {
		k.write(uint64(att.format))
		k.write(uint64(att.sampleCount))
	}

	return k.sum()
}

// resolvePipeline looks the draw's pipeline up in the shader's own cache,
// creating and memoizing it on miss. Creation may race across the
// get-or-add path; the loser releases its pipeline and uses the winner's.
func (d *Device) resolvePipeline(sh *Shader, cmd *DrawCommand, target *Target) (driver.Pipeline, error) {
	key := pipelineHash(sh, cmd, target)

	if cached, ok := sh.pipelines.Load(key); ok {
		return cached.(driver.Pipeline), nil
	}

	info := driver.PipelineInfo{
		VertexShader:               sh.vertex,
		FragmentShader:             sh.fragment,
		VertexUniformBufferCount:   sh.vertexInfo.UniformBufferCount,
		FragmentUniformBufferCount: sh.fragmentInfo.UniformBufferCount,
		FragmentSamplerCount:       sh.fragmentInfo.SamplerCount,
		HasIndexBuffer:             cmd.IndexBuffer != nil,
		Cull:                       cmd.Cull,
		DepthStencil: driver.DepthStencilState{
			TestEnabled:  cmd.DepthTestEnabled,
			WriteEnabled: cmd.DepthWriteEnabled,
			Compare:      cmd.DepthCompare,
		},
		Blend:       cmd.Blend,
		SampleCount: 1,
	}
	if cmd.IndexBuffer != nil {
		info.IndexFormat = cmd.IndexBuffer.indexFormat
	}

	for _, vb := range cmd.VertexBuffers {
		info.VertexSlots = append(info.VertexSlots, driver.VertexSlot{
			Format:       vb.Buffer.vertexFormat,
			InstanceRate: vb.InstanceRate,
		})
	}

	// The pipeline's multisample count is the maximum across the target's
	// attachments.
	for _, att := range target.attachments {
		if att.format.IsDepthStencil() {
			info.DepthStencilFormat = att.format
		} else {
			info.ColorFormats = append(info.ColorFormats, att.format)
		}
		info.SampleCount = math.Max(info.SampleCount, att.sampleCount)
	}

	pipeline, err := d.drv.CreatePipeline(info)
	if err != nil {
		return 0, fmt.Errorf("creating pipeline for shader %q: %w", sh.name, err)
	}

	if existing, loaded := sh.pipelines.LoadOrStore(key, pipeline); loaded {
		d.drv.DestroyPipeline(pipeline)
		return existing.(driver.Pipeline), nil
	}

	core.LogDebug("pipeline cached for shader %q (key %x)", sh.name, uint64(key))
	return pipeline, nil
}

// releasePipelines destroys every pipeline cached on the shader and clears
// the map. Called when the shader is destroyed, so no entry dangles.
func (d *Device) releasePipelines(sh *Shader) {
	sh.pipelines.Range(func(key, value any) bool {
		d.drv.DestroyPipeline(value.(driver.Pipeline))
		sh.pipelines.Delete(key)
		return true
	})
}
