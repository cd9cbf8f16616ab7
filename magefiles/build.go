//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Compiles the testbed GLSL shaders to SPIR-V with glslc.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the engine binary.
func (Build) Engine() error {
	_, err := executeCmd("go", withArgs("build", "-o", "ember", "."), withStream())
	return err
}

func buildShaders() error {
	if _, err := executeCmd("glslc", withArgs("assets/shaders/sprite.vert", "-o", "assets/shaders/sprite.vert.spv"), withStream()); err != nil {
		return err
	}
	if _, err := executeCmd("glslc", withArgs("assets/shaders/sprite.frag", "-o", "assets/shaders/sprite.frag.spv"), withStream()); err != nil {
		return err
	}
	return nil
}
