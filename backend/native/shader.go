// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// CompileShader compiles WGSL source to SPIR-V words.
func CompileShader(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("native: compile shader: %w", err)
	}
	return spirvWords(spirvBytes), nil
}

// spirvWords packs little-endian SPIR-V bytes into 32-bit words.
func spirvWords(b []byte) []uint32 {
	code := make([]uint32, len(b)/4)
	for i := range code {
		code[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return code
}

// CreateShaderModule compiles WGSL and creates a shader module on dev.
func CreateShaderModule(dev *Device, label, wgsl string) (hal.ShaderModule, error) {
	if err := dev.check(); err != nil {
		return nil, err
	}
	code, err := CompileShader(wgsl)
	if err != nil {
		return nil, err
	}
	module, err := dev.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return nil, fmt.Errorf("native: create shader module %s: %w", label, err)
	}
	return module, nil
}
