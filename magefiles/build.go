//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

const shadersDir = "assets/shaders"

type Build mg.Namespace

// Compiles every GLSL stage under assets/shaders to SPIR-V next to it.
func (Build) Shaders() error {
	return buildShaders()
}

func buildShaders() error {
	var sources []string
	for _, ext := range []string{"*.vert", "*.frag"} {
		matches, err := filepath.Glob(filepath.Join(shadersDir, ext))
		if err != nil {
			return err
		}
		sources = append(sources, matches...)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no shader sources found in %s", shadersDir)
	}
	for _, src := range sources {
		out := src + ".spv"
		if upToDate(src, out) {
			continue
		}
		if _, err := executeCmd("glslc", withArgs(src, "-o", out), withStream()); err != nil {
			return err
		}
	}
	return nil
}

func upToDate(src, out string) bool {
	si, err := os.Stat(src)
	if err != nil {
		return false
	}
	oi, err := os.Stat(out)
	if err != nil {
		return false
	}
	return !oi.ModTime().Before(si.ModTime())
}
