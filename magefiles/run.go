//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the engine in a window.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "prism.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Renders a few frames off screen and writes the depth buffer to depth.png.
func (Run) Headless() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run headless...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "prism.toml", "-headless", "-frames", "60", "-snapshot", "depth.png"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the tests of every package.
func (Run) Tests() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}
