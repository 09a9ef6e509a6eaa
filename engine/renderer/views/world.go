package views

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/components"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

/**
 * @brief Puts the frame together: the scene pass draws the grid and the
 * cubes into color and depth, the overlay pass optionally shows the depth.
 */
type RenderViewWorld struct {
	device  Device
	shaders ShaderLibrary

	ClearColor metadata.Color
	// ShowDepth draws the depth view over the scene.
	ShowDepth bool

	scene   []RenderView
	overlay []RenderView

	uniform       metadata.Buffer
	cameraUniform components.CameraUniform
}

func NewRenderViewWorld(device Device, shaders ShaderLibrary, clearColor metadata.Color) *RenderViewWorld {
	return &RenderViewWorld{
		device:        device,
		shaders:       shaders,
		ClearColor:    clearColor,
		scene:         []RenderView{NewRenderViewLines(), NewRenderViewModels()},
		overlay:       []RenderView{NewRenderViewDepth()},
		cameraUniform: components.NewCameraUniform(),
	}
}

func (vw *RenderViewWorld) views() []RenderView {
	return append(append([]RenderView{}, vw.scene...), vw.overlay...)
}

// View returns the child view with the given name.
func (vw *RenderViewWorld) View(name string) RenderView {
	for _, v := range vw.views() {
		if v.Name() == name {
			return v
		}
	}
	return nil
}

func (vw *RenderViewWorld) OnCreate() error {
	uniform, err := vw.device.CreateBuffer("camera-uniform", metadata.BufferUsageUniform, vw.cameraUniform.Bytes())
	if err != nil {
		return fmt.Errorf("camera uniform: %w", err)
	}
	vw.uniform = uniform

	for _, v := range vw.views() {
		if err := v.OnCreate(vw.device, vw.shaders); err != nil {
			vw.OnDestroy()
			return fmt.Errorf("create %s view: %w", v.Name(), err)
		}
		core.LogDebug("%s view created", v.Name())
	}
	return nil
}

// OnAssetChanged is registered for EVENT_CODE_ASSET_CHANGED and rebuilds the
// pipelines that use the changed shader.
func (vw *RenderViewWorld) OnAssetChanged(ctx core.EventContext) bool {
	ev, ok := ctx.Data.(*core.AssetChangedEvent)
	if !ok {
		return false
	}
	if _, err := vw.ReloadShader(ev.Name); err != nil {
		core.LogError("failed to reload %s: %s", ev.Name, err)
	}
	// other listeners may care about the same asset
	return false
}

// ReloadShader rebuilds every pipeline built from the named shader and
// returns how many were rebuilt.
func (vw *RenderViewWorld) ReloadShader(name string) (int, error) {
	var errs []error
	rebuilt := 0
	for _, v := range vw.views() {
		ok, err := v.OnShaderChanged(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s view: %w", v.Name(), err))
		}
		if ok {
			rebuilt++
		}
	}
	return rebuilt, errors.Join(errs...)
}

// OnBuildPacket writes the camera uniform and returns the passes of the frame.
func (vw *RenderViewWorld) OnBuildPacket(camera *components.Camera, time float64) ([]*metadata.Pass, error) {
	vw.cameraUniform.UpdateViewProj(camera)
	if err := vw.device.WriteBuffer(vw.uniform, 0, vw.cameraUniform.Bytes()); err != nil {
		return nil, fmt.Errorf("upload camera uniform: %w", err)
	}

	packet := &RenderViewPacket{
		Time:          time,
		Camera:        camera,
		CameraUniform: vw.uniform,
	}

	scene := &metadata.Pass{
		Label:      "scene",
		Kind:       metadata.PassKindScene,
		ClearColor: vw.ClearColor,
		ClearDepth: 1.0,
	}
	for _, v := range vw.scene {
		draws, err := v.OnBuildPacket(packet)
		if err != nil {
			return nil, fmt.Errorf("%s view: %w", v.Name(), err)
		}
		scene.Draws = append(scene.Draws, draws...)
	}
	passes := []*metadata.Pass{scene}

	if vw.ShowDepth {
		overlay := &metadata.Pass{Label: "overlay", Kind: metadata.PassKindOverlay}
		for _, v := range vw.overlay {
			draws, err := v.OnBuildPacket(packet)
			if err != nil {
				return nil, fmt.Errorf("%s view: %w", v.Name(), err)
			}
			overlay.Draws = append(overlay.Draws, draws...)
		}
		passes = append(passes, overlay)
	}
	return passes, nil
}

func (vw *RenderViewWorld) OnDestroy() {
	for _, v := range vw.views() {
		v.OnDestroy()
	}
	if vw.uniform != nil {
		vw.device.DestroyBuffer(vw.uniform)
		vw.uniform = nil
	}
}
