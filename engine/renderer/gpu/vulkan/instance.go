package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/core"
)

const validationLayerName = "VK_LAYER_KHRONOS_validation"

func (d *Driver) createInstance() error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("func createInstance: no vulkan loader available")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return fmt.Errorf("func createInstance: initializing bindings: %w", err)
	}

	extensions := d.window.RequiredExtensions()
	if d.cfg.Debug {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
	}

	var layers []string
	if d.cfg.Debug {
		if hasInstanceLayer(validationLayerName) {
			layers = append(layers, validationLayerName)
			core.LogInfo("validation layer enabled")
		} else {
			core.LogWarn("validation layer requested but not available")
		}
	}

	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   safeString(d.cfg.AppName),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        safeString("Ember"),
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.ApiVersion11,
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     safeStrings(layers),
	}

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		return vkError("vkCreateInstance", res)
	}
	d.instance = instance
	vk.InitInstance(d.instance)

	if d.cfg.Debug {
		d.createDebugCallback()
	}
	return nil
}

func hasInstanceLayer(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success || count == 0 {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return false
	}
	for i := range layers {
		layers[i].Deref()
		if vk.ToString(layers[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

func (d *Driver) createDebugCallback() {
	createInfo := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: func(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
			object uint64, location uint, messageCode int32, layerPrefix string,
			message string, userData unsafe.Pointer) vk.Bool32 {
			if vk.DebugReportFlagBits(flags)&vk.DebugReportErrorBit != 0 {
				core.LogError("[%s] %s", layerPrefix, message)
			} else {
				core.LogWarn("[%s] %s", layerPrefix, message)
			}
			return vk.False
		},
	}
	var callback vk.DebugReportCallback
	if res := vk.CreateDebugReportCallback(d.instance, &createInfo, nil, &callback); res != vk.Success {
		core.LogWarn("vkCreateDebugReportCallbackEXT failed with %s", resultString(res))
		return
	}
	d.debugCallback = callback
}

func (d *Driver) createSurface() error {
	surface, err := d.window.CreateSurface(uintptr(unsafe.Pointer(d.instance)))
	if err != nil {
		return fmt.Errorf("func createSurface: %w", err)
	}
	d.surface = vk.SurfaceFromPointer(surface)
	return nil
}

// selectPhysicalDevice picks a GPU with graphics and present support,
// preferring discrete devices. Integrated devices are accepted so the
// engine still runs on machines without one.
func (d *Driver) selectPhysicalDevice() error {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(d.instance, &count, nil); res != vk.Success {
		return vkError("vkEnumeratePhysicalDevices", res)
	}
	if count == 0 {
		return fmt.Errorf("no devices which support vulkan were found")
	}
	devices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(d.instance, &count, devices); res != vk.Success {
		return vkError("vkEnumeratePhysicalDevices", res)
	}

	var fallback vk.PhysicalDevice
	var fallbackGraphics, fallbackPresent uint32

	for _, candidate := range devices {
		graphics, present, ok := d.findQueueFamilies(candidate)
		if !ok || !hasDeviceExtension(candidate, vk.KhrSwapchainExtensionName) {
			continue
		}

		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(candidate, &props)
		props.Deref()

		if props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			d.adoptPhysicalDevice(candidate, graphics, present, &props)
			return nil
		}
		if fallback == nil {
			fallback = candidate
			fallbackGraphics, fallbackPresent = graphics, present
		}
	}

	if fallback == nil {
		return fmt.Errorf("no physical device meets the requirements")
	}
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(fallback, &props)
	props.Deref()
	d.adoptPhysicalDevice(fallback, fallbackGraphics, fallbackPresent, &props)
	return nil
}

func (d *Driver) adoptPhysicalDevice(device vk.PhysicalDevice, graphics, present uint32, props *vk.PhysicalDeviceProperties) {
	d.physicalDevice = device
	d.graphicsQueueIndex = graphics
	d.presentQueueIndex = present
	d.properties = *props
	vk.GetPhysicalDeviceMemoryProperties(device, &d.memory)
	d.memory.Deref()
	d.depthFormat = d.detectDepthFormat()

	core.LogInfo("selected device: '%s'", vk.ToString(props.DeviceName[:]))
	core.LogDebug("graphics family index: %d", graphics)
	core.LogDebug("present family index:  %d", present)
}

func (d *Driver) findQueueFamilies(device vk.PhysicalDevice) (graphics, present uint32, ok bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, families)

	foundGraphics, foundPresent := false, false
	for i := uint32(0); i < count; i++ {
		families[i].Deref()
		if !foundGraphics && vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueGraphicsBit != 0 {
			graphics = i
			foundGraphics = true
		}
		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, i, d.surface, &supportsPresent); res != vk.Success {
			continue
		}
		if !foundPresent && supportsPresent == vk.True {
			present = i
			foundPresent = true
		}
	}
	return graphics, present, foundGraphics && foundPresent
}

func hasDeviceExtension(device vk.PhysicalDevice, name string) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success || count == 0 {
		return false
	}
	extensions := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, extensions); res != vk.Success {
		return false
	}
	for i := range extensions {
		extensions[i].Deref()
		if vk.ToString(extensions[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}

func (d *Driver) detectDepthFormat() vk.Format {
	candidates := []vk.Format{
		vk.FormatD24UnormS8Uint,
		vk.FormatD32SfloatS8Uint,
	}
	required := vk.FormatFeatureDepthStencilAttachmentBit
	for _, candidate := range candidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.physicalDevice, candidate, &props)
		props.Deref()
		if vk.FormatFeatureFlagBits(props.OptimalTilingFeatures)&required == required {
			return candidate
		}
	}
	core.LogWarn("no supported depth/stencil format found")
	return vk.FormatUndefined
}

func (d *Driver) createLogicalDevice() error {
	core.LogInfo("creating logical device...")

	indices := []uint32{d.graphicsQueueIndex}
	if d.presentQueueIndex != d.graphicsQueueIndex {
		indices = append(indices, d.presentQueueIndex)
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, family := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	extensions := []string{vk.KhrSwapchainExtensionName}
	if runtime.GOOS == "darwin" && hasDeviceExtension(d.physicalDevice, "VK_KHR_portability_subset") {
		extensions = append(extensions, "VK_KHR_portability_subset")
	}

	features := vk.PhysicalDeviceFeatures{
		IndependentBlend: vk.True,
	}

	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}

	var device vk.Device
	if res := vk.CreateDevice(d.physicalDevice, &createInfo, nil, &device); res != vk.Success {
		return vkError("vkCreateDevice", res)
	}
	d.device = device

	vk.GetDeviceQueue(d.device, d.graphicsQueueIndex, 0, &d.graphicsQueue)
	vk.GetDeviceQueue(d.device, d.presentQueueIndex, 0, &d.presentQueue)
	core.LogInfo("logical device created, queues obtained")
	return nil
}

func (d *Driver) createCommandPool() error {
	createInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.graphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(d.device, &createInfo, nil, &pool); res != vk.Success {
		return vkError("vkCreateCommandPool", res)
	}
	d.commandPool = pool
	return nil
}
