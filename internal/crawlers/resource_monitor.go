package crawlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// MemoryPressure 内存压力等级
type MemoryPressure string

const (
	PressureNormal    MemoryPressure = "normal"
	PressureWarning   MemoryPressure = "warning"
	PressureCritical  MemoryPressure = "critical"
	PressureEmergency MemoryPressure = "emergency"
)

// ResourceMonitor 系统资源监控器
// 职责: 周期采样主机可用内存与CPU,判断浏览器标签页是否需要回收重建
type ResourceMonitor struct {
	config ResourceMonitorConfig

	// 最近一次采样
	available uint64
	total     uint64
	cpuUsage  float64
	sampledAt time.Time
	mu        sync.RWMutex

	// 监控控制
	cancelFunc context.CancelFunc
	isRunning  bool
	runMu      sync.Mutex

	// 采样函数,测试中可替换
	sampleMemory func() (available, total uint64, err error)
	sampleCPU    func() (float64, error)
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	WarningMB   uint64 // 低于该值视为 warning
	CriticalMB  uint64 // 低于该值视为 critical,需回收标签页
	EmergencyMB uint64 // 低于该值视为 emergency
	CPUPercent  float64
}

// DefaultResourceMonitorConfig 默认阈值
func DefaultResourceMonitorConfig() ResourceMonitorConfig {
	return ResourceMonitorConfig{
		WarningMB:   500,
		CriticalMB:  300,
		EmergencyMB: 200,
		CPUPercent:  90,
	}
}

// ResourceStatus 资源状态快照
type ResourceStatus struct {
	TotalMemory     uint64
	AvailableMemory uint64
	CPUUsage        float64
	Pressure        MemoryPressure
}

// NewResourceMonitor 创建资源监控器实例并立即采样一次
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.CriticalMB == 0 {
		config = DefaultResourceMonitorConfig()
	}
	rm := &ResourceMonitor{
		config:       config,
		sampleMemory: virtualMemory,
		sampleCPU:    cpuPercent,
	}
	rm.sample()

	rm.mu.RLock()
	log.Info().Msgf("系统总内存: %.2f GB", float64(rm.total)/(1024*1024*1024))
	rm.mu.RUnlock()
	return rm
}

func virtualMemory() (uint64, uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}
	return vm.Available, vm.Total, nil
}

func cpuPercent() (float64, error) {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("CPU使用率数据为空")
	}
	return percentages[0], nil
}

// sample 采样一次内存与CPU
func (rm *ResourceMonitor) sample() {
	available, total, err := rm.sampleMemory()
	if err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,沿用上次采样")
	}
	usage, cpuErr := rm.sampleCPU()
	if cpuErr != nil {
		log.Debug().Err(cpuErr).Msg("获取CPU使用率失败")
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if err == nil {
		rm.available = available
		rm.total = total
	}
	if cpuErr == nil {
		rm.cpuUsage = usage
	}
	rm.sampledAt = time.Now()
}

// StartMonitoring 启动后台采样,重复调用无副作用
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.runMu.Lock()
	defer rm.runMu.Unlock()
	if rm.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm.cancelFunc = cancel
	rm.isRunning = true

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rm.sample()
			}
		}
	}()
}

// StopMonitoring 停止后台采样
func (rm *ResourceMonitor) StopMonitoring() {
	rm.runMu.Lock()
	defer rm.runMu.Unlock()
	if rm.isRunning && rm.cancelFunc != nil {
		rm.cancelFunc()
		rm.isRunning = false
		rm.cancelFunc = nil
	}
}

// Status 返回最近一次采样结果
func (rm *ResourceMonitor) Status() ResourceStatus {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return ResourceStatus{
		TotalMemory:     rm.total,
		AvailableMemory: rm.available,
		CPUUsage:        rm.cpuUsage,
		Pressure:        rm.pressureLocked(),
	}
}

func (rm *ResourceMonitor) pressureLocked() MemoryPressure {
	if rm.total == 0 {
		return PressureNormal
	}
	availableMB := rm.available / (1024 * 1024)
	switch {
	case availableMB < rm.config.EmergencyMB:
		return PressureEmergency
	case availableMB < rm.config.CriticalMB:
		return PressureCritical
	case availableMB < rm.config.WarningMB:
		return PressureWarning
	default:
		return PressureNormal
	}
}

// ShouldRecycle 判断是否应回收当前标签页以释放浏览器内存
// 返回是否回收以及原因
func (rm *ResourceMonitor) ShouldRecycle() (bool, string) {
	status := rm.Status()
	availableMB := status.AvailableMemory / (1024 * 1024)

	switch status.Pressure {
	case PressureEmergency, PressureCritical:
		log.Warn().Msgf("内存不足(当前%dMB),回收标签页", availableMB)
		return true, fmt.Sprintf("内存不足(当前%dMB)", availableMB)
	case PressureWarning:
		log.Debug().Msgf("内存偏低(当前%dMB)", availableMB)
	}

	if rm.config.CPUPercent > 0 && status.CPUUsage > rm.config.CPUPercent {
		log.Debug().Msgf("CPU负载过高(当前%.1f%%)", status.CPUUsage)
	}
	return false, ""
}
