package api

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ServerMetrics собирает сведения о процессе для /api/server
type ServerMetrics struct {
	StartTime time.Time
}

// ServerInfo ответ /api/server
type ServerInfo struct {
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	Uptime     string             `json:"uptime"`
	MemoryMB   float64            `json:"memory_mb"`
	CPUPercent float64            `json:"cpu_percent"`
	Goroutines int                `json:"goroutines"`
	Memory     map[string]float64 `json:"memory"`
	ServerTime int64              `json:"server_time"`
}

func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{StartTime: time.Now()}
}

// GetUptime возвращает время работы в виде "1д 2ч 3м 4с"
func (sm *ServerMetrics) GetUptime() string {
	uptime := time.Since(sm.StartTime)

	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// GetCPUUsage возвращает загрузку CPU процессом. Если метрика процесса
// недоступна, берётся общесистемная за короткий интервал.
func (sm *ServerMetrics) GetCPUUsage() (float64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err == nil {
		if pct, err := proc.CPUPercent(); err == nil {
			return pct, nil
		}
	}

	pcts, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, fmt.Errorf("cpu: no samples")
	}
	return pcts[0], nil
}

// Collect снимает текущее состояние процесса
func (sm *ServerMetrics) Collect() ServerInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	cpuPercent, _ := sm.GetCPUUsage()

	const mb = 1024 * 1024
	return ServerInfo{
		Name:       "geography",
		Status:     "running",
		Uptime:     sm.GetUptime(),
		MemoryMB:   float64(m.Alloc) / mb,
		CPUPercent: cpuPercent,
		Goroutines: runtime.NumGoroutine(),
		Memory: map[string]float64{
			"alloc_mb":       float64(m.Alloc) / mb,
			"total_alloc_mb": float64(m.TotalAlloc) / mb,
			"sys_mb":         float64(m.Sys) / mb,
			"heap_alloc_mb":  float64(m.HeapAlloc) / mb,
			"num_gc":         float64(m.NumGC),
		},
		ServerTime: time.Now().Unix(),
	}
}
