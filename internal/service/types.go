package service

import (
	"github.com/circuitinfopro/circuitinfopro/internal/extract"
)

// Credentials 设备登录凭据，按运行传入，不落盘
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Port     int    `json:"port,omitempty"`
}

// DeviceReport 单台设备的采集结果
// FailureReason 非空时不携带任何内容（失败设备只进失败清单）
type DeviceReport struct {
	Site    string `json:"site"`
	Host    string `json:"host"`
	Address string `json:"address"`

	CircuitBlocks  []*extract.Block  `json:"circuit_blocks,omitempty"`
	VRFSummary     string            `json:"vrf_summary,omitempty"`
	VRFNames       []string          `json:"vrf_names,omitempty"`
	ARPByVRF       map[string]string `json:"arp_by_vrf,omitempty"`
	DetailByVRF    map[string]string `json:"detail_by_vrf,omitempty"`
	PolicyMaps     [][]string        `json:"policy_maps,omitempty"`
	NeighborDetail string            `json:"neighbor_detail,omitempty"`

	FailureReason string `json:"failure_reason,omitempty"`
}

// Failed 设备是否采集失败
func (r *DeviceReport) Failed() bool {
	return r.FailureReason != ""
}

// FailedDeviceInfo 失败清单条目
type FailedDeviceInfo struct {
	Site    string `json:"site"`
	Host    string `json:"host"`
	Address string `json:"address"`
	Reason  string `json:"reason"`
}
