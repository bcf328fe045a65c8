package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/circuitinfopro/circuitinfopro/internal/model"
	"github.com/circuitinfopro/circuitinfopro/pkg/logger"
)

// DeviceHandler 设备台账查询处理器
type DeviceHandler struct{}

// NewDeviceHandler 创建设备台账查询处理器
func NewDeviceHandler() *DeviceHandler {
	return &DeviceHandler{}
}

// ListDevices 列出已知设备及最近可达状态
// @Summary 列出已知设备
// @Tags devices
// @Param site query string false "按站点过滤"
// @Param status query string false "按可达状态过滤"
// @Success 200 {object} SuccessResponse "设备列表"
// @Router /api/v1/devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	db := requireDB(c)
	if db == nil {
		return
	}

	query := db.Model(&model.DeviceRecord{})
	if site := c.Query("site"); site != "" {
		query = query.Where("site = ?", site)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var devices []model.DeviceRecord
	if err := query.Order("site, host").Find(&devices).Error; err != nil {
		logger.Errorf("Failed to list devices: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "QUERY_FAILED",
			Message: "查询设备失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "查询成功",
		Data: gin.H{
			"total":   len(devices),
			"devices": devices,
		},
	})
}

// GetDevice 按IP查询单台设备
// @Summary 按IP查询单台设备
// @Tags devices
// @Param address path string true "设备IP"
// @Success 200 {object} SuccessResponse "设备详情"
// @Failure 404 {object} ErrorResponse "设备不存在"
// @Router /api/v1/devices/{address} [get]
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	db := requireDB(c)
	if db == nil {
		return
	}

	address := c.Param("address")
	var device model.DeviceRecord
	if err := db.Where("address = ?", address).First(&device).Error; err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "DEVICE_NOT_FOUND",
			Message: "设备不存在: " + address,
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "查询成功",
		Data:    device,
	})
}
