package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/circuitinfopro/circuitinfopro/internal/database"
	"github.com/circuitinfopro/circuitinfopro/internal/service"
	"github.com/circuitinfopro/circuitinfopro/pkg/logger"
)

// CollectorHandler 采集运行处理器
type CollectorHandler struct {
	collectorService *service.CollectorService
}

// NewCollectorHandler 创建采集运行处理器
func NewCollectorHandler(collectorService *service.CollectorService) *CollectorHandler {
	return &CollectorHandler{
		collectorService: collectorService,
	}
}

// RunResponse 运行结果摘要（不携带设备全文，报表在 report_path 下）
type RunResponse struct {
	RunID      string                     `json:"run_id"`
	ReportPath string                     `json:"report_path"`
	Total      int                        `json:"total"`
	Collected  int                        `json:"collected"`
	Failed     []service.FailedDeviceInfo `json:"failed"`
	DurationMs int64                      `json:"duration_ms"`
}

// Run 执行一轮批量采集
// @Summary 批量采集站点设备的电路信息
// @Description 对设备清单逐台采集运行配置并抽取电路段、VRF/ARP 与 QoS 块
// @Tags collector
// @Accept json
// @Produce json
// @Param request body service.RunRequest true "采集请求"
// @Success 200 {object} RunResponse "运行摘要"
// @Failure 400 {object} ErrorResponse "请求参数错误"
// @Failure 500 {object} ErrorResponse "服务器内部错误"
// @Router /api/v1/collector/run [post]
func (h *CollectorHandler) Run(c *gin.Context) {
	var request service.RunRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logger.Errorf("Invalid run request: %v", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "请求参数无效: " + err.Error(),
		})
		return
	}

	if err := validateRunRequest(&request); err != nil {
		logger.Errorf("Run request validation failed: %v", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_FAILED",
			Message: err.Error(),
		})
		return
	}

	summary, err := h.collectorService.Run(c.Request.Context(), &request)
	if err != nil {
		logger.Errorf("Collection run failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "RUN_FAILED",
			Message: "采集运行失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, RunResponse{
		RunID:      summary.RunID,
		ReportPath: summary.ReportPath,
		Total:      len(summary.Reports),
		Collected:  len(summary.Reports) - len(summary.Failed),
		Failed:     summary.Failed,
		DurationMs: summary.Duration.Milliseconds(),
	})
}

// Health 健康检查
// @Summary 健康检查
// @Description 检查服务与数据库的健康状态
// @Tags system
// @Success 200 {object} SuccessResponse "服务正常"
// @Failure 503 {object} ErrorResponse "服务异常"
// @Router /api/v1/health [get]
func (h *CollectorHandler) Health(c *gin.Context) {
	if database.GetDB() != nil {
		if err := database.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Code:    "SERVICE_UNAVAILABLE",
				Message: "数据库不可用: " + err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "服务正常",
	})
}

// Stats 服务统计信息
// @Summary 获取服务统计信息
// @Tags system
// @Success 200 {object} SuccessResponse "统计信息"
// @Router /api/v1/stats [get]
func (h *CollectorHandler) Stats(c *gin.Context) {
	data := gin.H{"database": "disabled"}
	if database.GetDB() != nil {
		data = gin.H{"database": database.GetStats()}
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "获取统计信息成功",
		Data:    data,
	})
}

// validateRunRequest 验证采集运行参数
func validateRunRequest(request *service.RunRequest) error {
	if len(request.Devices) == 0 {
		return fmt.Errorf("设备清单不能为空")
	}
	if strings.TrimSpace(request.Credentials.Username) == "" {
		return fmt.Errorf("用户名不能为空")
	}
	if strings.TrimSpace(request.Credentials.Password) == "" {
		return fmt.Errorf("密码不能为空")
	}
	if p := request.Credentials.Port; p != 0 && (p < 1 || p > 65535) {
		return fmt.Errorf("端口号必须在1-65535之间")
	}
	if request.Concurrent < 0 {
		return fmt.Errorf("并发数不能为负数")
	}
	if b := strings.TrimSpace(strings.ToLower(request.Backend)); b != "" && b != "local" && b != "minio" {
		return fmt.Errorf("不支持的报表后端: %s", request.Backend)
	}
	for i, d := range request.Devices {
		if strings.TrimSpace(d.Host) == "" || strings.TrimSpace(d.Address) == "" {
			return fmt.Errorf("第%d台设备缺少主机名或IP", i+1)
		}
	}
	return nil
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SuccessResponse 成功响应
type SuccessResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
