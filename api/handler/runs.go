package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/circuitinfopro/circuitinfopro/internal/database"
	"github.com/circuitinfopro/circuitinfopro/internal/model"
	"github.com/circuitinfopro/circuitinfopro/pkg/logger"
)

// RunHandler 运行历史查询处理器
type RunHandler struct{}

// NewRunHandler 创建运行历史查询处理器
func NewRunHandler() *RunHandler {
	return &RunHandler{}
}

func requireDB(c *gin.Context) *gorm.DB {
	db := database.GetDB()
	if db == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Code:    "DB_DISABLED",
			Message: "运行记录未启用数据库",
		})
		return nil
	}
	return db
}

// ListRuns 分页列出历史运行
// @Summary 列出历史采集运行
// @Tags runs
// @Param page query int false "页码，默认1"
// @Param size query int false "每页条数，默认20"
// @Param status query string false "按状态过滤"
// @Success 200 {object} SuccessResponse "运行列表"
// @Router /api/v1/runs [get]
func (h *RunHandler) ListRuns(c *gin.Context) {
	db := requireDB(c)
	if db == nil {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	query := db.Model(&model.Run{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Errorf("Failed to count runs: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "QUERY_FAILED",
			Message: "查询运行记录失败: " + err.Error(),
		})
		return
	}

	var runs []model.Run
	if err := query.Order("start_time DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&runs).Error; err != nil {
		logger.Errorf("Failed to list runs: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "QUERY_FAILED",
			Message: "查询运行记录失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "查询成功",
		Data: gin.H{
			"total": total,
			"page":  page,
			"size":  size,
			"runs":  runs,
		},
	})
}

// GetRun 查询单次运行
// @Summary 查询单次运行详情
// @Tags runs
// @Param run_id path string true "运行ID"
// @Success 200 {object} SuccessResponse "运行详情"
// @Failure 404 {object} ErrorResponse "运行不存在"
// @Router /api/v1/runs/{run_id} [get]
func (h *RunHandler) GetRun(c *gin.Context) {
	db := requireDB(c)
	if db == nil {
		return
	}

	runID := c.Param("run_id")
	var run model.Run
	if err := db.Where("id = ?", runID).First(&run).Error; err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "RUN_NOT_FOUND",
			Message: "运行不存在: " + runID,
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "查询成功",
		Data:    run,
	})
}

// GetRunFailures 查询单次运行的失败设备
// @Summary 查询单次运行的失败设备清单
// @Tags runs
// @Param run_id path string true "运行ID"
// @Success 200 {object} SuccessResponse "失败设备列表"
// @Router /api/v1/runs/{run_id}/failures [get]
func (h *RunHandler) GetRunFailures(c *gin.Context) {
	db := requireDB(c)
	if db == nil {
		return
	}

	runID := c.Param("run_id")
	var failures []model.FailedDevice
	if err := db.Where("run_id = ?", runID).Order("site, host").Find(&failures).Error; err != nil {
		logger.Errorf("Failed to list run failures: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "QUERY_FAILED",
			Message: "查询失败设备失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "查询成功",
		Data: gin.H{
			"run_id":   runID,
			"total":    len(failures),
			"failures": failures,
		},
	})
}

// GetRunLogs 查询单次运行的日志
// @Summary 查询单次运行的日志
// @Tags runs
// @Param run_id path string true "运行ID"
// @Success 200 {object} SuccessResponse "运行日志"
// @Router /api/v1/runs/{run_id}/logs [get]
func (h *RunHandler) GetRunLogs(c *gin.Context) {
	db := requireDB(c)
	if db == nil {
		return
	}

	runID := c.Param("run_id")
	var logs []model.RunLog
	if err := db.Where("run_id = ?", runID).Order("created_at").Find(&logs).Error; err != nil {
		logger.Errorf("Failed to list run logs: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "QUERY_FAILED",
			Message: "查询运行日志失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "查询成功",
		Data: gin.H{
			"run_id": runID,
			"total":  len(logs),
			"logs":   logs,
		},
	})
}
