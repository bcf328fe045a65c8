package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/circuitinfopro/circuitinfopro/internal/config"
	"github.com/circuitinfopro/circuitinfopro/internal/extract"
	"github.com/circuitinfopro/circuitinfopro/pkg/logger"
)

// ExtractHandler 离线抽取处理器：对贴入的配置文本执行与采集相同的抽取流水线
type ExtractHandler struct {
	classifier *extract.Classifier
	policy     *extract.PolicyExtractor
	fields     *extract.FieldExtractor
}

// NewExtractHandler 创建离线抽取处理器；抽取参数与采集共用同一份配置
func NewExtractHandler(cfg *config.Config) (*ExtractHandler, error) {
	classifier, err := extract.NewClassifier(extract.ClassifierConfig{
		Keywords:            cfg.Extract.CircuitKeywords,
		TunnelPattern:       cfg.Extract.TunnelPattern,
		BridgeDomainPattern: cfg.Extract.BridgeDomainPattern,
		TrunkVlanMarker:     cfg.Extract.TrunkVlanMarker,
	})
	if err != nil {
		return nil, err
	}
	policy, err := extract.NewPolicyExtractor(cfg.Extract.PolicyMapPrefix)
	if err != nil {
		return nil, err
	}
	fields, err := extract.NewFieldExtractor(cfg.Extract.Heuristic.PublicProviders, cfg.Extract.Heuristic.PrivateCircuitPattern)
	if err != nil {
		return nil, err
	}
	return &ExtractHandler{classifier: classifier, policy: policy, fields: fields}, nil
}

// CircuitsRequest 电路抽取请求
type CircuitsRequest struct {
	Config string `json:"config" binding:"required"`
}

// CircuitBlockView 抽取出的单个电路块
type CircuitBlockView struct {
	Header string                `json:"header"`
	Lines  []string              `json:"lines"`
	Fields extract.CircuitFields `json:"fields"`
}

// Circuits 对贴入的运行配置执行电路块抽取
// @Summary 抽取配置文本中的电路接口块
// @Description 分段、分类并做一层桥接域/VLAN 扩展，附带启发式字段与引用的 QoS 块
// @Tags extract
// @Accept json
// @Produce json
// @Param request body CircuitsRequest true "配置文本"
// @Success 200 {object} SuccessResponse "抽取结果"
// @Failure 400 {object} ErrorResponse "请求参数错误"
// @Router /api/v1/extract/circuits [post]
func (h *ExtractHandler) Circuits(c *gin.Context) {
	var request CircuitsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logger.Errorf("Invalid extract request: %v", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "请求参数无效: " + err.Error(),
		})
		return
	}

	blocks, index := extract.SegmentText(request.Config)
	selected := h.classifier.Select(blocks, index)

	views := make([]CircuitBlockView, 0, len(selected))
	for _, b := range selected {
		views = append(views, CircuitBlockView{
			Header: b.Header,
			Lines:  b.Lines,
			Fields: h.fields.Extract(b.Lines),
		})
	}

	circuitText := extract.SelectionText(selected)
	cfgLines := strings.Split(strings.ReplaceAll(request.Config, "\r\n", "\n"), "\n")
	policyMaps := h.policy.ExtractReferenced(circuitText, cfgLines)

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "抽取完成",
		Data: gin.H{
			"total":       len(views),
			"circuits":    views,
			"policy_maps": policyMaps,
		},
	})
}

// FieldsRequest 启发式字段抽取请求
type FieldsRequest struct {
	Lines []string `json:"lines" binding:"required"`
}

// Fields 对单个接口块做启发式字段抽取
// @Summary 抽取单个接口块的电路字段
// @Description 从接口块行中提取运营商、电路ID、带宽、交接方式、VLAN 与对端地址
// @Tags extract
// @Accept json
// @Produce json
// @Param request body FieldsRequest true "接口块行"
// @Success 200 {object} SuccessResponse "字段结果"
// @Failure 400 {object} ErrorResponse "请求参数错误"
// @Router /api/v1/extract/fields [post]
func (h *ExtractHandler) Fields(c *gin.Context) {
	var request FieldsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logger.Errorf("Invalid fields request: %v", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "请求参数无效: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "抽取完成",
		Data:    h.fields.Extract(request.Lines),
	})
}
