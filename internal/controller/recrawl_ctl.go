package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"retail_recrawl_v1/internal/model"
	"retail_recrawl_v1/internal/reconcile"
	"retail_recrawl_v1/internal/repository"
	"retail_recrawl_v1/internal/service"
	"retail_recrawl_v1/internal/supplier"
	"retail_recrawl_v1/internal/task"
)

// RecrawlTrigger 手动触发重抓
type RecrawlTrigger interface {
	TriggerRecrawl(ctx context.Context, storeID string) (*reconcile.Report, error)
	TriggerAllRecrawl() ([]string, error)
}

type RecrawlController struct {
	trigger    RecrawlTrigger
	recrawlSvc *service.RecrawlService
	exportSvc  *service.ExportService
}

func NewRecrawlController(trigger RecrawlTrigger, recrawlSvc *service.RecrawlService, exportSvc *service.ExportService) *RecrawlController {
	return &RecrawlController{trigger: trigger, recrawlSvc: recrawlSvc, exportSvc: exportSvc}
}

// ==================== 触发接口 ====================

// TriggerRecrawl 立即重抓店铺
// @Summary 手动触发一次重抓对账，返回差异汇总
// @Tags Recrawl
// @Param store path string true "店铺ID"
// @Router /api/stores/{store}/recrawl [post]
func (ctrl *RecrawlController) TriggerRecrawl(c *gin.Context) {
	storeID := c.Param("store")

	report, err := ctrl.trigger.TriggerRecrawl(c.Request.Context(), storeID)
	switch {
	case errors.Is(err, supplier.ErrUnknownStore):
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "message": "店铺未配置商品源"})
		return
	case errors.Is(err, service.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"code": 409, "message": "该店铺正在重抓"})
		return
	case errors.Is(err, task.ErrTaskDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": 503, "message": "重抓任务未启用"})
		return
	case err != nil:
		resp := gin.H{"code": 500, "message": "重抓失败: " + err.Error()}
		if report != nil {
			resp["data"] = reportResp(report)
		}
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	data := reportResp(report)
	if ctrl.exportSvc != nil {
		// 本次差异的导出校验结果，不影响重抓本身的成功
		catalog, _ := ctrl.exportSvc.Prepare(report)
		data["export"] = gin.H{
			"product_count": catalog.ProductCount,
			"variant_count": catalog.VariantCount,
			"rejected":      catalog.Rejected,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    data,
	})
}

// TriggerAllRecrawl 异步重抓所有店铺
// @Summary 触发全部店铺重抓，立即返回
// @Tags Recrawl
// @Router /api/stores/recrawl [post]
func (ctrl *RecrawlController) TriggerAllRecrawl(c *gin.Context) {
	stores, err := ctrl.trigger.TriggerAllRecrawl()
	if errors.Is(err, task.ErrTaskDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": 503, "message": "重抓任务未启用"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "触发失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"code":    0,
		"message": "已开始重抓",
		"data":    gin.H{"stores": stores},
	})
}

func reportResp(r *reconcile.Report) gin.H {
	return gin.H{
		"store_id": r.StoreID,
		"run_id":   r.RunID,
		"summary":  r.Summary,
		"issues":   r.Issues,
	}
}

// ==================== 查询接口 ====================

// GetRuns 店铺最近的运行记录
// @Router /api/stores/{store}/runs [get]
func (ctrl *RecrawlController) GetRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := ctrl.recrawlSvc.ListRuns(c.Request.Context(), c.Param("store"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "查询失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": runs})
}

// GetRun 运行记录详情
// @Router /api/runs/{id} [get]
func (ctrl *RecrawlController) GetRun(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "无效的运行ID"})
		return
	}

	run, err := ctrl.recrawlSvc.GetRun(c.Request.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "message": "运行记录不存在"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "查询失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": run})
}

// GetProducts 按最近一次操作类型查询商品
// @Param operation query string false "INSERT/UPDATE/DELETE/NO_CHANGE"
// @Param status query string false "ACTIVE/DELETED"
// @Router /api/stores/{store}/products [get]
func (ctrl *RecrawlController) GetProducts(c *gin.Context) {
	filter := repository.ProductFilter{StoreID: c.Param("store")}

	if op := c.Query("operation"); op != "" {
		filter.Operation = model.OperationType(op)
		if !filter.Operation.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "无效的 operation"})
			return
		}
	}
	if status := c.Query("status"); status != "" {
		filter.Status = model.RecordStatus(status)
		if filter.Status != model.StatusActive && filter.Status != model.StatusDeleted {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "无效的 status"})
			return
		}
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	products, total, err := ctrl.recrawlSvc.ListProducts(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "查询失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":      0,
		"message":   "success",
		"data":      products,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

// GetStats 店铺商品状态统计
// @Router /api/stores/{store}/stats [get]
func (ctrl *RecrawlController) GetStats(c *gin.Context) {
	stats, err := ctrl.recrawlSvc.CatalogStats(c.Request.Context(), c.Param("store"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "查询失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": stats})
}
