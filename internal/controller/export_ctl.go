package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"retail_recrawl_v1/internal/service"
)

type ExportController struct {
	exportSvc *service.ExportService
}

func NewExportController(exportSvc *service.ExportService) *ExportController {
	return &ExportController{exportSvc: exportSvc}
}

// GetExport 导出校验
// 校验全部通过返回 200；有商品被排除时返回 422，data 中仍带通过部分与拒绝原因
// @Router /api/stores/{store}/export [get]
func (ctrl *ExportController) GetExport(c *gin.Context) {
	catalog, err := ctrl.exportSvc.PrepareStore(c.Request.Context(), c.Param("store"))
	if catalog == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "导出失败: " + err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":    422,
			"message": "导出校验未通过",
			"data":    catalog,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": catalog})
}
