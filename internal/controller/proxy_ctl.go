package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"catalog_crawler_v1/internal/api/dto"
	"catalog_crawler_v1/internal/repository"
	"catalog_crawler_v1/internal/service"
)

type ProxyController struct {
	proxyService *service.ProxyService
}

func NewProxyController(proxyService *service.ProxyService) *ProxyController {
	return &ProxyController{proxyService: proxyService}
}

// ==========================================
// 1. 写操作
// ==========================================

// Create 录入代理
// @Summary 录入代理 IP
// @Description 录入新的代理 IP，需保证 IP+Port 唯一
// @Tags Proxy
// @Accept json
// @Produce json
// @Param request body dto.CreateProxyReq true "创建参数"
// @Failure 400 {object} map[string]string "参数错误"
// @Failure 409 {object} map[string]string "IP+Port 已存在"
// @Router /api/proxies [post]
func (h *ProxyController) Create(c *gin.Context) {
	var req dto.CreateProxyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": err.Error()})
		return
	}

	proxy, err := h.proxyService.CreateProxy(c.Request.Context(), req)
	if errors.Is(err, service.ErrProxyExists) {
		c.JSON(http.StatusConflict, gin.H{"code": 409, "message": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": gin.H{"id": proxy.ID}})
}

// ==========================================
// 2. 读操作
// ==========================================

// GetList 获取代理列表
// @Summary 获取代理分页列表
// @Tags Proxy
// @Param page query int false "页码 (默认1)"
// @Param page_size query int false "每页数量 (默认20)"
// @Param ip query string false "IP 模糊搜索"
// @Param status query int false "状态 (1:正常 2:不稳定 3:死亡)"
// @Router /api/proxies [get]
func (h *ProxyController) GetList(c *gin.Context) {
	status, _ := strconv.Atoi(c.Query("status"))

	filter := repository.ProxyFilter{
		Pagination: parsePagination(c),
		IP:         c.Query("ip"),
		Status:     status,
	}

	list, total, err := h.proxyService.GetProxyList(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": dto.PageResp{List: list, Total: total, Page: filter.Page, PageSize: filter.PageSize},
	})
}
