package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"catalog_crawler_v1/internal/repository"
	"catalog_crawler_v1/internal/service"
)

// CatalogController 目录只读查询
type CatalogController struct {
	catalog *service.CatalogService
}

func NewCatalogController(catalog *service.CatalogService) *CatalogController {
	return &CatalogController{catalog: catalog}
}

// GetProducts 商品列表
// @Summary 商品分页列表 (按入库时间倒序)
// @Tags Catalog
// @Param page query int false "页码 (默认1)"
// @Param per_page query int false "每页数量 (默认20)"
// @Router /api/products [get]
func (h *CatalogController) GetProducts(c *gin.Context) {
	resp, err := h.catalog.ListProducts(c.Request.Context(), parsePagination(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": resp})
}

// GetProductOffers 某商品的报价记录
// @Summary 商品报价历史
// @Tags Catalog
// @Param id path string true "商品 ID"
// @Router /api/products/{id}/offers [get]
func (h *CatalogController) GetProductOffers(c *gin.Context) {
	resp, err := h.catalog.ListProductOffers(c.Request.Context(), c.Param("id"), parsePagination(c))
	if errors.Is(err, service.ErrProductNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "message": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": resp})
}

// GetSellers 卖家列表
// @Summary 卖家分页列表
// @Tags Catalog
// @Param search_name query string false "名称模糊搜索"
// @Router /api/sellers [get]
func (h *CatalogController) GetSellers(c *gin.Context) {
	resp, err := h.catalog.ListSellers(c.Request.Context(), repository.SellerFilter{
		Pagination: parsePagination(c),
		SearchName: c.Query("search_name"),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": resp})
}

// GetStructuredProducts 报价 + 商品 + 卖家联合视图
// @Summary 结构化商品列表
// @Tags Catalog
// @Param search_name query string false "匹配商品名、卖家名、城市"
// @Router /api/structured-products [get]
func (h *CatalogController) GetStructuredProducts(c *gin.Context) {
	resp, err := h.catalog.ListStructuredProducts(c.Request.Context(), repository.StructuredFilter{
		Pagination: parsePagination(c),
		SearchName: c.Query("search_name"),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": resp})
}

// ==================== 工具函数 ====================

// parsePagination 兼容 per_page / page_size
func parsePagination(c *gin.Context) repository.Pagination {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size := c.Query("per_page")
	if size == "" {
		size = c.DefaultQuery("page_size", "20")
	}
	pageSize, _ := strconv.Atoi(size)
	return repository.Pagination{Page: page, PageSize: pageSize}.Normalize()
}
