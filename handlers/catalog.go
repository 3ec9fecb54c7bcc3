package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/shop_backend/models"
)

func listCategoriesHandler(c *gin.Context) {
	results, err := models.ListCategories(c.Request.Context(), queryString(c, "name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func getCategoryHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := models.GetCategory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func createCategoryHandler(c *gin.Context) {
	var input models.NewCategory
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	result, err := models.CreateCategory(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func updateCategoryHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var input models.NewCategory
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	result, err := models.UpdateCategory(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func deleteCategoryHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := models.DeleteCategory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func listSubCategoriesHandler(c *gin.Context) {
	var query struct {
		CategoryId *int `form:"category_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err)
		return
	}
	results, err := models.ListSubCategories(c.Request.Context(), query.CategoryId, queryString(c, "name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func getSubCategoryHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := models.GetSubCategory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func createSubCategoryHandler(c *gin.Context) {
	var input models.NewSubCategory
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	result, err := models.CreateSubCategory(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func updateSubCategoryHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var input models.NewSubCategory
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	result, err := models.UpdateSubCategory(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func deleteSubCategoryHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := models.DeleteSubCategory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func listProductsHandler(c *gin.Context) {
	var filter models.ProductFilter
	var page pageQuery
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, err)
		return
	}
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, err)
		return
	}
	if page.paginated() {
		conn, err := models.PaginateProducts(c.Request.Context(), page.Limit, page.After, &filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, conn)
		return
	}
	results, err := models.ListProducts(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func lowStockProductsHandler(c *gin.Context) {
	var query struct {
		Threshold *int `form:"threshold"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err)
		return
	}
	results, err := models.ListLowStockProducts(c.Request.Context(), query.Threshold)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func getProductHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := models.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func createProductHandler(c *gin.Context) {
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	result, err := models.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func updateProductHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	result, err := models.UpdateProduct(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func deleteProductHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := models.DeleteProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
