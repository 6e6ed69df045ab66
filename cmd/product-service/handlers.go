package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/MikeMC777/product-service/internal/httpx"
	prod "github.com/MikeMC777/product-service/internal/product"
)

func newRouter(svc *prod.Service, store prod.Store, metrics http.Handler, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(log))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/readyz", readyHandler(store))
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/products", listProductsHandler(svc))
	r.GET("/products/:id", getProductHandler(svc))
	r.POST("/products", createProductHandler(svc))
	r.PUT("/products/:id", updateProductHandler(svc))
	r.DELETE("/products/:id", deleteProductHandler(svc))
	return r
}

// createProductHandler godoc
// @Summary      Create a product
// @Description  Registers a new product in the system
// @Tags         Products
// @Accept       json
// @Produce      json
// @Param        product  body      prod.ProductRequest  true  "Product to create"
// @Success      201      {object}  prod.ProductResponse
// @Failure      400      {object}  prod.HTTPError
// @Failure      500      {object}  prod.HTTPError
// @Router       /products [post]
func createProductHandler(svc *prod.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req prod.ProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, prod.HTTPError{Error: err.Error()})
			return
		}
		resp, err := svc.Create(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, resp)
	}
}

// listProductsHandler godoc
// @Summary      List all products
// @Description  Returns a list of all products
// @Tags         Products
// @Produce      json
// @Success      200  {array}   prod.ProductResponse
// @Failure      500  {object}  prod.HTTPError
// @Router       /products [get]
func listProductsHandler(svc *prod.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := svc.ListAll(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// getProductHandler godoc
// @Summary      Get product by id
// @Description  Returns a product by its id
// @Tags         Products
// @Produce      json
// @Param        id   path      int  true  "Product ID"
// @Success      200  {object}  prod.ProductResponse
// @Failure      400  {object}  prod.HTTPError
// @Failure      404  {object}  prod.HTTPError
// @Router       /products/{id} [get]
func getProductHandler(svc *prod.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		resp, err := svc.FindByID(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// updateProductHandler godoc
// @Summary      Update a product
// @Description  Updates an existing product by id
// @Tags         Products
// @Accept       json
// @Produce      json
// @Param        id       path      int                  true  "Product ID"
// @Param        product  body      prod.ProductRequest  true  "New product state"
// @Success      200      {object}  prod.ProductResponse
// @Failure      400      {object}  prod.HTTPError
// @Failure      404      {object}  prod.HTTPError
// @Router       /products/{id} [put]
func updateProductHandler(svc *prod.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req prod.ProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, prod.HTTPError{Error: err.Error()})
			return
		}
		resp, err := svc.Update(c.Request.Context(), id, req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// deleteProductHandler godoc
// @Summary      Delete a product
// @Description  Deletes a product by its id
// @Tags         Products
// @Param        id   path      int  true  "Product ID"
// @Success      204
// @Failure      400  {object}  prod.HTTPError
// @Failure      404  {object}  prod.HTTPError
// @Router       /products/{id} [delete]
func deleteProductHandler(svc *prod.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func readyHandler(store prod.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Ping(c.Request.Context()); err != nil {
			_ = c.Error(err)
			c.String(http.StatusServiceUnavailable, "store unavailable")
			return
		}
		c.String(http.StatusOK, "ok")
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, prod.HTTPError{Error: "invalid product id"})
		return 0, false
	}
	return id, true
}

// writeError maps service error kinds to status codes. Unclassified errors
// are attached to the context for the request logger and hidden from the
// client.
func writeError(c *gin.Context, err error) {
	switch prod.KindOf(err) {
	case prod.KindNotFound:
		c.JSON(http.StatusNotFound, prod.HTTPError{Error: err.Error()})
	case prod.KindValidation:
		c.JSON(http.StatusBadRequest, prod.HTTPError{Error: err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, prod.HTTPError{Error: "internal server error"})
	}
}
