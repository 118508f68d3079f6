package main

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"menuprice/pkg/dberr"
	"menuprice/pkg/imagestore"
	"menuprice/pkg/ledger"
	"menuprice/pkg/menuimage"
	"menuprice/pkg/ocr"
	"menuprice/pkg/pipeline"
	"menuprice/pkg/reconcile"
	"menuprice/pkg/region"
)

func (a *app) setupRoutes(r *gin.Engine) {
	registerValidators()
	r.GET("/healthz", a.healthHandler)
	r.POST("/register", a.registerHandler)
	r.POST("/login", a.loginHandler)
	r.POST("/refresh", a.refreshHandler)
	r.POST("/revoke_refresh", a.revokeRefreshHandler)
	if a.cfg.StorageBackend == "local" {
		r.Static("/uploads", a.cfg.UploadBase)
	}

	authGroup := r.Group("")
	authGroup.Use(a.jwtAuthMiddleware())
	authGroup.GET("/me", a.meHandler)
	authGroup.POST("/images", a.uploadImageHandler)
	authGroup.GET("/images/:id", a.getImageHandler)
	authGroup.PATCH("/images/:id", a.updateImageHandler)
	authGroup.POST("/images/:id/regions", a.addRegionHandler)
	authGroup.GET("/images/:id/regions", a.listRegionsHandler)
	authGroup.PUT("/regions/:id", a.moveRegionHandler)
	authGroup.DELETE("/regions/:id", a.removeRegionHandler)
	authGroup.POST("/images/:id/detect", a.detectPricesHandler)
	authGroup.POST("/images/:id/prices", a.submitPricesHandler)
	authGroup.GET("/images/:id/prices", a.imageHistoryHandler)
	authGroup.GET("/regions/:id/prices", a.regionHistoryHandler)
}

// writeError maps domain errors to HTTP statuses.
func (a *app) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, region.ErrInvalidGeometry), errors.Is(err, reconcile.ErrInvalidPriceFormat):
		status = http.StatusBadRequest
	case errors.Is(err, region.ErrImageNotFound), errors.Is(err, region.ErrRegionNotFound), errors.Is(err, imagestore.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, region.ErrDuplicateRegion), errors.Is(err, region.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, imagestore.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, imagestore.ErrUnsupportedType):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, ledger.ErrPersistenceUnavailable), dberr.IsUnavailable(err):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		a.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "reason": pipeline.ReasonCode(err)})
}

func idParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func (a *app) healthHandler(c *gin.Context) {
	if a.ping != nil {
		if err := a.ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// uploadImageHandler registers a menu image from a multipart "file" upload or
// from a JSON {"image_url": ...} body.
func (a *app) uploadImageHandler(c *gin.Context) {
	ctx := c.Request.Context()
	user := c.GetString("username")
	mediaType, _, _ := mime.ParseMediaType(c.ContentType())

	var ref string
	var data []byte
	if mediaType == "multipart/form-data" {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.cfg.MaxUploadBytes+1<<20)
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fh.Size > a.cfg.MaxUploadBytes {
			a.writeError(c, imagestore.ErrTooLarge)
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
			return
		}
		data, err = io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
			return
		}
		if _, err := imagestore.DetectImageType(data); err != nil {
			a.writeError(c, err)
			return
		}
		if ref, err = a.store.Put(ctx, fh.Filename, data); err != nil {
			a.writeError(c, err)
			return
		}
	} else {
		var req struct {
			ImageURL string `json:"image_url" binding:"required,url"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var err error
		if data, err = a.store.Open(ctx, req.ImageURL); err != nil {
			a.writeError(c, err)
			return
		}
		ref = req.ImageURL
	}

	img, err := menuimage.Register(ctx, a.images, ref, data, user)
	if err != nil {
		a.writeError(c, err)
		return
	}
	a.log.Info("menu image registered", "image", img.ID, "ref", ref, "size", len(data), "by", user)
	c.JSON(http.StatusCreated, img)
}

func (a *app) getImageHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	img, err := a.images.Get(c.Request.Context(), id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, img)
}

func (a *app) updateImageHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		ProcessedImageURL string `json:"processed_image_url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	img, err := a.images.SetProcessedURL(c.Request.Context(), id, req.ProcessedImageURL)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, img)
}

func (a *app) addRegionHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var rect region.Rect
	if err := c.ShouldBindJSON(&rect); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reg, err := a.regions.Add(c.Request.Context(), id, rect)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reg)
}

func (a *app) listRegionsHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := a.images.Get(ctx, id); err != nil {
		a.writeError(c, err)
		return
	}
	regs, err := a.regions.List(ctx, id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, regs)
}

func (a *app) moveRegionHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var rect region.Rect
	if err := c.ShouldBindJSON(&rect); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reg, err := a.pipeline.MoveRegion(c.Request.Context(), id, rect)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

func (a *app) removeRegionHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := a.pipeline.RemoveRegion(c.Request.Context(), id); err != nil {
		a.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// detectPricesHandler recognizes price tokens inside one rectangle without
// recording anything.
func (a *app) detectPricesHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var rect region.Rect
	if err := c.ShouldBindJSON(&rect); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	img, err := a.images.Get(ctx, id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if err := rect.CheckBounds(img.Width, img.Height); err != nil {
		a.writeError(c, err)
		return
	}
	tokens, err := a.ocr.Recognize(ctx, img.OriginalImageURL, rect)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if tokens == nil {
		tokens = []ocr.Token{}
	}
	resp := gin.H{"tokens": tokens, "price": nil}
	if best := reconcile.BestToken(tokens, ""); best != nil {
		resp["price"] = best.Text
	}
	c.JSON(http.StatusOK, resp)
}

type priceUpdateEntry struct {
	RegionID      string       `json:"region_id" binding:"omitempty,uuid"`
	Coordinates   *region.Rect `json:"coordinates" binding:"required_without=RegionID"`
	OriginalPrice string       `json:"original_price" binding:"omitempty,price"`
	NewPrice      string       `json:"new_price" binding:"omitempty,price"`
	Reject        bool         `json:"reject"`
}

type submitPricesRequest struct {
	PriceUpdates []priceUpdateEntry `json:"price_updates" binding:"required,min=1,max=500,dive"`
}

func (a *app) submitPricesHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req submitPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	img, err := a.images.Get(ctx, id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	items := make([]pipeline.Submission, len(req.PriceUpdates))
	for i, e := range req.PriceUpdates {
		items[i] = pipeline.Submission{
			Rect:          e.Coordinates,
			OriginalPrice: e.OriginalPrice,
			NewPrice:      e.NewPrice,
			Reject:        e.Reject,
		}
		if e.RegionID != "" {
			items[i].RegionID = uuid.MustParse(e.RegionID)
		}
	}
	res := a.pipeline.Submit(ctx, pipeline.Request{
		ImageID:     img.ID,
		ImageRef:    img.OriginalImageURL,
		SubmittedBy: c.GetString("username"),
		Items:       items,
	})
	c.JSON(http.StatusOK, res)
}

func (a *app) imageHistoryHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := a.images.Get(ctx, id); err != nil {
		a.writeError(c, err)
		return
	}
	list, err := a.ledger.ListByImage(ctx, id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (a *app) regionHistoryHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	list, err := a.ledger.ListByRegion(c.Request.Context(), id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
