package main

import (
	"context"
	"net/http"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/recount_backend/config"
	"github.com/mmdatafocus/recount_backend/models"
	"github.com/mmdatafocus/recount_backend/utils"
	"github.com/mmdatafocus/recount_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type apiHandler struct {
	db     *gorm.DB
	locker *redislock.Client
	logger *logrus.Logger
}

// writeError translates business failures to the uniform {code, message}
// envelope. Unclassified errors become opaque 500s and are logged with
// enough context to diagnose server-side.
func (h *apiHandler) writeError(c *gin.Context, operation string, key string, start time.Time, err error) {
	if appErr, ok := utils.AsAppError(err); ok {
		c.JSON(utils.HTTPStatus(appErr), appErr)
		return
	}
	h.logger.WithFields(logrus.Fields{
		"module":    "handlers",
		"funcName":  operation,
		"key":       key,
		"elapsedMs": time.Since(start).Milliseconds(),
	}).Error(err.Error())
	c.JSON(http.StatusInternalServerError, &utils.AppError{
		Code:    utils.ErrorCodeInternal,
		Message: "internal error",
	})
}

func requestContext(c *gin.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), budget)
}

func (h *apiHandler) importDocument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		var input workflow.ImportDocumentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, utils.BadRequest("invalid import payload: %s", err.Error()))
			return
		}

		ctx, cancel := requestContext(c, config.ImportTimeout())
		defer cancel()

		doc, err := workflow.ImportDocument(ctx, h.db, h.locker, h.logger, &input)
		if err != nil {
			h.writeError(c, "importDocument", input.ExternalId, start, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func (h *apiHandler) getDocument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		key := c.Param("key")

		ctx, cancel := requestContext(c, config.StatusTimeout())
		defer cancel()

		var doc *models.Document
		err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			id, err := models.ResolveDocumentID(tx, key)
			if err != nil {
				return err
			}
			doc, err = models.GetDocument(tx, id)
			return err
		})
		if err != nil {
			h.writeError(c, "getDocument", key, start, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func (h *apiHandler) listWarehouseDocuments() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		code := c.Param("code")

		ctx, cancel := requestContext(c, config.StatusTimeout())
		defer cancel()

		docs, err := models.ListDocumentsByWarehouse(h.db.WithContext(ctx), code)
		if err != nil {
			h.writeError(c, "listWarehouseDocuments", code, start, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs})
	}
}

func (h *apiHandler) updateItems() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		key := c.Param("key")
		var input workflow.UpdateItemsInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, utils.BadRequest("invalid update payload: %s", err.Error()))
			return
		}

		ctx, cancel := requestContext(c, config.UpdateTimeout())
		defer cancel()

		doc, err := workflow.UpdateItems(ctx, h.db, key, &input)
		if err != nil {
			h.writeError(c, "updateItems", key, start, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func (h *apiHandler) mergeItems() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		key := c.Param("key")
		var input workflow.MergeItemsInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, utils.BadRequest("invalid update payload: %s", err.Error()))
			return
		}
		if input.DeviceId == "" {
			if deviceId, ok := utils.GetDeviceIdFromContext(c.Request.Context()); ok {
				input.DeviceId = deviceId
			}
		}

		ctx, cancel := requestContext(c, config.UpdateTimeout())
		defer cancel()

		result, err := workflow.MergeItems(ctx, h.db, key, &input)
		if err != nil {
			h.writeError(c, "mergeItems", key, start, err)
			return
		}
		// Partial success (informational conflicts) is distinct from full success.
		status := http.StatusOK
		if len(result.Conflicts) > 0 {
			status = http.StatusPartialContent
		}
		c.JSON(status, result)
	}
}

func (h *apiHandler) listItemsWithTimestamps() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		key := c.Param("key")

		ctx, cancel := requestContext(c, config.StatusTimeout())
		defer cancel()

		items, err := workflow.ListItemsWithTimestamps(ctx, h.db, key)
		if err != nil {
			h.writeError(c, "listItemsWithTimestamps", key, start, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func (h *apiHandler) reviseDocument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		key := c.Param("key")

		ctx, cancel := requestContext(c, config.StatusTimeout())
		defer cancel()

		result, err := workflow.ReviseDocument(ctx, h.db, key)
		if err != nil {
			h.writeError(c, "reviseDocument", key, start, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (h *apiHandler) exportDocument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		key := c.Param("key")

		ctx, cancel := requestContext(c, config.UpdateTimeout())
		defer cancel()

		payload, err := workflow.ExportDocument(ctx, h.db, key)
		if err != nil {
			h.writeError(c, "exportDocument", key, start, err)
			return
		}
		c.JSON(http.StatusOK, payload)
	}
}

func (h *apiHandler) acknowledgeDocument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		key := c.Param("key")

		ctx, cancel := requestContext(c, config.StatusTimeout())
		defer cancel()

		if err := workflow.AcknowledgeDocument(ctx, h.db, key); err != nil {
			h.writeError(c, "acknowledgeDocument", key, start, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
