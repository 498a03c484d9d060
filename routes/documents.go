package routes

import (
	"errors"
	"net/http"

	"legal-docs-rag/services"
	"legal-docs-rag/utils"

	"github.com/gin-gonic/gin"
)

// SetupDocumentRoutes registers document management endpoints.
func SetupDocumentRoutes(router *gin.Engine, store services.DocumentStore) {
	api := router.Group("/api")
	{
		api.GET("/documents", ListDocuments(store))
		api.GET("/documents/:id", GetDocument(store))
		api.DELETE("/documents/:id", DeleteDocument(store))
	}
}

// ListDocuments returns every ingested document with its status.
func ListDocuments(store services.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		docs, err := store.ListDocuments(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list documents", err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"documents": docs,
			"total":     len(docs),
		})
	}
}

// GetDocument returns one document record by ID.
func GetDocument(store services.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := store.GetDocument(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to retrieve document", err.Error())
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

// DeleteDocument removes a document and all of its chunks.
func DeleteDocument(store services.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := store.DeleteDocument(c.Request.Context(), id); err != nil {
			if errors.Is(err, services.ErrNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to delete document", err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":     "Document deleted",
			"document_id": id,
		})
	}
}
