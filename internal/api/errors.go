package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/workyard/internal/apperr"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindDependency:
		return http.StatusConflict
	case apperr.KindAlreadyDone:
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// writeErr renders err as JSON. An already-done error is a success carrying
// a note.
func writeErr(c *gin.Context, err error) {
	if note, ok := apperr.Note(err); ok {
		c.JSON(http.StatusOK, gin.H{"note": note})
		return
	}
	k := apperr.KindOf(err)
	c.JSON(statusFor(k), gin.H{"error": err.Error(), "kind": k.String()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
