package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suturelab/tissuesim/internal/session"
	"github.com/suturelab/tissuesim/internal/store"
	"github.com/suturelab/tissuesim/internal/tissue"
)

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, store.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionExists),
		errors.Is(err, session.ErrLogIncomplete):
		return http.StatusConflict
	case errors.Is(err, session.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, tissue.ErrInvalidResolution),
		errors.Is(err, tissue.ErrInvalidSize),
		errors.Is(err, tissue.ErrInvalidMaterial),
		errors.Is(err, tissue.ErrUnknownMaterial),
		errors.Is(err, tissue.ErrUnknownTool):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errorStatus(err), gin.H{"error": err.Error()})
}

// liveSession resolves the :id path parameter, writing 404 when absent.
func liveSession(c *gin.Context, mgr *session.Manager) (*session.Session, bool) {
	s, err := mgr.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return s, true
}
