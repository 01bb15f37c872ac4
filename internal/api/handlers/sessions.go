package handlers

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suturelab/tissuesim/internal/heatmap"
	"github.com/suturelab/tissuesim/internal/models"
	"github.com/suturelab/tissuesim/internal/session"
	"github.com/suturelab/tissuesim/internal/tissue"
)

// SummaryCache looks up sessions hosted by other instances.
type SummaryCache interface {
	CachedSummary(ctx context.Context, sessionID string) (*session.Summary, error)
}

type createSessionRequest struct {
	ID         string                 `json:"id,omitempty"`
	Material   string                 `json:"material" binding:"required"`
	Origin     tissue.Vec3            `json:"origin"`
	Size       *tissue.Vec3           `json:"size,omitempty"`
	Resolution *tissue.GridResolution `json:"resolution,omitempty"`
	Seed       uint64                 `json:"seed"`
}

var (
	defaultSize       = tissue.NewVec3(1, 1, 1)
	defaultResolution = tissue.GridResolution{X: 8, Y: 8, Z: 8}
)

// CreateSession builds a body and starts its frame loop
func CreateSession(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. material is required."})
			return
		}

		params := tissue.BodyParams{
			Origin:     req.Origin,
			Size:       defaultSize,
			Resolution: defaultResolution,
			Material:   req.Material,
			Seed:       req.Seed,
		}
		if req.Size != nil {
			params.Size = *req.Size
		}
		if req.Resolution != nil {
			params.Resolution = *req.Resolution
		}

		s, err := mgr.Create(c.Request.Context(), session.CreateRequest{ID: req.ID, Params: params})
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Header("X-Session-ID", s.ID)
		c.JSON(http.StatusCreated, s.Summary())
	}
}

// ListSessions returns every session live on this instance
func ListSessions(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": mgr.List()})
	}
}

// GetSession returns a session summary, falling back to the shared cache
// for sessions hosted elsewhere.
func GetSession(mgr *session.Manager, cache SummaryCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if s, err := mgr.Get(id); err == nil {
			c.JSON(http.StatusOK, gin.H{"live": true, "summary": s.Summary()})
			return
		}
		if cache != nil {
			if sum, err := cache.CachedSummary(c.Request.Context(), id); err == nil {
				c.JSON(http.StatusOK, gin.H{"live": false, "summary": sum})
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found: " + id})
	}
}

// DeleteSession stops a session and returns its final summary
func DeleteSession(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sum, err := mgr.Close(c.Request.Context(), c.Param("id"), models.SessionClosed)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}

// ApplyContact resolves one tool contact against a live session
func ApplyContact(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := liveSession(c, mgr)
		if !ok {
			return
		}

		var contact tissue.ToolContact
		if err := c.ShouldBindJSON(&contact); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contact: " + err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		ev, err := s.Submit(ctx, contact)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("[API] contact for %s timed out: %v", s.ID, err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session busy"})
				return
			}
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, ev)
	}
}

// GetSnapshot returns per-node position, velocity and stress
func GetSnapshot(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := liveSession(c, mgr)
		if !ok {
			return
		}
		f := s.Frame()
		c.Header("X-Frame", strconv.FormatUint(f.Frame, 10))
		c.JSON(http.StatusOK, gin.H{
			"frame":  f.Frame,
			"time":   f.Time,
			"nodes":  f.Nodes,
			"damage": f.Damage,
		})
	}
}

// GetMarkers returns the live damage markers
func GetMarkers(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := liveSession(c, mgr)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"markers": s.Markers()})
	}
}

// GetBlood returns the live blood particles
func GetBlood(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := liveSession(c, mgr)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"particles": s.Blood()})
	}
}

// GetEvents returns the contact log, from memory or from the store
func GetEvents(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := mgr.Events(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	}
}

// ReplaySession rebuilds a session from its recorded contacts. Closed
// sessions are read back from the store.
func ReplaySession(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := mgr.Audit(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		if report.Matches != nil && !*report.Matches {
			log.Printf("[AUDIT] %s replay diverged from the live session at frame %d", report.SessionID, report.Frame)
		}
		c.JSON(http.StatusOK, report)
	}
}

// GetHeatmap renders the top-down damage map as WebP. ?size= overrides
// the configured edge length within [16, 1024].
func GetHeatmap(mgr *session.Manager, defaultSize int) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := liveSession(c, mgr)
		if !ok {
			return
		}

		size := defaultSize
		if q := c.Query("size"); q != "" {
			n, err := strconv.Atoi(q)
			if err != nil || n < 16 || n > 1024 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "size must be an integer in [16, 1024]"})
				return
			}
			size = n
		}

		material, err := mgr.Registry().Lookup(s.Params().Material)
		if err != nil {
			abortWithError(c, err)
			return
		}

		var buf bytes.Buffer
		if err := heatmap.Encode(&buf, s.DamageLevels(), s.Params().Resolution, material.MaxDamage, size); err != nil {
			log.Printf("[API] heatmap for %s failed: %v", s.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render heatmap"})
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "image/webp", buf.Bytes())
	}
}
