package http

import (
	"net/http"

	"github.com/dkeye/Jukebox/internal/app/orch"
	"github.com/dkeye/Jukebox/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type roomsHandler struct {
	orch *orch.Orchestrator
}

func (h roomsHandler) list(c *gin.Context) {
	dir, err := h.orch.Directory(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("list rooms")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rooms"})
		return
	}
	c.JSON(http.StatusOK, dir)
}

func (h roomsHandler) get(c *gin.Context) {
	snap, err := h.orch.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": domain.MessageOf(err)})
		case domain.KindUnknown:
			log.Error().Err(err).Str("module", "adapters.http").Str("room", c.Param("id")).Msg("get room")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": domain.MessageOf(err)})
		}
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h roomsHandler) health(c *gin.Context) {
	conns, rooms := h.orch.Stats()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": conns, "rooms": rooms})
}
