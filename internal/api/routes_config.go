package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/eolink-project/eolink/internal/config"
	"github.com/eolink-project/eolink/internal/events"
)

// handleGetConfig returns the current configuration with secrets masked.
func (s *Server) handleGetConfig(c *gin.Context) {
	app := s.cfg.GetApplicationData()
	if app.Security.APIToken != "" {
		app.Security.APIToken = "********"
	}
	c.JSON(http.StatusOK, gin.H{
		"codec":            s.cfg.GetCodec(),
		"application_data": app,
	})
}

// handleSetCodec replaces the codec defaults. The update is rolled back
// when the result does not validate.
func (s *Server) handleSetCodec(c *gin.Context) {
	previous := s.cfg.GetCodec()
	codec := previous
	if err := c.ShouldBindJSON(&codec); err != nil {
		badRequest(c, err)
		return
	}

	s.cfg.SetCodec(codec)
	if result := config.Validate(s.cfg); !result.IsValid() {
		s.cfg.SetCodec(previous)
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "invalid codec settings",
			"errors": result.Errors,
		})
		return
	}

	if err := s.cfg.Save(); err != nil {
		log.Error().Err(err).Msg("API: failed to save config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save config"})
		return
	}

	s.eventBus.Emit(c.Request.Context(), events.NewEvent(events.EventConfigChanged, "api",
		events.ConfigChangedPayload{Section: "codec", Value: codec}))

	log.Info().
		Int("send_multiple", codec.SendMultiple).
		Int("recv_multiple", codec.RecvMultiple).
		Str("direction", codec.Direction).
		Msg("API: codec settings updated")

	c.JSON(http.StatusOK, gin.H{
		"status": "updated",
		"codec":  s.cfg.GetCodec(),
	})
}
