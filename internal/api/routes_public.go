package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eolink-project/eolink/internal/util"
	"github.com/eolink-project/eolink/pkg/encrypt"
	"github.com/eolink-project/eolink/pkg/sequence"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "eolink",
		"version": util.Version,
	})
}

// handleInfo returns the version, host details and codec defaults.
func (s *Server) handleInfo(c *gin.Context) {
	codec := s.cfg.GetCodec()
	c.JSON(http.StatusOK, gin.H{
		"version": util.Version,
		"host":    util.GetHostInfo(),
		"codec": gin.H{
			"send_multiple":     codec.SendMultiple,
			"recv_multiple":     codec.RecvMultiple,
			"capture_direction": codec.Direction,
			"strict_sequence":   codec.StrictSequence,
			"swap_multiple_min": encrypt.MinSwapMultiple,
			"swap_multiple_max": encrypt.MaxSwapMultiple,
			"sequence_modulus":  sequence.Modulus,
		},
	})
}
