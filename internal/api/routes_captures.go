package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/eolink-project/eolink/internal/capture"
	"github.com/eolink-project/eolink/internal/events"
	"github.com/eolink-project/eolink/internal/inspect"
	"github.com/eolink-project/eolink/internal/util"
)

// packetView is a stored packet as the API returns it.
type packetView struct {
	ID        int64          `json:"id"`
	Index     int64          `json:"index"`
	Name      string         `json:"name"`
	Family    byte           `json:"family"`
	Action    byte           `json:"action"`
	Sequence  int            `json:"sequence"`
	Verdict   events.Verdict `json:"verdict"`
	Error     string         `json:"error,omitempty"`
	Raw       string         `json:"raw"`
	Plain     string         `json:"plain"`
	CreatedAt time.Time      `json:"created_at"`
}

func newPacketView(p *capture.Packet) packetView {
	return packetView{
		ID:        p.ID,
		Index:     p.Index,
		Name:      inspect.PacketName(p.Family, p.Action),
		Family:    p.Family,
		Action:    p.Action,
		Sequence:  p.Sequence,
		Verdict:   p.Verdict,
		Error:     p.Error,
		Raw:       util.FormatBytes(p.Raw),
		Plain:     util.FormatBytes(p.Plain),
		CreatedAt: p.CreatedAt,
	}
}

func sessionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid capture id"})
		return 0, false
	}
	return id, true
}

func (s *Server) handleListCaptures(c *gin.Context) {
	sessions, err := s.bench.Store().ListSessions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"captures": sessions,
		"total":    len(sessions),
	})
}

type createCaptureRequest struct {
	Name          string `json:"name" binding:"required"`
	Direction     string `json:"direction"`
	SendMultiple  *int   `json:"send_multiple"`
	RecvMultiple  *int   `json:"recv_multiple"`
	SequenceStart *int   `json:"sequence_start"`
	Notes         string `json:"notes"`
}

// handleCreateCapture creates a capture session. Fields left out fall back
// to the codec defaults from the configuration.
func (s *Server) handleCreateCapture(c *gin.Context) {
	var req createCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	codec := s.cfg.GetCodec()
	sess := capture.Session{
		Name:          req.Name,
		Direction:     codec.Direction,
		SendMultiple:  codec.SendMultiple,
		RecvMultiple:  codec.RecvMultiple,
		SequenceStart: codec.SequenceStart,
		Notes:         req.Notes,
	}
	if req.Direction != "" {
		sess.Direction = req.Direction
	}
	if req.SendMultiple != nil {
		sess.SendMultiple = *req.SendMultiple
	}
	if req.RecvMultiple != nil {
		sess.RecvMultiple = *req.RecvMultiple
	}
	if req.SequenceStart != nil {
		sess.SequenceStart = *req.SequenceStart
	}

	created, err := s.bench.CreateSession(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleGetCapture(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	sess, err := s.bench.Store().GetSession(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleDeleteCapture(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if err := s.bench.DeleteSession(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
}

func (s *Server) handleListPackets(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}

	ctx := c.Request.Context()
	if _, err := s.bench.Store().GetSession(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	packets, err := s.bench.Store().ListPackets(ctx, id, offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]packetView, len(packets))
	for i := range packets {
		views[i] = newPacketView(&packets[i])
	}
	c.JSON(http.StatusOK, gin.H{
		"packets": views,
		"count":   len(views),
		"offset":  offset,
	})
}

type importRequest struct {
	Packets []byteList `json:"packets" binding:"required"`
}

// handleImportPackets decodes and stores packets in order. It stops at
// the first packet the workbench refuses and reports how many went in.
func (s *Server) handleImportPackets(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	views := make([]packetView, 0, len(req.Packets))
	for i, raw := range req.Packets {
		p, err := s.bench.Import(c.Request.Context(), id, raw)
		if err != nil {
			log.Warn().Err(err).Int64("session_id", id).Int("packet", i).Msg("API: import stopped")
			c.JSON(errorStatus(err), gin.H{
				"error":    fmt.Sprintf("packet %d: %v", i, err),
				"imported": views,
			})
			return
		}
		views = append(views, newPacketView(p))
	}
	c.JSON(http.StatusOK, gin.H{
		"imported": views,
		"count":    len(views),
	})
}
