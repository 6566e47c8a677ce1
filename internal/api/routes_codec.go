package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eolink-project/eolink/internal/inspect"
	"github.com/eolink-project/eolink/internal/util"
	"github.com/eolink-project/eolink/pkg/data"
	"github.com/eolink-project/eolink/pkg/encrypt"
	"github.com/eolink-project/eolink/pkg/sequence"
)

type numberEncodeRequest struct {
	Value int `json:"value"`
	Width int `json:"width"`
}

func (s *Server) handleNumberEncode(c *gin.Context) {
	var req numberEncodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Width == 0 {
		req.Width = int(data.Width4)
	}

	b, err := data.EncodeNumber(req.Value, data.Width(req.Width))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"value": req.Value,
		"width": req.Width,
		"bytes": byteList(b),
		"hex":   util.FormatBytes(b),
	})
}

type bytesRequest struct {
	Bytes byteList `json:"bytes"`
}

func (s *Server) handleNumberDecode(c *gin.Context) {
	var req bytesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if len(req.Bytes) == 0 || len(req.Bytes) > int(data.Width4) {
		badRequest(c, fmt.Errorf("a number is 1 to 4 bytes, got %d", len(req.Bytes)))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bytes": req.Bytes,
		"value": data.DecodeNumber(req.Bytes),
	})
}

type stringEncodeRequest struct {
	Text string `json:"text"`
}

// handleStringEncode converts text to Windows-1252 and applies the
// string transform.
func (s *Server) handleStringEncode(c *gin.Context) {
	var req stringEncodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	encoded := data.EncodeString(data.StringToBytes(req.Text))
	c.JSON(http.StatusOK, gin.H{
		"text":  req.Text,
		"bytes": byteList(encoded),
		"hex":   util.FormatBytes(encoded),
	})
}

func (s *Server) handleStringDecode(c *gin.Context) {
	var req bytesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	decoded := data.DecodeString(req.Bytes)
	c.JSON(http.StatusOK, gin.H{
		"text":  data.BytesToString(decoded),
		"bytes": byteList(decoded),
	})
}

type packetRequest struct {
	Bytes    byteList `json:"bytes"`
	Multiple int      `json:"multiple"`
}

func (s *Server) handlePacketEncrypt(c *gin.Context) {
	var req packetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	raw := encrypt.EncryptPacket(data.PlainBuffer(req.Bytes), req.Multiple)
	c.JSON(http.StatusOK, gin.H{
		"bytes":       byteList(raw),
		"hex":         util.FormatBytes(raw),
		"passthrough": encrypt.Passthrough(req.Bytes),
	})
}

func (s *Server) handlePacketDecrypt(c *gin.Context) {
	var req packetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	plain := encrypt.DecryptPacket(encrypt.RawBuffer(req.Bytes), req.Multiple)
	resp := gin.H{
		"bytes":       byteList(plain),
		"hex":         util.FormatBytes(plain),
		"passthrough": encrypt.Passthrough(req.Bytes),
	}
	if len(plain) >= 2 {
		resp["action"] = plain[0]
		resp["family"] = plain[1]
		resp["name"] = inspect.PacketName(plain[1], plain[0])
	}
	c.JSON(http.StatusOK, resp)
}

type sequenceRequest struct {
	Kind  string `json:"kind"`
	S1    int    `json:"s1"`
	S2    int    `json:"s2"`
	Start *int   `json:"start"`
}

// handleSequence recovers a sequence start from an init or ping pair, or
// generates both pairs for a given start, and lists the values the
// counter will produce.
func (s *Server) handleSequence(c *gin.Context) {
	var req sequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var start int
	switch req.Kind {
	case "init":
		start = sequence.InitStart(req.S1, req.S2)
	case "ping":
		start = sequence.PingStart(req.S1, req.S2)
	case "start", "":
		if req.Start == nil {
			start = sequence.GenerateStart()
		} else {
			start = *req.Start
		}
	default:
		badRequest(c, fmt.Errorf("unknown sequence kind %q", req.Kind))
		return
	}
	if start < 0 || start+sequence.Modulus > data.ShortMax {
		respondError(c, &data.RangeError{Value: start, Width: data.Width2})
		return
	}

	st := sequence.New(start)
	values := make([]int, sequence.Modulus)
	for i := range values {
		values[i], _ = st.Advance()
	}

	resp := gin.H{
		"start":  start,
		"values": values,
	}
	if i1, i2, err := sequence.InitBytes(start); err == nil {
		p1, p2 := sequence.PingBytes(start)
		resp["init"] = []int{i1, i2}
		resp["ping"] = []int{p1, p2}
	}
	c.JSON(http.StatusOK, resp)
}

type hashRequest struct {
	Challenge int `json:"challenge"`
}

func (s *Server) handleHash(c *gin.Context) {
	var req hashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Challenge < 0 || uint64(req.Challenge) > data.MaxValue(data.Width3) {
		respondError(c, &data.RangeError{Value: req.Challenge, Width: data.Width3})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"challenge": req.Challenge,
		"hash":      encrypt.ServerVerificationHash(req.Challenge),
	})
}
