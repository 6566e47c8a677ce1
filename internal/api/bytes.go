package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/eolink-project/eolink/internal/capture"
	"github.com/eolink-project/eolink/internal/inspect"
	"github.com/eolink-project/eolink/internal/util"
	"github.com/eolink-project/eolink/pkg/data"
	"github.com/eolink-project/eolink/pkg/sequence"
)

// byteList is a byte slice that travels as a JSON array of numbers. On
// input it also accepts a string in any form util.ParseBytes reads.
type byteList []byte

func (b byteList) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

func (b *byteList) UnmarshalJSON(in []byte) error {
	if len(in) > 0 && in[0] == '"' {
		var s string
		if err := json.Unmarshal(in, &s); err != nil {
			return err
		}
		parsed, err := util.ParseBytes(s)
		if err != nil {
			return err
		}
		*b = parsed
		return nil
	}

	var ints []int
	if err := json.Unmarshal(in, &ints); err != nil {
		return err
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// errorStatus maps an error kind to its HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, inspect.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, capture.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, capture.ErrSessionFull), errors.Is(err, inspect.ErrRejected):
		return http.StatusConflict
	case errors.Is(err, data.ErrEncodingRange),
		errors.Is(err, data.ErrOutOfBounds),
		errors.Is(err, data.ErrMalformed),
		errors.Is(err, sequence.ErrSequenceMismatch),
		errors.Is(err, sequence.ErrUninitialized):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the status errorStatus picks for it.
func respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("API request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
