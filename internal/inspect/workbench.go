// Package inspect decodes captured EO packets. Each capture session gets
// a live packet.Session that tracks its sequence counter, so packets must
// be imported in the order they were captured.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/eolink-project/eolink/internal/capture"
	"github.com/eolink-project/eolink/internal/config"
	"github.com/eolink-project/eolink/internal/events"
	"github.com/eolink-project/eolink/internal/util"
	"github.com/eolink-project/eolink/pkg/data"
	"github.com/eolink-project/eolink/pkg/encrypt"
	"github.com/eolink-project/eolink/pkg/packet"
	"github.com/eolink-project/eolink/pkg/sequence"
)

const source = "inspect"

var (
	// ErrRejected is returned in strict mode for packets that fail the
	// sequence check. Rejected packets are not stored.
	ErrRejected = errors.New("inspect: packet rejected")

	// ErrInvalid wraps input the workbench refuses before decoding.
	ErrInvalid = errors.New("inspect: invalid input")
)

// Options control how a Workbench treats failed packets.
type Options struct {
	// StrictSequence rejects sequence mismatches instead of storing them
	// with a mismatch verdict.
	StrictSequence bool
}

// Workbench imports raw packets into capture sessions.
type Workbench struct {
	store  *capture.Store
	bus    *events.EventBus
	opts   Options
	logger zerolog.Logger

	mu   sync.Mutex
	live map[int64]*liveSession
}

type liveSession struct {
	mu       sync.Mutex
	meta     capture.Session
	codec    *packet.Session
	fromPeer bool
}

// NewWorkbench creates a workbench over store. bus may be nil.
func NewWorkbench(store *capture.Store, bus *events.EventBus, opts Options) *Workbench {
	return &Workbench{
		store:  store,
		bus:    bus,
		opts:   opts,
		logger: util.ComponentLogger(source),
		live:   make(map[int64]*liveSession),
	}
}

// Store returns the underlying capture store.
func (w *Workbench) Store() *capture.Store {
	return w.store
}

// CreateSession stores a new capture session and prepares its decoder.
func (w *Workbench) CreateSession(ctx context.Context, sess capture.Session) (*capture.Session, error) {
	if sess.Direction != config.DirectionClient && sess.Direction != config.DirectionServer {
		return nil, fmt.Errorf("%w: capture direction %q", ErrInvalid, sess.Direction)
	}
	if sess.SequenceStart < 0 || sess.SequenceStart+sequence.Modulus > data.ShortMax {
		return nil, fmt.Errorf("%w: sequence start %d out of range", ErrInvalid, sess.SequenceStart)
	}

	id, err := w.store.CreateSession(ctx, sess)
	if err != nil {
		return nil, err
	}
	stored, err := w.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.live[id] = newLiveSession(*stored)
	w.mu.Unlock()

	w.emit(ctx, events.EventCaptureCreated, events.CapturePayload{SessionID: id, Name: stored.Name})
	return stored, nil
}

// DeleteSession removes a capture session and its packets.
func (w *Workbench) DeleteSession(ctx context.Context, id int64) error {
	sess, err := w.store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if err := w.store.DeleteSession(ctx, id); err != nil {
		return err
	}

	w.mu.Lock()
	delete(w.live, id)
	w.mu.Unlock()

	w.emit(ctx, events.EventCaptureDeleted, events.CapturePayload{SessionID: id, Name: sess.Name})
	return nil
}

// Forget drops the cached decoder state of every session, as needed after
// sessions were removed behind the workbench's back.
func (w *Workbench) Forget() {
	w.mu.Lock()
	w.live = make(map[int64]*liveSession)
	w.mu.Unlock()
}

func (w *Workbench) drop(id int64, ls *liveSession) {
	w.mu.Lock()
	if w.live[id] == ls {
		delete(w.live, id)
	}
	w.mu.Unlock()
}

func newLiveSession(meta capture.Session) *liveSession {
	// Packets captured in the client direction were sent by the client, so
	// the decoder plays the server and reads sequence values.
	codec := packet.NewSession(meta.SendMultiple, meta.RecvMultiple)
	codec.SetSequenceStart(meta.SequenceStart)
	return &liveSession{
		meta:     meta,
		codec:    codec,
		fromPeer: meta.Direction == config.DirectionClient,
	}
}

// session returns the live decoder for id. A decoder missing from the
// cache is rebuilt by replaying the packets already stored.
func (w *Workbench) session(ctx context.Context, id int64) (*liveSession, error) {
	w.mu.Lock()
	ls, ok := w.live[id]
	w.mu.Unlock()
	if ok {
		return ls, nil
	}

	meta, err := w.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	ls = newLiveSession(*meta)

	stored, err := w.store.ListPackets(ctx, id, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, p := range stored {
		_, _ = ls.decode(encrypt.RawBuffer(p.Raw))
	}
	w.logger.Debug().
		Int64("session_id", id).
		Int("replayed", len(stored)).
		Msg("decoder rebuilt from stored packets")

	w.mu.Lock()
	if existing, ok := w.live[id]; ok {
		ls = existing
	} else {
		w.live[id] = ls
	}
	w.mu.Unlock()
	return ls, nil
}

func (ls *liveSession) decode(raw encrypt.RawBuffer) (*packet.Packet, error) {
	if ls.fromPeer {
		return ls.codec.DecodeClient(raw)
	}
	return ls.codec.DecodeServer(raw)
}

// Import decodes raw as the next packet of session id and stores it.
//
// Malformed packets and sequence mismatches are stored with the matching
// verdict and reported through events; the returned error is nil for
// them unless the workbench runs in strict mode. Errors from the store are
// always returned.
func (w *Workbench) Import(ctx context.Context, id int64, raw []byte) (*capture.Packet, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty packet", ErrInvalid)
	}
	ls, err := w.session(ctx, id)
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	_, recv := ls.codec.Multiples()
	rec := capture.Packet{
		SessionID: id,
		Raw:       append([]byte(nil), raw...),
		Plain:     encrypt.DecryptPacket(encrypt.RawBuffer(raw), recv),
		Sequence:  -1,
	}

	decoded, decodeErr := ls.decode(encrypt.RawBuffer(raw))
	var mismatch *sequence.MismatchError
	switch {
	case decodeErr == nil:
		rec.Verdict = events.VerdictOK
		if decoded.IsInit() {
			rec.Verdict = events.VerdictInit
		}
	case errors.As(decodeErr, &mismatch):
		if w.opts.StrictSequence {
			w.logger.Warn().
				Int64("session_id", id).
				Int("expected", mismatch.Expected).
				Int("received", mismatch.Received).
				Msg("packet rejected")
			w.emit(ctx, events.EventSequenceMismatch, events.MismatchPayload{
				SessionID: id, Expected: mismatch.Expected, Received: mismatch.Received,
			})
			return nil, fmt.Errorf("%w: %v", ErrRejected, decodeErr)
		}
		rec.Verdict = events.VerdictSequenceMismatch
		rec.Error = decodeErr.Error()
	default:
		rec.Verdict = events.VerdictMalformed
		rec.Error = decodeErr.Error()
	}
	if decoded != nil {
		rec.Family = decoded.Family
		rec.Action = decoded.Action
		if decoded.HasSequence() {
			rec.Sequence = decoded.Sequence
		}
	} else if len(rec.Plain) >= 1 {
		rec.Action = rec.Plain[0]
		if len(rec.Plain) >= 2 {
			rec.Family = rec.Plain[1]
		}
	}

	stored, err := w.store.AddPacket(ctx, rec)
	if err != nil {
		// the decoder moved past a packet the store does not have
		w.drop(id, ls)
		return nil, err
	}

	w.logger.Debug().
		Int64("session_id", id).
		Int64("index", stored.Index).
		Str("packet", PacketName(stored.Family, stored.Action)).
		Int("sequence", stored.Sequence).
		Str("verdict", stored.Verdict.String()).
		Msg("packet imported")

	w.emit(ctx, events.EventPacketDecoded, events.PacketPayload{
		SessionID: id,
		PacketID:  stored.ID,
		Direction: ls.meta.Direction,
		Family:    stored.Family,
		Action:    stored.Action,
		Sequence:  stored.Sequence,
		Length:    len(raw),
		Verdict:   stored.Verdict,
	})
	switch stored.Verdict {
	case events.VerdictSequenceMismatch:
		w.logger.Warn().
			Int64("session_id", id).
			Int64("index", stored.Index).
			Int("expected", mismatch.Expected).
			Int("received", mismatch.Received).
			Msg("sequence mismatch")
		w.emit(ctx, events.EventSequenceMismatch, events.MismatchPayload{
			SessionID: id, PacketID: stored.ID, Expected: mismatch.Expected, Received: mismatch.Received,
		})
	case events.VerdictMalformed:
		w.logger.Warn().
			Int64("session_id", id).
			Int64("index", stored.Index).
			Err(decodeErr).
			Msg("malformed packet")
		w.emit(ctx, events.EventMalformedPacket, events.MalformedPayload{
			SessionID: id, PacketID: stored.ID, Error: stored.Error, Length: len(raw),
		})
	}
	return stored, nil
}

// ImportStream imports every length-prefixed packet read from r and
// returns how many were stored. It stops at the first framing or store
// error.
func (w *Workbench) ImportStream(ctx context.Context, id int64, r io.Reader) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		raw, err := ReadFrame(r)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("packet %d: %w", n, err)
		}
		if _, err := w.Import(ctx, id, raw); err != nil {
			return n, fmt.Errorf("packet %d: %w", n, err)
		}
		n++
	}
}

// Export writes every stored packet of session id to out as
// length-prefixed frames and returns how many were written.
func (w *Workbench) Export(ctx context.Context, id int64, out io.Writer) (int, error) {
	if _, err := w.store.GetSession(ctx, id); err != nil {
		return 0, err
	}
	stored, err := w.store.ListPackets(ctx, id, 0, 0)
	if err != nil {
		return 0, err
	}
	for i, p := range stored {
		if err := WriteFrame(out, encrypt.RawBuffer(p.Raw)); err != nil {
			return i, err
		}
	}
	return len(stored), nil
}

func (w *Workbench) emit(ctx context.Context, t events.EventType, payload interface{}) {
	if w.bus == nil {
		return
	}
	w.bus.Emit(context.WithoutCancel(ctx), events.NewEvent(t, source, payload))
}
