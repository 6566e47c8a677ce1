package inspect

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/eolink-project/eolink/internal/capture"
	"github.com/eolink-project/eolink/internal/events"
	"github.com/eolink-project/eolink/pkg/data"
	"github.com/eolink-project/eolink/pkg/encrypt"
	"github.com/eolink-project/eolink/pkg/packet"
)

const testStart = 40

func newTestWorkbench(t *testing.T, opts Options, bus *events.EventBus) *Workbench {
	t.Helper()
	store, err := capture.NewStore(filepath.Join(t.TempDir(), "captures.db"), 0)
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewWorkbench(store, bus, opts)
}

// newCapture creates a client-direction session and the client codec whose
// packets it decodes.
func newCapture(t *testing.T, w *Workbench) (*capture.Session, *packet.Session) {
	t.Helper()
	sess, err := w.CreateSession(context.Background(), capture.Session{
		Name:          "walk",
		Direction:     "client",
		SendMultiple:  11,
		RecvMultiple:  7,
		SequenceStart: testStart,
	})
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	client := packet.NewSession(7, 11)
	client.SetSequenceStart(testStart)
	return sess, client
}

func encodeWalk(t *testing.T, client *packet.Session, step byte) encrypt.RawBuffer {
	t.Helper()
	raw, err := client.EncodeClient(packet.Header{Action: 1, Family: 6}, data.PlainBuffer{step, 2, 3})
	if err != nil {
		t.Fatalf("EncodeClient error: %v", err)
	}
	return raw
}

func TestImportInOrder(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkbench(t, Options{}, nil)
	sess, client := newCapture(t, w)

	for i := 0; i < 12; i++ {
		p, err := w.Import(ctx, sess.ID, encodeWalk(t, client, byte(i)))
		if err != nil {
			t.Fatalf("packet %d: Import error: %v", i, err)
		}
		if p.Verdict != events.VerdictOK {
			t.Errorf("packet %d: verdict = %v (%s), want ok", i, p.Verdict, p.Error)
		}
		if want := testStart + (i+1)%10; p.Sequence != want {
			t.Errorf("packet %d: sequence = %d, want %d", i, p.Sequence, want)
		}
		if p.Family != 6 || p.Action != 1 || p.Index != int64(i) {
			t.Errorf("packet %d: stored %+v", i, p)
		}
		if len(p.Plain) < 2 || p.Plain[0] != 1 || p.Plain[1] != 6 {
			t.Errorf("packet %d: plain = % x", i, p.Plain)
		}
	}
}

func TestReplayIsStoredAsMismatch(t *testing.T) {
	ctx := context.Background()
	bus := events.NewEventBus()
	defer bus.Stop()
	mismatches := make(chan events.MismatchPayload, 1)
	bus.Subscribe(events.EventSequenceMismatch, "test", func(_ context.Context, e events.Event) error {
		mismatches <- e.Payload.(events.MismatchPayload)
		return nil
	})

	w := newTestWorkbench(t, Options{}, bus)
	sess, client := newCapture(t, w)

	first := encodeWalk(t, client, 1)
	if _, err := w.Import(ctx, sess.ID, first); err != nil {
		t.Fatalf("Import error: %v", err)
	}
	replay, err := w.Import(ctx, sess.ID, first)
	if err != nil {
		t.Fatalf("Import replay error: %v", err)
	}
	if replay.Verdict != events.VerdictSequenceMismatch || replay.Error == "" {
		t.Errorf("replay verdict = %v (%q), want sequence_mismatch", replay.Verdict, replay.Error)
	}

	select {
	case m := <-mismatches:
		if m.Expected != testStart+2 || m.Received != testStart+1 || m.PacketID != replay.ID {
			t.Errorf("mismatch event = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no sequence_mismatch event")
	}

	// the replay did not move the counter
	next, err := w.Import(ctx, sess.ID, encodeWalk(t, client, 2))
	if err != nil {
		t.Fatalf("Import error: %v", err)
	}
	if next.Verdict != events.VerdictOK || next.Sequence != testStart+2 {
		t.Errorf("next packet = %v seq %d, want ok seq %d", next.Verdict, next.Sequence, testStart+2)
	}
}

func TestStrictRejectsMismatch(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkbench(t, Options{StrictSequence: true}, nil)
	sess, client := newCapture(t, w)

	first := encodeWalk(t, client, 1)
	if _, err := w.Import(ctx, sess.ID, first); err != nil {
		t.Fatalf("Import error: %v", err)
	}
	if _, err := w.Import(ctx, sess.ID, first); !errors.Is(err, ErrRejected) {
		t.Fatalf("Import replay error = %v, want ErrRejected", err)
	}

	stored, err := w.Store().ListPackets(ctx, sess.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListPackets error: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("stored %d packets, want 1", len(stored))
	}
}

func TestImportMalformed(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkbench(t, Options{StrictSequence: true}, nil)
	sess, _ := newCapture(t, w)

	tests := []struct {
		name   string
		raw    []byte
		action byte
		family byte
	}{
		{"no family", []byte{0x05}, 0x05, 0},
		{"no sequence", []byte{0x01, 0x02}, 0x01, 0x02},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := w.Import(ctx, sess.ID, tt.raw)
			if err != nil {
				t.Fatalf("Import error: %v", err)
			}
			if p.Verdict != events.VerdictMalformed {
				t.Errorf("verdict = %v, want malformed", p.Verdict)
			}
			if p.Action != tt.action || p.Family != tt.family || p.Sequence != -1 {
				t.Errorf("stored %+v", p)
			}
		})
	}

	if _, err := w.Import(ctx, sess.ID, nil); err == nil {
		t.Error("Import(nil) succeeded")
	}
}

func TestImportInitPacket(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkbench(t, Options{}, nil)
	sess, client := newCapture(t, w)

	raw, err := client.EncodeClient(packet.InitHeader, data.PlainBuffer{1, 2, 3})
	if err != nil {
		t.Fatalf("EncodeClient error: %v", err)
	}
	p, err := w.Import(ctx, sess.ID, raw)
	if err != nil {
		t.Fatalf("Import error: %v", err)
	}
	if p.Verdict != events.VerdictInit || p.Sequence != -1 {
		t.Errorf("init packet = %v seq %d", p.Verdict, p.Sequence)
	}
	if !bytes.Equal(p.Plain, raw) {
		t.Errorf("init plain = % x, want % x", p.Plain, raw)
	}
}

func TestDecoderRebuiltFromStore(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkbench(t, Options{}, nil)
	sess, client := newCapture(t, w)

	for i := 0; i < 3; i++ {
		if _, err := w.Import(ctx, sess.ID, encodeWalk(t, client, byte(i))); err != nil {
			t.Fatalf("Import error: %v", err)
		}
	}
	w.Forget()

	p, err := w.Import(ctx, sess.ID, encodeWalk(t, client, 3))
	if err != nil {
		t.Fatalf("Import error: %v", err)
	}
	if p.Verdict != events.VerdictOK || p.Sequence != testStart+4 {
		t.Errorf("after rebuild = %v seq %d, want ok seq %d", p.Verdict, p.Sequence, testStart+4)
	}
}

func TestExportThenImportStream(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkbench(t, Options{}, nil)
	sess, client := newCapture(t, w)

	for i := 0; i < 5; i++ {
		if _, err := w.Import(ctx, sess.ID, encodeWalk(t, client, byte(i))); err != nil {
			t.Fatalf("Import error: %v", err)
		}
	}

	var buf bytes.Buffer
	n, err := w.Export(ctx, sess.ID, &buf)
	if err != nil || n != 5 {
		t.Fatalf("Export() = %d, %v", n, err)
	}

	copySess, _ := newCapture(t, w)
	n, err = w.ImportStream(ctx, copySess.ID, &buf)
	if err != nil || n != 5 {
		t.Fatalf("ImportStream() = %d, %v", n, err)
	}
	stored, err := w.Store().ListPackets(ctx, copySess.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListPackets error: %v", err)
	}
	for _, p := range stored {
		if p.Verdict != events.VerdictOK {
			t.Errorf("packet %d verdict = %v", p.Index, p.Verdict)
		}
	}
}

func TestCreateSessionValidation(t *testing.T) {
	w := newTestWorkbench(t, Options{}, nil)
	ctx := context.Background()

	if _, err := w.CreateSession(ctx, capture.Session{Name: "x", Direction: "sideways"}); err == nil {
		t.Error("accepted invalid direction")
	}
	if _, err := w.CreateSession(ctx, capture.Session{Name: "x", Direction: "server", SequenceStart: -1}); err == nil {
		t.Error("accepted negative sequence start")
	}
	if _, err := w.Import(ctx, 999, []byte{1, 2, 3}); !errors.Is(err, capture.ErrNotFound) {
		t.Errorf("Import on missing session error = %v, want ErrNotFound", err)
	}
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkbench(t, Options{}, nil)
	sess, _ := newCapture(t, w)

	if err := w.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteSession error: %v", err)
	}
	if err := w.DeleteSession(ctx, sess.ID); !errors.Is(err, capture.ErrNotFound) {
		t.Errorf("second DeleteSession error = %v, want ErrNotFound", err)
	}
}
