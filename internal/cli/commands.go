// Package cli implements the interactive workbench console: codec
// calculators, hex dumps and capture session browsing.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"

	"github.com/eolink-project/eolink/internal/config"
	"github.com/eolink-project/eolink/internal/events"
	"github.com/eolink-project/eolink/internal/inspect"
	"github.com/eolink-project/eolink/internal/util"
	"github.com/eolink-project/eolink/pkg/data"
	"github.com/eolink-project/eolink/pkg/encrypt"
	"github.com/eolink-project/eolink/pkg/sequence"
)

// CLI provides an interactive command-line interface.
type CLI struct {
	cfg      *config.Config
	eventBus *events.EventBus
	bench    *inspect.Workbench

	in  io.Reader
	out io.Writer
}

// NewCLI creates a console reading stdin and writing stdout.
func NewCLI(cfg *config.Config, eventBus *events.EventBus, bench *inspect.Workbench) *CLI {
	return &CLI{
		cfg:      cfg,
		eventBus: eventBus,
		bench:    bench,
		in:       os.Stdin,
		out:      os.Stdout,
	}
}

// SetIO replaces the console's input and output.
func (c *CLI) SetIO(in io.Reader, out io.Writer) {
	c.in, c.out = in, out
}

// Start runs the read-eval loop until ctx is cancelled or input ends.
func (c *CLI) Start(ctx context.Context) {
	fmt.Fprintln(c.out, "\neolink CLI ready. Type 'help' for available commands.")
	fmt.Fprintln(c.out, "─────────────────────────────────────────────────────")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Warn().Err(err).Msg("CLI: input error")
		}
	}()

	for {
		fmt.Fprint(c.out, "eolink> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := c.Execute(ctx, line); err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
			}
		}
	}
}

// Execute runs one command line.
func (c *CLI) Execute(ctx context.Context, line string) error {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return nil
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "num":
		return c.cmdNum(args)
	case "unnum":
		return c.cmdUnnum(args)
	case "str":
		return c.cmdStr(args)
	case "encrypt":
		return c.cmdCrypt(args, true)
	case "decrypt":
		return c.cmdCrypt(args, false)
	case "dump":
		return c.cmdDump(args)
	case "seq":
		return c.cmdSeq(args)
	case "hash":
		return c.cmdHash(args)
	case "sessions", "ls":
		return c.cmdSessions(ctx)
	case "packets":
		return c.cmdPackets(ctx, args)
	case "import":
		return c.cmdImport(ctx, args)
	case "export":
		return c.cmdExport(ctx, args)
	case "set":
		return c.cmdSet(ctx, args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Shutting down eolink...")
		c.eventBus.Emit(ctx, events.NewEvent(events.EventShutdown, "cli", nil))
	default:
		fmt.Fprintf(c.out, "Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

// printHelp displays available commands.
func (c *CLI) printHelp() {
	fmt.Fprintln(c.out, "\n╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(c.out, "║                     eolink CLI Commands                      ║")
	fmt.Fprintln(c.out, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintln(c.out, "║  num <value> [width]        Encode a number                  ║")
	fmt.Fprintln(c.out, "║  unnum <bytes>              Decode 1-4 number bytes          ║")
	fmt.Fprintln(c.out, "║  str <text>                 Encode a string                  ║")
	fmt.Fprintln(c.out, "║  str -d <bytes>             Decode an encoded string         ║")
	fmt.Fprintln(c.out, "║  encrypt <mult> <bytes>     Obfuscate a plain packet         ║")
	fmt.Fprintln(c.out, "║  decrypt <mult> <bytes>     Deobfuscate a raw packet         ║")
	fmt.Fprintln(c.out, "║  dump <bytes>               Hex dump split into chunks       ║")
	fmt.Fprintln(c.out, "║  seq init|ping <s1> <s2>    Recover a sequence start         ║")
	fmt.Fprintln(c.out, "║  seq start [value]          Generate handshake pairs         ║")
	fmt.Fprintln(c.out, "║  hash <challenge>           Server verification hash         ║")
	fmt.Fprintln(c.out, "║  sessions                   List capture sessions            ║")
	fmt.Fprintln(c.out, "║  packets <id> [off] [n]     List packets of a session        ║")
	fmt.Fprintln(c.out, "║  import <id> <file>         Import a framed capture file     ║")
	fmt.Fprintln(c.out, "║  export <id> <file>         Export a session to a file       ║")
	fmt.Fprintln(c.out, "║  set <key> <value>          Update a codec setting           ║")
	fmt.Fprintln(c.out, "║  quit                       Shutdown eolink                  ║")
	fmt.Fprintln(c.out, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(c.out)
}

func (c *CLI) newTable(header ...string) *tablewriter.Table {
	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	return tw
}

func (c *CLI) cmdNum(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: num <value> [width]")
	}
	value, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid number: %s", args[0])
	}

	widths := []data.Width{data.Width1, data.Width2, data.Width3, data.Width4}
	if len(args) > 1 {
		w, err := strconv.Atoi(args[1])
		if err != nil || w < 1 || w > 4 {
			return fmt.Errorf("width must be 1-4: %s", args[1])
		}
		widths = []data.Width{data.Width(w)}
	}

	tw := c.newTable("Width", "Bytes", "Decimal")
	rows := 0
	for _, w := range widths {
		b, err := data.EncodeNumber(value, w)
		if err != nil {
			if len(widths) == 1 {
				return err
			}
			continue
		}
		tw.Append([]string{strconv.Itoa(int(w)), util.FormatBytes(b), decimalList(b)})
		rows++
	}
	if rows == 0 {
		return &data.RangeError{Value: value, Width: data.Width4}
	}
	tw.Render()
	return nil
}

func (c *CLI) cmdUnnum(args []string) error {
	b, err := parseArgs(args, "usage: unnum <bytes>")
	if err != nil {
		return err
	}
	if len(b) > int(data.Width4) {
		return fmt.Errorf("a number is 1 to 4 bytes, got %d", len(b))
	}
	fmt.Fprintf(c.out, "%s = %d\n", util.FormatBytes(b), data.DecodeNumber(b))
	return nil
}

func (c *CLI) cmdStr(args []string) error {
	if len(args) > 0 && args[0] == "-d" {
		b, err := parseArgs(args[1:], "usage: str -d <bytes>")
		if err != nil {
			return err
		}
		decoded := data.DecodeString(b)
		fmt.Fprintf(c.out, "%q\n", data.BytesToString(decoded))
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: str <text>")
	}

	text := strings.Join(args, " ")
	encoded := data.EncodeString(data.StringToBytes(text))
	fmt.Fprintf(c.out, "%s\n", util.FormatBytes(encoded))
	return nil
}

func (c *CLI) cmdCrypt(args []string, encode bool) error {
	usage := "usage: decrypt <multiple> <bytes>"
	if encode {
		usage = "usage: encrypt <multiple> <bytes>"
	}
	if len(args) < 2 {
		return errors.New(usage)
	}
	multiple, err := strconv.Atoi(args[0])
	if err != nil || multiple < 0 {
		return fmt.Errorf("invalid multiple: %s", args[0])
	}
	b, err := parseArgs(args[1:], usage)
	if err != nil {
		return err
	}

	var out []byte
	if encode {
		out = encrypt.EncryptPacket(data.PlainBuffer(b), multiple)
	} else {
		out = encrypt.DecryptPacket(encrypt.RawBuffer(b), multiple)
	}
	if encrypt.Passthrough(b) {
		fmt.Fprintln(c.out, "(init packet, passed through unchanged)")
	}
	c.printDump(out)
	if !encode && len(out) >= 2 {
		fmt.Fprintf(c.out, "packet: %s\n", inspect.PacketName(out[1], out[0]))
	}
	return nil
}

func (c *CLI) printDump(b []byte) {
	tw := c.newTable("Offset", "Hex", "Text")
	for _, row := range util.HexDump(b, 16) {
		tw.Append([]string{fmt.Sprintf("%04x", row.Offset), row.Hex, row.Text})
	}
	tw.Render()
}

// cmdDump prints a hex dump and then the chunks between break bytes, with
// each chunk also read as an encoded string.
func (c *CLI) cmdDump(args []string) error {
	b, err := parseArgs(args, "usage: dump <bytes>")
	if err != nil {
		return err
	}
	c.printDump(b)

	r := data.NewReader(data.PlainBuffer(b))
	r.SetChunkedReadingMode(true)
	tw := c.newTable("Chunk", "Offset", "Bytes", "Encoded string")
	for i := 0; r.Position() < r.Len(); i++ {
		offset := r.Position()
		chunk, err := r.Peek(r.Remaining())
		if err != nil {
			return err
		}
		text, err := r.GetEncodedString()
		if err != nil {
			return err
		}
		tw.Append([]string{strconv.Itoa(i), strconv.Itoa(offset), util.FormatBytes(chunk), strconv.Quote(text)})
		if err := r.NextChunk(); err != nil {
			return err
		}
	}
	tw.Render()
	return nil
}

func (c *CLI) cmdSeq(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: seq init|ping <s1> <s2> | seq start [value]")
	}

	var start int
	switch args[0] {
	case "init", "ping":
		if len(args) < 3 {
			return fmt.Errorf("usage: seq %s <s1> <s2>", args[0])
		}
		s1, err1 := strconv.Atoi(args[1])
		s2, err2 := strconv.Atoi(args[2])
		if err1 != nil || err2 != nil {
			return fmt.Errorf("invalid sequence bytes: %s %s", args[1], args[2])
		}
		if args[0] == "init" {
			start = sequence.InitStart(s1, s2)
		} else {
			start = sequence.PingStart(s1, s2)
		}
	case "start":
		start = sequence.GenerateStart()
		if len(args) > 1 {
			v, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid start: %s", args[1])
			}
			start = v
		}
	default:
		return fmt.Errorf("unknown sequence kind %q", args[0])
	}
	if start < 0 || start+sequence.Modulus > data.ShortMax {
		return &data.RangeError{Value: start, Width: data.Width2}
	}

	fmt.Fprintf(c.out, "start: %d\n", start)
	if i1, i2, err := sequence.InitBytes(start); err == nil {
		p1, p2 := sequence.PingBytes(start)
		fmt.Fprintf(c.out, "init pair: %d %d\nping pair: %d %d\n", i1, i2, p1, p2)
	}

	st := sequence.New(start)
	values := make([]string, sequence.Modulus)
	for i := range values {
		v, _ := st.Advance()
		values[i] = strconv.Itoa(v)
	}
	fmt.Fprintf(c.out, "values: %s\n", strings.Join(values, " "))
	return nil
}

func (c *CLI) cmdHash(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: hash <challenge>")
	}
	challenge, err := strconv.Atoi(args[0])
	if err != nil || challenge < 0 || uint64(challenge) > data.MaxValue(data.Width3) {
		return fmt.Errorf("invalid challenge: %s", args[0])
	}
	fmt.Fprintf(c.out, "%d\n", encrypt.ServerVerificationHash(challenge))
	return nil
}

func (c *CLI) cmdSessions(ctx context.Context) error {
	sessions, err := c.bench.Store().ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(c.out, "No capture sessions")
		return nil
	}

	tw := c.newTable("ID", "Name", "Direction", "Multiples", "Start", "Packets", "Created")
	for _, s := range sessions {
		tw.Append([]string{
			strconv.FormatInt(s.ID, 10),
			s.Name,
			s.Direction,
			fmt.Sprintf("%d/%d", s.SendMultiple, s.RecvMultiple),
			strconv.Itoa(s.SequenceStart),
			strconv.FormatInt(s.PacketCount, 10),
			s.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	tw.Render()
	return nil
}

func (c *CLI) cmdPackets(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: packets <id> [offset] [limit]")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	offset, limit := 0, 50
	if len(args) > 1 {
		if offset, err = strconv.Atoi(args[1]); err != nil || offset < 0 {
			return fmt.Errorf("invalid offset: %s", args[1])
		}
	}
	if len(args) > 2 {
		if limit, err = strconv.Atoi(args[2]); err != nil || limit < 1 {
			return fmt.Errorf("invalid limit: %s", args[2])
		}
	}

	if _, err := c.bench.Store().GetSession(ctx, id); err != nil {
		return err
	}
	packets, err := c.bench.Store().ListPackets(ctx, id, offset, limit)
	if err != nil {
		return err
	}

	tw := c.newTable("#", "Packet", "Seq", "Len", "Verdict", "Plain")
	for _, p := range packets {
		seq := "-"
		if p.Sequence >= 0 {
			seq = strconv.Itoa(p.Sequence)
		}
		plain := util.FormatBytes(p.Plain)
		if len(plain) > 48 {
			plain = plain[:45] + "..."
		}
		tw.Append([]string{
			strconv.FormatInt(p.Index, 10),
			inspect.PacketName(p.Family, p.Action),
			seq,
			strconv.Itoa(len(p.Raw)),
			p.Verdict.String(),
			plain,
		})
	}
	tw.Render()
	return nil
}

func (c *CLI) cmdImport(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: import <id> <file>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := c.bench.ImportStream(ctx, id, bufio.NewReader(f))
	fmt.Fprintf(c.out, "Imported %d packets into session %d\n", n, id)
	return err
}

func (c *CLI) cmdExport(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: export <id> <file>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	f, err := os.Create(args[1])
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	n, err := c.bench.Export(ctx, id, w)
	if err == nil {
		err = w.Flush()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Exported %d packets to %s\n", n, args[1])
	return nil
}

// cmdSet updates one codec setting and saves the configuration.
func (c *CLI) cmdSet(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: set <key> <value>")
	}
	key := args[0]
	raw := strings.Join(args[1:], " ")

	var value interface{} = raw
	if v, err := strconv.Atoi(raw); err == nil {
		value = v
	} else if b, err := strconv.ParseBool(raw); err == nil {
		value = b
	}

	previous := c.cfg.GetCodec()
	if err := c.cfg.UpdateCodecField(key, value); err != nil {
		return err
	}
	if result := config.Validate(c.cfg); !result.IsValid() {
		c.cfg.SetCodec(previous)
		return result.Errors[0]
	}
	if err := c.cfg.Save(); err != nil {
		return err
	}

	c.eventBus.Emit(ctx, events.NewEvent(events.EventConfigChanged, "cli",
		events.ConfigChangedPayload{Section: "codec", Key: key, Value: value}))
	fmt.Fprintf(c.out, "Config updated: %s = %v\n", key, value)
	return nil
}

func parseArgs(args []string, usage string) ([]byte, error) {
	if len(args) == 0 {
		return nil, errors.New(usage)
	}
	b, err := util.ParseBytes(strings.Join(args, " "))
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errors.New(usage)
	}
	return b, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid session id: %s", s)
	}
	return id, nil
}

func decimalList(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.Itoa(int(v))
	}
	return strings.Join(parts, " ")
}
