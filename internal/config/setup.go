package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// RunSetupWizard asks for the handful of settings a new workbench needs
// and saves them. in and out are usually stdin and stdout.
func RunSetupWizard(cfg *Config, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	p := prompter{r: reader, w: out}

	fmt.Fprintln(out, "eolink first run setup")
	fmt.Fprintln(out, "Press enter to keep the value in brackets.")
	fmt.Fprintln(out)

	cfg.mu.Lock()
	fmt.Fprintln(out, "── Codec defaults ──")
	cfg.Codec.Direction = p.str("Capture direction (client/server)", cfg.Codec.Direction)
	cfg.Codec.SendMultiple = p.integer("Send swap multiple (0 disables)", cfg.Codec.SendMultiple)
	cfg.Codec.RecvMultiple = p.integer("Receive swap multiple (0 disables)", cfg.Codec.RecvMultiple)
	cfg.Codec.SequenceStart = p.integer("Sequence start", cfg.Codec.SequenceStart)
	cfg.Codec.StrictSequence = p.boolean("Reject packets with a wrong sequence", cfg.Codec.StrictSequence)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "── Inspector API ──")
	cfg.ApplicationData.API.Enabled = p.boolean("Enable REST API", cfg.ApplicationData.API.Enabled)
	if cfg.ApplicationData.API.Enabled {
		cfg.ApplicationData.API.Host = p.str("Listen address", cfg.ApplicationData.API.Host)
		cfg.ApplicationData.API.Port = p.integer("Listen port", cfg.ApplicationData.API.Port)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "── Captures ──")
	cfg.ApplicationData.Capture.DatabasePath = p.str("Capture database", cfg.ApplicationData.Capture.DatabasePath)
	cfg.ApplicationData.Capture.RetentionDays = p.integer("Keep captures for days (0 = forever)", cfg.ApplicationData.Capture.RetentionDays)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "── MQTT Telemetry ──")
	cfg.ApplicationData.MQTT.Enabled = p.boolean("Enable MQTT telemetry", cfg.ApplicationData.MQTT.Enabled)
	if cfg.ApplicationData.MQTT.Enabled {
		cfg.ApplicationData.MQTT.BrokerURL = p.str("Broker host", cfg.ApplicationData.MQTT.BrokerURL)
		cfg.ApplicationData.MQTT.Port = p.integer("Broker port", cfg.ApplicationData.MQTT.Port)
	}
	cfg.mu.Unlock()

	result := Validate(cfg)
	if !result.IsValid() {
		fmt.Fprintln(out, "\nConfiguration has errors:")
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  - [%s] %s\n", e.Field, e.Message)
		}
		if p.boolean("Try again", false) {
			return RunSetupWizard(cfg, reader, out)
		}
		return fmt.Errorf("configuration validation failed")
	}
	for _, w := range result.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(out, "\nConfiguration saved to %s\n\n", cfg.Path())
	return nil
}

type prompter struct {
	r *bufio.Reader
	w io.Writer
}

func (p prompter) line() string {
	input, _ := p.r.ReadString('\n')
	return strings.TrimSpace(input)
}

func (p prompter) str(prompt, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(p.w, "  %s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Fprintf(p.w, "  %s: ", prompt)
	}
	if input := p.line(); input != "" {
		return input
	}
	return defaultVal
}

func (p prompter) integer(prompt string, defaultVal int) int {
	fmt.Fprintf(p.w, "  %s [%d]: ", prompt, defaultVal)
	input := p.line()
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil {
		fmt.Fprintf(p.w, "    Invalid number, using default: %d\n", defaultVal)
		return defaultVal
	}
	return val
}

func (p prompter) boolean(prompt string, defaultVal bool) bool {
	defaultStr := "no"
	if defaultVal {
		defaultStr = "yes"
	}
	fmt.Fprintf(p.w, "  %s [%s]: ", prompt, defaultStr)

	input := strings.ToLower(p.line())
	if input == "" {
		return defaultVal
	}
	return input == "yes" || input == "y" || input == "true" || input == "1"
}
