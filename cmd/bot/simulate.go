package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"nearmiss-bot/internal/config"
	"nearmiss-bot/internal/dto"
	"nearmiss-bot/internal/pkg/logger"
	"nearmiss-bot/internal/pkg/metrics"
	"nearmiss-bot/internal/repository/memory"
	"nearmiss-bot/internal/service"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const simulatedUser = "1"

var (
	botColor    = color.New(color.FgCyan)
	buttonColor = color.New(color.FgYellow)
	rowColor    = color.New(color.FgGreen, color.Bold)
	hintColor   = color.New(color.FgHiBlack)
)

func newSimulateCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Chat with the bot on the console; rows are printed instead of appended",
		Long: `Reads one action per line:
  /report, /cancel, /start   commands
  #2                         tap button 2 of the last keyboard
  !photo, !video             send a media attachment
  anything else              plain text`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			log := logger.NewIsolatedLogger(cfg.App.LogFilePath)
			defer func() { _ = log.Sync() }()
			return runSimulation(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), userID, log)
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", simulatedUser, "user id to chat as")
	return cmd
}

func runSimulation(ctx context.Context, in io.Reader, out io.Writer, userID string, log logger.ILogger) error {
	console := newConsoleTransport(out)
	conversation := service.NewConversationService(service.ConversationDeps{
		Sessions:  memory.NewSessionRepository(),
		Transport: console,
		Resolver:  console,
		Appender:  console,
		Assembler: service.NewReportAssembler(time.Now),
		Logger:    log,
		Metrics:   metrics.NopRecorder{},
	})

	hintColor.Fprintln(out, "Type /report to begin. Ctrl-D exits.")

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		event, err := console.parseLine(userID, line)
		if err != nil {
			hintColor.Fprintln(out, err.Error())
			continue
		}
		if err := conversation.Handle(ctx, event); err != nil {
			hintColor.Fprintf(out, "(error: %v)\n", err)
		}
	}
	return scanner.Err()
}

// consoleTransport prints bot output and stands in for Telegram and Sheets.
type consoleTransport struct {
	mu      sync.Mutex
	out     io.Writer
	buttons []dto.InlineButton
	seq     int
}

func newConsoleTransport(out io.Writer) *consoleTransport {
	return &consoleTransport{out: out}
}

func (c *consoleTransport) Send(_ context.Context, _ string, text string, opts dto.SendOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	botColor.Fprintln(c.out, text)
	if len(opts.InlineKeyboard) > 0 {
		// Older buttons stay tappable by number until a new keyboard replaces them.
		c.buttons = c.buttons[:0]
		for _, row := range opts.InlineKeyboard {
			labels := make([]string, 0, len(row))
			for _, b := range row {
				c.buttons = append(c.buttons, b)
				labels = append(labels, fmt.Sprintf("[#%d %s]", len(c.buttons), b.Label))
			}
			buttonColor.Fprintln(c.out, "  "+strings.Join(labels, " "))
		}
	}
	if len(opts.ReplyKeyboard) > 0 {
		buttonColor.Fprintf(c.out, "  (reply: %s)\n", strings.Join(opts.ReplyKeyboard, " | "))
	}
	return nil
}

func (c *consoleTransport) AckCallback(_ context.Context, _ string, text string) error {
	if text != "" {
		hintColor.Fprintf(c.out, "  (%s)\n", text)
	}
	return nil
}

func (c *consoleTransport) Resolve(_ context.Context, ref dto.MediaRef) (string, error) {
	return "https://example.invalid/" + string(ref.Kind) + "/" + ref.FileID, nil
}

func (c *consoleTransport) AppendRow(_ context.Context, row []interface{}) error {
	cells := make([]string, 0, len(row))
	for _, cell := range row {
		cells = append(cells, fmt.Sprint(cell))
	}
	rowColor.Fprintf(c.out, "ROW | %s\n", strings.Join(cells, " | "))
	return nil
}

func (c *consoleTransport) parseLine(userID, line string) (dto.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case strings.HasPrefix(line, "/"):
		fields := strings.Fields(line[1:])
		if len(fields) == 0 {
			return dto.Event{}, fmt.Errorf("empty command")
		}
		return dto.Event{
			UserID:  userID,
			Kind:    dto.EventKindCommand,
			Command: strings.ToLower(fields[0]),
		}, nil
	case strings.HasPrefix(line, "#"):
		n, err := strconv.Atoi(line[1:])
		if err != nil || n < 1 || n > len(c.buttons) {
			return dto.Event{}, fmt.Errorf("no button %s", line)
		}
		c.seq++
		return dto.Event{
			UserID:       userID,
			Kind:         dto.EventKindButton,
			CallbackID:   "sim-" + strconv.Itoa(c.seq),
			CallbackData: c.buttons[n-1].Token,
		}, nil
	case line == "!photo":
		c.seq++
		id := strconv.Itoa(c.seq)
		return dto.Event{
			UserID: userID,
			Kind:   dto.EventKindPhoto,
			Media: &dto.MediaDescriptor{Kind: dto.EventKindPhoto, Variants: []dto.PhotoVariant{
				{FileID: "thumb-" + id, Width: 90, Height: 90},
				{FileID: "photo-" + id, Width: 1280, Height: 960},
			}},
		}, nil
	case line == "!video":
		c.seq++
		return dto.Event{
			UserID: userID,
			Kind:   dto.EventKindVideo,
			Media:  &dto.MediaDescriptor{Kind: dto.EventKindVideo, FileID: "video-" + strconv.Itoa(c.seq)},
		}, nil
	}
	return dto.Event{UserID: userID, Kind: dto.EventKindText, Text: line}, nil
}

