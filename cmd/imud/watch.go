package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"imulink/pkg/bridge/foxglove"
)

// runWatch connects to a running imud's Foxglove endpoint and renders
// the live sample feed in the terminal.
func runWatch(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)

	wsAddr := fs.String("ws", "127.0.0.1:8765", "Foxglove websocket address")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := foxglove.Dial(ctx, *wsAddr)
	if err != nil {
		fmt.Fprintln(stderr, "watch: dial:", err)
		return 1
	}
	defer client.Close()

	channels, err := client.AwaitAdvertise(5 * time.Second)
	if err != nil {
		fmt.Fprintln(stderr, "watch: waiting for advertise:", err)
		return 1
	}
	var sampleChannel uint64
	found := false
	for _, ch := range channels {
		if strings.HasSuffix(ch.Topic, "/sample") || ch.SchemaName == "imulink.Sample" {
			sampleChannel = ch.ID
			found = true
			break
		}
	}
	if !found {
		fmt.Fprintln(stderr, "watch: server does not advertise a sample channel")
		return 1
	}
	if err := client.Subscribe(1, sampleChannel); err != nil {
		fmt.Fprintln(stderr, "watch: subscribe:", err)
		return 1
	}

	feed := make(chan tea.Msg, 64)
	go func() {
		defer close(feed)
		for {
			sample, err := client.NextSample(30 * time.Second)
			if err != nil {
				select {
				case feed <- watchErrMsg{err}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case feed <- watchSampleMsg{sample}:
			case <-ctx.Done():
				return
			}
		}
	}()

	model := newWatchModel(*wsAddr, feed)
	program := tea.NewProgram(model, tea.WithOutput(stdout))
	final, err := program.Run()
	if err != nil {
		fmt.Fprintln(stderr, "watch:", err)
		return 1
	}
	if m, ok := final.(watchModel); ok && m.err != nil && !errors.Is(m.err, context.Canceled) {
		fmt.Fprintln(stderr, "watch:", m.err)
		return 1
	}
	return 0
}

type watchSampleMsg struct {
	sample foxglove.SampleMessage
}

type watchErrMsg struct {
	err error
}

type watchModel struct {
	addr string
	feed <-chan tea.Msg

	latest map[string]foxglove.SampleMessage
	counts map[string]int
	total  int
	err    error
}

func newWatchModel(addr string, feed <-chan tea.Msg) watchModel {
	return watchModel{
		addr:   addr,
		feed:   feed,
		latest: make(map[string]foxglove.SampleMessage),
		counts: make(map[string]int),
	}
}

func (m watchModel) Init() tea.Cmd {
	return m.nextMsg()
}

func (m watchModel) nextMsg() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.feed
		if !ok {
			return watchErrMsg{nil}
		}
		return msg
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case watchSampleMsg:
		m.latest[msg.sample.Kind] = msg.sample
		m.counts[msg.sample.Kind]++
		m.total++
		return m, m.nextMsg()
	case watchErrMsg:
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "imulink watch | %s\n\n", m.addr)
	if m.total == 0 {
		b.WriteString("waiting for samples...\n")
	}
	for _, kind := range []string{"quaternion", "magnetometer", "linear_accel"} {
		sample, ok := m.latest[kind]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%-13s %6d  %s\n", kind, m.counts[kind], formatSampleData(kind, sample.Data))
	}
	b.WriteString("\npress q to quit\n")
	return b.String()
}

func formatSampleData(kind string, data any) string {
	fields, ok := data.(map[string]any)
	if !ok {
		return fmt.Sprintf("%v", data)
	}
	keys := []string{"x", "y", "z"}
	if kind == "quaternion" {
		keys = []string{"w", "x", "y", "z"}
	}
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		val, ok := fields[key].(float64)
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%+.4f", key, val))
	}
	return strings.Join(parts, " ")
}
