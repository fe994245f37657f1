package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/tidwall/gjson"
)

// StreamFormatter parses the worker's JSON-lines responses and writes one
// human-readable line per message to dest. It implements io.Writer so it
// can sit behind an io.MultiWriter next to the real output.
type StreamFormatter struct {
	dest io.Writer
	mu   *sync.Mutex
	buf  []byte
}

// NewStreamFormatter creates a StreamFormatter writing to dest. mu guards
// dest when it is shared with other writers.
func NewStreamFormatter(dest io.Writer, mu *sync.Mutex) *StreamFormatter {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &StreamFormatter{dest: dest, mu: mu}
}

func (sf *StreamFormatter) Write(p []byte) (int, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	sf.buf = append(sf.buf, p...)
	for {
		idx := -1
		for i, b := range sf.buf {
			if b == '\n' {
				idx = i
				break
			}
		}
		if idx == -1 {
			break
		}
		line := string(sf.buf[:idx])
		sf.buf = sf.buf[idx+1:]
		sf.processLine(line)
	}
	return len(p), nil
}

func (sf *StreamFormatter) processLine(line string) {
	if !gjson.Valid(line) {
		return
	}

	msg := gjson.Parse(line)
	id := msg.Get("id").String()

	switch msg.Get("type").String() {
	case "result":
		sf.processResult(id, msg.Get("cpm"))
	case "error":
		sf.writeLine(id, fmt.Sprintf("%s %s", Red("❌"), msg.Get("error").String()))
	case "superseded":
		sf.writeLine(id, Dim("⏭  superseded by a newer request"))
	case "pong":
		sf.writeLine(id, Dim("🏓 pong"))
	}
}

func (sf *StreamFormatter) processResult(id string, cpm gjson.Result) {
	tasks := cpm.Get("tasks.#").Int()
	critical := cpm.Get("tasks.#(critical==true)#").Array()
	finish := cpm.Get("finishDays").Int()
	text := fmt.Sprintf("📊 %d tasks, %d critical, finish day %d", tasks, len(critical), finish)

	if excluded := cpm.Get("excluded"); excluded.IsArray() && len(excluded.Array()) > 0 {
		text += " " + Yellow(fmt.Sprintf("(%d excluded by cycle)", len(excluded.Array())))
	}
	sf.writeLine(id, text)

	cpm.Get("warnings").ForEach(func(_, w gjson.Result) bool {
		sf.writeLine(id, fmt.Sprintf("  %s %s", SeverityIcon(w.Get("sev").String()), w.Get("msg").String()))
		return true
	})
}

func (sf *StreamFormatter) writeLine(id, text string) {
	prefix := ""
	if id != "" {
		prefix = TaskPrefix(id) + " "
	}
	fmt.Fprintf(sf.dest, "  %s%s\n", prefix, text)
}
