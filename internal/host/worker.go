package host

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/joshharrison/critpath/internal/project"
)

// maxLineSize bounds a single request line.
const maxLineSize = 16 << 20

// Serve runs a JSON-lines worker over r and w. Each input line is a
// message dispatched on its "type" field:
//
//	{"type":"compute","id":"r1","project":{...}}  -> {"type":"result","id":"r1","cpm":{...}}
//	{"type":"ping","id":"p"}                       -> {"type":"pong","id":"p"}
//
// A line without a type but with a project is treated as a compute
// request. Undecodable lines get a {"type":"error"} reply. A compute
// request replaced before it ran gets {"type":"superseded"}. Serve returns
// after r is exhausted and the last pending request has been answered.
func Serve(ctx context.Context, r io.Reader, w io.Writer, opts ...Option) error {
	out := &lineWriter{enc: json.NewEncoder(w)}

	opts = append(opts, WithOnSuperseded(func(id string) {
		out.write(Response{Type: TypeSuperseded, ID: id})
	}))
	h := New(nil, opts...)

	runErr := make(chan error, 1)
	go func() { runErr <- h.Run(ctx) }()

	written := make(chan struct{})
	go func() {
		defer close(written)
		for resp := range h.Results() {
			out.write(resp)
		}
	}()

	scanErr := scanLines(r, func(line []byte) {
		handleLine(h, out, line)
	})

	h.Close()
	err := <-runErr
	<-written

	if scanErr != nil {
		return fmt.Errorf("read requests: %w", scanErr)
	}
	if err != nil {
		return err
	}
	return out.err
}

func scanLines(r io.Reader, fn func(line []byte)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		fn(line)
	}
	return sc.Err()
}

func handleLine(h *Host, out *lineWriter, line []byte) {
	if !gjson.ValidBytes(line) {
		out.write(Response{Type: TypeError, Error: "invalid JSON message"})
		return
	}
	msg := gjson.ParseBytes(line)
	id := msg.Get("id").String()

	typ := msg.Get("type").String()
	if typ == "" && msg.Get("project").Exists() {
		typ = TypeCompute
	}

	switch typ {
	case TypePing:
		out.write(Response{Type: TypePong, ID: id})
	case TypeCompute:
		raw := msg.Get("project")
		if !raw.IsObject() {
			out.write(Response{Type: TypeError, ID: id, Error: "compute request has no project object"})
			return
		}
		p, err := project.Parse([]byte(raw.Raw), false)
		if err != nil {
			out.write(Response{Type: TypeError, ID: id, Error: err.Error()})
			return
		}
		if _, err := h.Submit(id, p); err != nil {
			out.write(Response{Type: TypeError, ID: id, Error: err.Error()})
		}
	default:
		out.write(Response{Type: TypeError, ID: id, Error: fmt.Sprintf("unknown message type %q", typ)})
	}
}

// lineWriter serializes responses onto the output stream and remembers
// the first write error.
type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

func (lw *lineWriter) write(resp Response) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if lw.err != nil {
		return
	}
	lw.err = lw.enc.Encode(resp)
}
