package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
)

const readBufferSize = 32 << 10

// State es el estado del decoder.
type State int

const (
	Reading State = iota
	Draining
	Done
)

func (s State) String() string {
	switch s {
	case Reading:
		return "reading"
	case Draining:
		return "draining"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Handler recibe los deltas en orden. OnDone se llama una sola vez.
type Handler struct {
	OnDelta func(text string)
	OnDone  func()
}

// Decoder convierte bytes de un stream SSE de chat completions en deltas de texto.
// No es seguro para uso concurrente: un decoder pertenece a un único turno.
type Decoder struct {
	buf     []byte
	state   State
	handler Handler

	// waiting marca que la primera línea del buffer falló al parsear y
	// espera más bytes antes de reintentar.
	waiting bool
	skipped int
}

func NewDecoder(h Handler) *Decoder {
	return &Decoder{handler: h}
}

func (d *Decoder) State() State { return d.state }

// Skipped devuelve cuántas líneas malformadas se descartaron.
func (d *Decoder) Skipped() int { return d.skipped }

// Feed agrega un chunk y entrega los deltas de todas las líneas completas.
// Devuelve true cuando el stream terminó.
func (d *Decoder) Feed(chunk []byte) bool {
	if d.state != Reading {
		return d.state == Done
	}
	if len(chunk) == 0 {
		return false
	}
	d.buf = append(d.buf, chunk...)

	for d.state == Reading {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSuffix(d.buf[:idx], []byte{'\r'})

		frame, err := ParseLine(line)
		if err != nil && !d.waiting {
			// La línea queda al frente del buffer con su terminador.
			d.waiting = true
			break
		}
		d.waiting = false
		d.buf = d.buf[idx+1:]
		if err != nil {
			d.skipped++
			continue
		}
		d.apply(frame)
	}
	return d.state == Done
}

// Finish marca el fin de la fuente: procesa lo que quede en el buffer, incluida
// una última línea sin terminador, y pasa a Done. Las líneas que no parsean se descartan.
func (d *Decoder) Finish() {
	if d.state == Done {
		return
	}
	d.state = Draining

	rest := d.buf
	d.buf = nil
	for len(rest) > 0 && d.state == Draining {
		var line []byte
		if idx := bytes.IndexByte(rest, '\n'); idx >= 0 {
			line, rest = rest[:idx], rest[idx+1:]
		} else {
			line, rest = rest, nil
		}
		frame, err := ParseLine(bytes.TrimSuffix(line, []byte{'\r'}))
		if err != nil {
			d.skipped++
			continue
		}
		d.apply(frame)
	}
	d.finish()
}

func (d *Decoder) apply(f Frame) {
	switch f.Kind {
	case FrameDelta:
		if d.handler.OnDelta != nil {
			d.handler.OnDelta(f.Text)
		}
	case FrameDone:
		d.finish()
	}
}

func (d *Decoder) finish() {
	if d.state == Done {
		return
	}
	d.state = Done
	d.buf = nil
	if d.handler.OnDone != nil {
		d.handler.OnDone()
	}
}

// Decode lee r hasta `[DONE]` o EOF entregando deltas a h.
// Un error de lectura corta el stream sin llamar OnDone.
func Decode(ctx context.Context, r io.Reader, h Handler) (*Decoder, error) {
	d := NewDecoder(h)
	buf := make([]byte, readBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return d, err
		}
		n, err := r.Read(buf)
		if n > 0 && d.Feed(buf[:n]) {
			return d, nil
		}
		if errors.Is(err, io.EOF) {
			d.Finish()
			return d, nil
		}
		if err != nil {
			return d, fmt.Errorf("read stream: %w", err)
		}
	}
}

// Deltas expone el stream como una secuencia pull de fragmentos. La secuencia
// consume r, así que no se puede recorrer dos veces.
func Deltas(ctx context.Context, r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var pending []string
		d := NewDecoder(Handler{OnDelta: func(text string) {
			pending = append(pending, text)
		}})
		flush := func() bool {
			for _, text := range pending {
				if !yield(text, nil) {
					return false
				}
			}
			pending = pending[:0]
			return true
		}

		buf := make([]byte, readBufferSize)
		for {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			n, err := r.Read(buf)
			if n > 0 {
				done := d.Feed(buf[:n])
				if !flush() || done {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				d.Finish()
				flush()
				return
			}
			if err != nil {
				yield("", fmt.Errorf("read stream: %w", err))
				return
			}
		}
	}
}
