package stream

import (
	"bytes"
	"encoding/json"
	"errors"

	"docs-chat/internal/domain"
)

const doneToken = "[DONE]"

var dataPrefix = []byte("data:")

// ErrMalformedRecord indica una línea `data:` cuyo payload no es JSON válido.
var ErrMalformedRecord = domain.Wrap(domain.CodeStreamParseSkip, errors.New("malformed stream record"))

// FrameKind clasifica una línea del stream.
type FrameKind int

const (
	// FrameIgnore cubre líneas vacías, comentarios, campos que no son data y records sin texto.
	FrameIgnore FrameKind = iota
	FrameDelta
	FrameDone
)

// Frame es una unidad de protocolo ya interpretada.
type Frame struct {
	Kind FrameKind
	Text string
}

type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ParseLine interpreta una línea sin terminador ni `\r` final.
func ParseLine(line []byte) (Frame, error) {
	if len(line) == 0 || line[0] == ':' {
		return Frame{Kind: FrameIgnore}, nil
	}
	if !bytes.HasPrefix(line, dataPrefix) {
		return Frame{Kind: FrameIgnore}, nil
	}
	payload := line[len(dataPrefix):]
	if len(payload) > 0 && payload[0] == ' ' {
		payload = payload[1:]
	}
	if string(payload) == doneToken {
		return Frame{Kind: FrameDone}, nil
	}

	var chunk completionChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return Frame{}, ErrMalformedRecord
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return Frame{Kind: FrameIgnore}, nil
	}
	return Frame{Kind: FrameDelta, Text: chunk.Choices[0].Delta.Content}, nil
}
