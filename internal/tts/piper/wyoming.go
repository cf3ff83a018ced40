package piper

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// event is one Wyoming protocol message. On the wire:
//
//	<json_length> <payload_length>\n
//	<json_bytes>\n
//	<payload_bytes>   (if payload_length > 0)
type event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Per-event bounds so a misbehaving server cannot make us allocate
// unbounded memory.
const (
	maxJSONLength    = 1 << 20
	maxPayloadLength = 4 << 20
)

func writeEvent(w io.Writer, evt event, payload []byte) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	if _, err := fmt.Fprintf(w, "%d %d\n", len(body), len(payload)); err != nil {
		return err
	}
	if _, err := w.Write(append(body, '\n')); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

func readEvent(r *bufio.Reader) (*event, []byte, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	jsonField, payloadField, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok {
		return nil, nil, fmt.Errorf("invalid wyoming header: %q", line)
	}
	jsonLen, err := strconv.Atoi(jsonField)
	if err != nil || jsonLen < 0 || jsonLen > maxJSONLength {
		return nil, nil, fmt.Errorf("invalid json_length %q", jsonField)
	}
	payloadLen, err := strconv.Atoi(strings.TrimSpace(payloadField))
	if err != nil || payloadLen < 0 || payloadLen > maxPayloadLength {
		return nil, nil, fmt.Errorf("invalid payload_length %q", payloadField)
	}

	// JSON plus the trailing newline.
	buf := make([]byte, jsonLen+1)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, nil, fmt.Errorf("reading json: %w", err)
	}

	var evt event
	if err := json.Unmarshal(buf[:jsonLen], &evt); err != nil {
		return nil, nil, fmt.Errorf("unmarshalling event: %w", err)
	}

	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, fmt.Errorf("reading payload: %w", err)
		}
	}
	return &evt, payload, nil
}
