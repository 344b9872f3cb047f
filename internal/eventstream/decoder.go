// Package eventstream decodes the AWS event-stream framing SelectObjectContent
// responses are carried in: a sequence of CRC-checked binary messages, each
// holding a small header TLV block plus a payload, dispatched on a
// ":message-type"/":event-type" header pair.
package eventstream

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// ErrCRCMismatch is returned when a prelude or whole-message CRC32 check
// fails; the caller should treat this as a fatal decode error and stop.
var ErrCRCMismatch = errors.New("eventstream: crc32 mismatch")

const (
	preludeLen    = 8 // total_length(4) + headers_length(4)
	preludeCRCLen = 4
	messageCRCLen = 4
	minMessageLen = preludeLen + preludeCRCLen + messageCRCLen
)

// Stats carries the <Stats> progress payload SELECT periodically emits.
type Stats struct {
	BytesScanned    int64 `xml:"BytesScanned"`
	BytesProcessed  int64 `xml:"BytesProcessed"`
	BytesReturned   int64 `xml:"BytesReturned"`
}

// EventType distinguishes the dispatch branches a decoded message can take.
type EventType int

const (
	EventRecords EventType = iota
	EventProgress
	EventStats
	EventEnd
	EventCont
)

// Event is what Decode hands to the caller's callback for every Records,
// Progress and Stats message; End, Cont, error and unknown event messages
// are never delivered.
type Event struct {
	Type    EventType
	Records []byte // payload bytes, for EventRecords
	Stats   Stats  // parsed payload, for EventProgress/EventStats
}

// ResultFunc is invoked once per decoded Event; returning false cancels
// further processing (mirrors the GetObject/ListenBucketNotification
// callback-cancellation contract).
type ResultFunc func(Event) bool

// Decode reads framed messages from r until EOF, an End event, an in-band
// error message, or the callback returns false. It returns a non-nil error
// only for decode failures (CRC mismatch, truncated frame) or an in-band
// ":error-code" message from the server.
func Decode(r io.Reader, fn ResultFunc) error {
	br := bufio.NewReader(r)
	for {
		msg, err := readMessage(br)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		headers, err := decodeHeaders(msg.headers)
		if err != nil {
			return err
		}

		messageType := headers[":message-type"]
		switch messageType {
		case "error":
			return fmt.Errorf("eventstream: %s: %s", headers[":error-code"], headers[":error-message"])
		case "event":
			eventType := headers[":event-type"]
			switch eventType {
			case "End":
				return nil
			case "Cont", "":
				continue
			case "Records":
				if !fn(Event{Type: EventRecords, Records: msg.payload}) {
					return nil
				}
			case "Progress":
				stats, perr := parseStats(msg.payload)
				if perr != nil {
					return perr
				}
				if !fn(Event{Type: EventProgress, Stats: stats}) {
					return nil
				}
			case "Stats":
				stats, perr := parseStats(msg.payload)
				if perr != nil {
					return perr
				}
				if !fn(Event{Type: EventStats, Stats: stats}) {
					return nil
				}
			default:
				// Unknown event subtype: ignore and keep reading, matching
				// the forward-compatibility stance the rest of the client
				// takes toward unrecognized XML elements.
				continue
			}
		default:
			continue
		}
	}
}

type rawMessage struct {
	headers []byte
	payload []byte
}

func readMessage(r io.Reader) (rawMessage, error) {
	prelude := make([]byte, preludeLen)
	if _, err := io.ReadFull(r, prelude); err != nil {
		if err == io.ErrUnexpectedEOF {
			return rawMessage{}, fmt.Errorf("eventstream: truncated prelude: %w", err)
		}
		return rawMessage{}, err
	}

	preludeCRC := make([]byte, preludeCRCLen)
	if _, err := io.ReadFull(r, preludeCRC); err != nil {
		return rawMessage{}, fmt.Errorf("eventstream: truncated prelude crc: %w", err)
	}
	if crc32.ChecksumIEEE(prelude) != binary.BigEndian.Uint32(preludeCRC) {
		return rawMessage{}, ErrCRCMismatch
	}

	totalLength := binary.BigEndian.Uint32(prelude[0:4])
	headersLength := binary.BigEndian.Uint32(prelude[4:8])
	if totalLength < uint32(minMessageLen) {
		return rawMessage{}, fmt.Errorf("eventstream: implausible total_length %d", totalLength)
	}

	blockLen := totalLength - preludeLen - preludeCRCLen - messageCRCLen
	block := make([]byte, blockLen)
	if _, err := io.ReadFull(r, block); err != nil {
		return rawMessage{}, fmt.Errorf("eventstream: truncated message body: %w", err)
	}

	messageCRC := make([]byte, messageCRCLen)
	if _, err := io.ReadFull(r, messageCRC); err != nil {
		return rawMessage{}, fmt.Errorf("eventstream: truncated message crc: %w", err)
	}

	checksum := crc32.NewIEEE()
	checksum.Write(prelude)
	checksum.Write(preludeCRC)
	checksum.Write(block)
	if checksum.Sum32() != binary.BigEndian.Uint32(messageCRC) {
		return rawMessage{}, ErrCRCMismatch
	}

	if headersLength > uint32(len(block)) {
		return rawMessage{}, fmt.Errorf("eventstream: headers_length %d exceeds block length %d", headersLength, len(block))
	}
	return rawMessage{headers: block[:headersLength], payload: block[headersLength:]}, nil
}

// decodeHeaders walks the {name_len(1), name(n), type(1)==7 string,
// value_len(2 BE), value(k)} TLV sequence until the block is exhausted.
// Only the string header type (7) appears in SELECT's framing; any other
// type is a decode error since this client never needs to interpret it.
func decodeHeaders(b []byte) (map[string]string, error) {
	headers := make(map[string]string)
	r := bytes.NewReader(b)
	for r.Len() > 0 {
		nameLen, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("eventstream: truncated header name length: %w", err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("eventstream: truncated header name: %w", err)
		}
		headerType, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("eventstream: truncated header type: %w", err)
		}
		if headerType != 7 {
			return nil, fmt.Errorf("eventstream: unsupported header type %d", headerType)
		}
		var valueLen uint16
		if err := binary.Read(r, binary.BigEndian, &valueLen); err != nil {
			return nil, fmt.Errorf("eventstream: truncated header value length: %w", err)
		}
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(r, value); err != nil {
			return nil, fmt.Errorf("eventstream: truncated header value: %w", err)
		}
		headers[string(name)] = string(value)
	}
	return headers, nil
}

type statsEnvelope struct {
	XMLName xml.Name `xml:"Stats"`
	Details Stats    `xml:"Details"`
}

// parseStats handles both the bare <Stats>...</Stats> shape and the
// <Stats><Details>...</Details></Stats> wrapper some server versions emit.
func parseStats(payload []byte) (Stats, error) {
	var wrapped statsEnvelope
	if err := xml.Unmarshal(payload, &wrapped); err == nil && wrapped.Details != (Stats{}) {
		return wrapped.Details, nil
	}
	var flat Stats
	if err := xml.Unmarshal(payload, &flat); err != nil {
		return Stats{}, fmt.Errorf("eventstream: decoding progress/stats payload: %w", err)
	}
	return flat, nil
}
