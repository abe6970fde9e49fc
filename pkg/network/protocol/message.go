package protocol

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxMessageSize bounds the content a peer can make us allocate.
const MaxMessageSize = 1 << 20

var ErrMessageTooLarge = errors.New("message too large")

// Message represents a protocol message that includes both size and content.
// The size is encoded as a little-endian uint32 followed by the actual content bytes.
type Message struct {
	// Size is the length of the content in bytes
	Size uint32
	// Content contains the actual message data
	Content []byte
}

// WriteMessageWithContext writes a message to w:
//   - 4 bytes: content size as little-endian uint32
//   - N bytes: content itself
//
// The write can be abandoned via ctx; the writer is left in an unknown state.
func WriteMessageWithContext(ctx context.Context, w io.Writer, content []byte) error {
	if len(content) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(content))
	}
	done := make(chan error, 1)
	go func() {
		size := uint32(len(content))

		// Write size as little-endian uint32
		if err := binary.Write(w, binary.LittleEndian, size); err != nil {
			done <- fmt.Errorf("failed to write message size: %w", err)
			return
		}

		// Write content
		if _, err := w.Write(content); err != nil {
			done <- fmt.Errorf("failed to write message content: %w", err)
			return
		}

		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadMessageWithContext reads a message written by WriteMessageWithContext.
// Sizes above MaxMessageSize are refused before anything is allocated.
func ReadMessageWithContext(ctx context.Context, r io.Reader) (*Message, error) {
	done := make(chan struct {
		msg *Message
		err error
	}, 1)

	go func() {
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			done <- struct {
				msg *Message
				err error
			}{nil, fmt.Errorf("failed to read message size: %w", err)}
			return
		}

		if size > MaxMessageSize {
			done <- struct {
				msg *Message
				err error
			}{nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)}
			return
		}

		content := make([]byte, size)
		if _, err := io.ReadFull(r, content); err != nil {
			done <- struct {
				msg *Message
				err error
			}{nil, fmt.Errorf("failed to read message content: %w", err)}
			return
		}

		done <- struct {
			msg *Message
			err error
		}{&Message{Size: size, Content: content}, nil}
	}()

	select {
	case result := <-done:
		return result.msg, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
