package services

import (
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

// streamChunkSize is the read size of the chat stream pull loop.
const streamChunkSize = 4096

// ReadTextStream pulls r one chunk at a time and hands each decoded piece to onChunk.
// A multi-byte character split across two reads is held back until it is complete;
// bytes still pending at the end of the stream are flushed with invalid sequences
// replaced by U+FFFD.
func ReadTextStream(r io.Reader, onChunk func(string)) error {
	buf := make([]byte, streamChunkSize)
	var carry []byte

	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			cut := completePrefix(data)
			if cut > 0 {
				onChunk(string(data[:cut]))
			}
			carry = append([]byte(nil), data[cut:]...)
		}
		if errors.Is(err, io.EOF) {
			if len(carry) > 0 {
				onChunk(strings.ToValidUTF8(string(carry), "�"))
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// completePrefix returns the length of the longest prefix of data that does not end
// inside an unfinished UTF-8 sequence.
func completePrefix(data []byte) int {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				return i
			}
			break
		}
	}
	return len(data)
}
