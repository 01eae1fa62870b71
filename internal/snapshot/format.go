package snapshot

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FormatVersion is the current snapshot file version.
const FormatVersion = 1

// MaxDecompressedSize is the maximum allowed size of a decompressed payload (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// Header is the plain-text first line of a snapshot file.
type Header struct {
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	Checksum  string            `json:"checksum"`
	Tick      int64             `json:"tick"`
	Entities  int               `json:"entities"`
	Edges     int               `json:"edges"`
	Cells     int               `json:"cells"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// writeFile writes header line + newline + gzip-compressed payload.
// The header checksum is filled in from the compressed bytes.
func writeFile(path string, header Header, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.DefaultCompression)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gzw.Write(raw); err != nil {
		return fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}

	header.Version = FormatVersion
	header.Checksum = checksum(compressed.Bytes())
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(headerBytes); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write([]byte("\n")); err != nil {
		return fmt.Errorf("writing header newline: %w", err)
	}
	if _, err := f.Write(compressed.Bytes()); err != nil {
		return fmt.Errorf("writing compressed payload: %w", err)
	}
	return f.Close()
}

// openFile parses the header and returns a reader positioned at the payload.
func openFile(path string) (*os.File, *bufio.Reader, *Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening file: %w", err)
	}

	reader := bufio.NewReader(f)
	headerLine, err := reader.ReadBytes('\n')
	if err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("reading header line: %w", err)
	}

	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(headerLine), &header); err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		f.Close()
		return nil, nil, nil, fmt.Errorf("unsupported snapshot version %d", header.Version)
	}
	return f, reader, &header, nil
}

// readPayload verifies the checksum and decompresses the payload into v.
func readPayload(path string, v any) (*Header, error) {
	f, reader, header, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	compressedData, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	if actual := checksum(compressedData); actual != header.Checksum {
		return nil, fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, actual)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressedData))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(decompressed)) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	if err := json.Unmarshal(decompressed, v); err != nil {
		return nil, fmt.Errorf("parsing snapshot data: %w", err)
	}
	return header, nil
}

// ReadHeader reads only the header line of a snapshot file.
func ReadHeader(path string) (*Header, error) {
	f, _, header, err := openFile(path)
	if err != nil {
		return nil, err
	}
	f.Close()
	return header, nil
}

// Verify checks the payload checksum without decompressing.
func Verify(path string) error {
	f, reader, header, err := openFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	compressedData, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("reading compressed payload: %w", err)
	}
	if actual := checksum(compressedData); actual != header.Checksum {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, actual)
	}
	return nil
}
