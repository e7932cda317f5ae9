package report

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Serialize converts a metamodel to indented JSON. The same metamodel
// always produces the same bytes.
func Serialize(m *Metamodel) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("metamodel cannot be nil")
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize metamodel: %w", err)
	}
	return data, nil
}

// Deserialize parses JSON produced by Serialize.
func Deserialize(data []byte) (*Metamodel, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("data cannot be empty")
	}
	var m Metamodel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to deserialize metamodel: %w", err)
	}
	return &m, nil
}

// Compress gzips data at the best compression level.
func Compress(data []byte) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("data cannot be nil")
	}
	if len(data) == 0 {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("data cannot be nil")
	}
	if len(data) == 0 {
		return []byte{}, nil
	}

	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress data: %w", err)
	}
	return decompressed, nil
}

// WriteToFile writes the JSON metamodel, creating the directory as needed.
func WriteToFile(m *Metamodel, outputPath string) error {
	data, err := encode(m, outputPath)
	if err != nil {
		return err
	}
	return writeFile(outputPath, data)
}

// WriteCompressedToFile writes the gzipped JSON metamodel.
func WriteCompressedToFile(m *Metamodel, outputPath string) error {
	data, err := encode(m, outputPath)
	if err != nil {
		return err
	}
	compressed, err := Compress(data)
	if err != nil {
		return fmt.Errorf("failed to compress metamodel: %w", err)
	}
	return writeFile(outputPath, compressed)
}

// ReadFile reads a metamodel written by WriteToFile or
// WriteCompressedToFile.
func ReadFile(path string) (*Metamodel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metamodel %s: %w", path, err)
	}
	if len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b {
		if data, err = Decompress(data); err != nil {
			return nil, err
		}
	}
	return Deserialize(data)
}

func encode(m *Metamodel, outputPath string) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("metamodel cannot be nil")
	}
	if outputPath == "" {
		return nil, fmt.Errorf("output path cannot be empty")
	}
	return Serialize(m)
}

func writeFile(outputPath string, data []byte) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metamodel to %s: %w", outputPath, err)
	}
	return nil
}
