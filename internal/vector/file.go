package vector

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/hyperjump/kamoku/internal/models"
	"github.com/hyperjump/kamoku/pkg/utils"
)

// Vector file layout, little-endian:
//
//	magic "KVEC" | version u32 | dims u32 | count u32 | fpLen u32 | fingerprint
//	then count*dims float32 values, row i = record index i.
//
// FAISS-backed indexes write the header with no matrix and keep vectors in a
// sidecar .faiss file.
const (
	vectorMagic       = "KVEC"
	vectorFileVersion = 1
	maxFingerprintLen = 256
)

type header struct {
	Dimensions  int
	Count       int
	Fingerprint string
}

func (h header) check(path string, dimensions int, fingerprint string, size int) error {
	switch {
	case h.Dimensions != dimensions:
		return &models.StaleArtifactError{Artifact: path, Reason: fmt.Sprintf("file has %d dimensions, index expects %d", h.Dimensions, dimensions)}
	case h.Fingerprint != fingerprint:
		return &models.StaleArtifactError{Artifact: path, Reason: fmt.Sprintf("corpus fingerprint %s, want %s", h.Fingerprint, fingerprint)}
	case h.Count != size:
		return &models.StaleArtifactError{Artifact: path, Reason: fmt.Sprintf("file has %d records, corpus has %d", h.Count, size)}
	}
	return nil
}

func writeVectorFile(path string, h header, matrix []float32) error {
	err := utils.WriteFileAtomic(path, func(w io.Writer) error {
		if err := writeHeader(w, h); err != nil {
			return err
		}
		buf := make([]byte, 4*h.Dimensions)
		for i := 0; i < len(matrix); i += h.Dimensions {
			float32SliceToBytes(buf, matrix[i:i+h.Dimensions])
			if _, err := w.Write(buf); err != nil {
				return fmt.Errorf("write vector: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}
	return nil
}

func writeHeader(w io.Writer, h header) error {
	if _, err := io.WriteString(w, vectorMagic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	for _, v := range []uint32{vectorFileVersion, uint32(h.Dimensions), uint32(h.Count), uint32(len(h.Fingerprint))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if _, err := io.WriteString(w, h.Fingerprint); err != nil {
		return fmt.Errorf("write fingerprint: %w", err)
	}
	return nil
}

// readVectorFile reads the header, checks it against the expected dimensions,
// fingerprint and size, and, when withMatrix is set, reads the matrix.
func readVectorFile(path string, dimensions int, fingerprint string, size int, withMatrix bool) (header, []float32, error) {
	var h header
	f, err := os.Open(path)
	if err != nil {
		return h, nil, fmt.Errorf("open vector index: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return h, nil, fmt.Errorf("stat vector index: %w", err)
	}
	r := bufio.NewReader(f)

	magic := make([]byte, len(vectorMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != vectorMagic {
		return h, nil, &models.StaleArtifactError{Artifact: path, Reason: "not a vector index file"}
	}
	var fields [4]uint32
	for i := range fields {
		if err := binary.Read(r, binary.LittleEndian, &fields[i]); err != nil {
			return h, nil, fmt.Errorf("read header: %w", err)
		}
	}
	if fields[0] != vectorFileVersion {
		return h, nil, &models.StaleArtifactError{Artifact: path, Reason: fmt.Sprintf("unsupported version %d", fields[0])}
	}
	if fields[3] > maxFingerprintLen {
		return h, nil, &models.StaleArtifactError{Artifact: path, Reason: "corrupt header"}
	}
	fp := make([]byte, fields[3])
	if _, err := io.ReadFull(r, fp); err != nil {
		return h, nil, fmt.Errorf("read fingerprint: %w", err)
	}
	h = header{Dimensions: int(fields[1]), Count: int(fields[2]), Fingerprint: string(fp)}
	if err := h.check(path, dimensions, fingerprint, size); err != nil {
		return h, nil, err
	}
	if !withMatrix {
		return h, nil, nil
	}
	headerLen := int64(len(vectorMagic) + 4*len(fields) + len(fp))
	if want := headerLen + 4*int64(h.Count)*int64(h.Dimensions); info.Size() != want {
		return h, nil, &models.StaleArtifactError{Artifact: path, Reason: fmt.Sprintf("file is %d bytes, header implies %d", info.Size(), want)}
	}

	matrix := make([]float32, h.Count*h.Dimensions)
	buf := make([]byte, 4*h.Dimensions)
	for i := 0; i < h.Count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return h, nil, &models.StaleArtifactError{Artifact: path, Reason: fmt.Sprintf("truncated at record %d", i)}
			}
			return h, nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		bytesToFloat32Slice(matrix[i*h.Dimensions:(i+1)*h.Dimensions], buf)
	}
	return h, matrix, nil
}

func float32SliceToBytes(dst []byte, s []float32) {
	for i, v := range s {
		binary.LittleEndian.PutUint32(dst[i*4:(i+1)*4], math.Float32bits(v))
	}
}

func bytesToFloat32Slice(dst []float32, b []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
}
