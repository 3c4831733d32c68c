package builder

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// envelopeLoadTotal counts envelope loads by result
	envelopeLoadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadnav_envelope_load_total",
		Help: "Envelope loads by result",
	}, []string{"result"})

	// envelopeBytes tracks the size of written envelopes
	envelopeBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quadnav_envelope_bytes",
		Help:    "Size of encoded envelopes in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB to 256MiB
	})
)

const (
	loadResultLoaded   = "loaded"
	loadResultMismatch = "mismatch"
	loadResultError    = "error"
)

// headerSize is the encoded size of FileHeader.
var headerSize = binary.Size(FileHeader{})

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Encode writes the header followed by the zstd-compressed msgpack body.
func Encode(env *Envelope) ([]byte, error) {
	body, err := msgpack.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(body)/2))
	header := FileHeader{
		Magic:   NAVIGATION_FILE_MAGIC,
		Version: NAVIGATION_FILE_VERSION,
		Hash:    env.Hash,
	}
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	buf.Write(zstdEncoder.EncodeAll(body, nil))
	return buf.Bytes(), nil
}

// ReadHeader reads and checks the file header at the start of data.
func ReadHeader(data []byte) (FileHeader, error) {
	return readHeader(bytes.NewReader(data))
}

func readHeader(r io.Reader) (FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return header, fmt.Errorf("failed to read header: %w", err)
	}
	if header.Magic != NAVIGATION_FILE_MAGIC {
		return header, ErrBadMagic
	}
	if header.Version != NAVIGATION_FILE_VERSION {
		return header, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header.Version)
	}
	return header, nil
}

// Decode returns the envelope in data if its hash equals expectedHash.
// A different hash gives (nil, false, nil): the caller should rebuild.
// Malformed data gives a wrapped error.
func Decode(data []byte, expectedHash uint64) (*Envelope, bool, error) {
	header, err := readHeader(bytes.NewReader(data))
	if err != nil {
		return nil, false, err
	}
	if header.Hash != expectedHash {
		return nil, false, nil
	}

	body, err := zstdDecoder.DecodeAll(data[headerSize:], nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decompress envelope: %w", err)
	}

	env := &Envelope{}
	if err := msgpack.Unmarshal(body, env); err != nil {
		return nil, false, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if env.Hash != header.Hash {
		return nil, false, fmt.Errorf("%w: body hash %x, header hash %x", ErrCorrupt, env.Hash, header.Hash)
	}
	return env, true, nil
}

// Save writes env to filename.
func Save(filename string, env *Envelope) error {
	content, err := Encode(env)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, content, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	envelopeBytes.Observe(float64(len(content)))
	return nil
}

// Load reads filename and returns its envelope if the stored hash equals
// expectedHash. A mismatch is not an error: it returns (nil, false, nil).
func Load(filename string, expectedHash uint64) (*Envelope, bool, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		envelopeLoadTotal.WithLabelValues(loadResultError).Inc()
		return nil, false, fmt.Errorf("failed to read file: %w", err)
	}

	env, ok, err := Decode(content, expectedHash)
	switch {
	case err != nil:
		envelopeLoadTotal.WithLabelValues(loadResultError).Inc()
	case !ok:
		envelopeLoadTotal.WithLabelValues(loadResultMismatch).Inc()
	default:
		envelopeLoadTotal.WithLabelValues(loadResultLoaded).Inc()
	}
	return env, ok, err
}

// FileInfo describes a navigation file from its header alone.
type FileInfo struct {
	Filename string    `json:"filename"`
	FileSize int64     `json:"file_size"`
	Version  uint32    `json:"version"`
	Hash     uint64    `json:"hash"`
	ModTime  time.Time `json:"mod_time"`
}

// Info reads the header of filename without decoding the body.
func Info(filename string) (*FileInfo, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	header, err := readHeader(file)
	if err != nil {
		return nil, err
	}

	return &FileInfo{
		Filename: filename,
		FileSize: stat.Size(),
		Version:  header.Version,
		Hash:     header.Hash,
		ModTime:  stat.ModTime(),
	}, nil
}

// BuildAndSave builds b and writes the envelope to filename.
func BuildAndSave(ctx context.Context, b *Builder, filename string) (*Envelope, error) {
	env, err := b.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build navigation data: %w", err)
	}
	if err := Save(filename, env); err != nil {
		return nil, fmt.Errorf("failed to save navigation data: %w", err)
	}
	return env, nil
}

// LoadOrBuild reuses filename when it was built from the same sources as b,
// and otherwise rebuilds and overwrites it. loaded reports which happened.
// Unreadable files are logged and rebuilt.
func LoadOrBuild(ctx context.Context, b *Builder, filename string) (env *Envelope, loaded bool, err error) {
	ctx, span := tracer.Start(ctx, "builder.LoadOrBuild")
	defer span.End()

	hash := b.Hash()
	env, ok, err := Load(filename, hash)
	switch {
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		b.logger.Warn("navigation file unusable, rebuilding",
			slog.String("file", filename),
			slog.String("error", err.Error()),
		)
	case err == nil && !ok:
		b.logger.Info("navigation file is stale, rebuilding",
			slog.String("file", filename),
			slog.String("hash", fmt.Sprintf("%016x", hash)),
		)
	case ok:
		span.SetAttributes(attribute.Bool("loaded", true))
		return env, true, nil
	}

	span.SetAttributes(attribute.Bool("loaded", false))
	env, err = BuildAndSave(ctx, b, filename)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	return env, false, nil
}
