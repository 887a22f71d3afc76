package snapshot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/latchko/go-uprising/internal/economy"
	"github.com/latchko/go-uprising/internal/party"
	"github.com/latchko/go-uprising/internal/world"
)

// Version is the current snapshot format version.
const Version = 1

// Header identifies a snapshot stream. It is written as a plain JSON
// line ahead of the compressed body so tooling can peek at it.
type Header struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotV1 is the complete world state: every entity with every
// field, plus the order books and live parties.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Rebels       []world.RebelState  `json:"rebels"`
	Corporations []world.Corporation `json:"corporations"`
	Events       []world.GlobalEvent `json:"events,omitempty"`

	Economy *economy.State `json:"economy,omitempty"`
	Parties []*party.View  `json:"parties,omitempty"`
}

// Capture copies the full world under the store's consistent cut.
func Capture(store *world.Store, econ *economy.Engine, parties *party.Manager) *SnapshotV1 {
	snap := &SnapshotV1{
		Header: Header{Version: Version, CreatedAt: store.Now()},
	}
	snap.Rebels, snap.Corporations, snap.Events = store.Export()
	if econ != nil {
		snap.Economy = econ.Export()
	}
	if parties != nil {
		snap.Parties = parties.Export()
	}
	return snap
}

// Restore replaces the live world with snapshot state.
func Restore(snap *SnapshotV1, store *world.Store, econ *economy.Engine, parties *party.Manager) error {
	if snap.Header.Version != Version {
		return fmt.Errorf("snapshot version %d: %w", snap.Header.Version, world.ErrInvalidState)
	}

	store.Import(snap.Rebels, snap.Corporations, snap.Events)
	if econ != nil {
		st := snap.Economy
		if st == nil {
			st = &economy.State{}
		}
		econ.Import(st)
	}
	if parties != nil {
		parties.Import(snap.Parties)
	}
	return nil
}

// Encode writes a snapshot: a JSON header line followed by a
// zstd-compressed JSON body.
func Encode(w io.Writer, snap *SnapshotV1) error {
	hb, err := json.Marshal(snap.Header)
	if err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}
	if _, err := w.Write(append(hb, '\n')); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("opening compressor: %w", err)
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	if err := json.NewEncoder(bw).Encode(snap); err != nil {
		enc.Close()
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("flushing snapshot: %w", err)
	}
	return enc.Close()
}

// Decode reads a snapshot stream produced by Encode.
func Decode(r io.Reader) (*SnapshotV1, error) {
	br := bufio.NewReaderSize(r, 256*1024)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	var hdr Header
	if err := json.Unmarshal(line, &hdr); err != nil {
		return nil, fmt.Errorf("decoding header: %w", err)
	}
	if hdr.Version != Version {
		return nil, fmt.Errorf("snapshot version %d: %w", hdr.Version, world.ErrInvalidState)
	}

	dec, err := zstd.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("opening decompressor: %w", err)
	}
	defer dec.Close()

	var snap SnapshotV1
	if err := json.NewDecoder(dec).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snap, nil
}

// EncodeBytes renders a snapshot to a byte slice.
func EncodeBytes(snap *SnapshotV1) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeBytes parses a snapshot from a byte slice.
func DecodeBytes(data []byte) (*SnapshotV1, error) {
	return Decode(bytes.NewReader(data))
}

// WriteFile atomically writes a snapshot file.
func WriteFile(path string, snap *SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	if err := Encode(f, snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing snapshot file: %w", err)
	}
	return os.Rename(tmp, path)
}

// ReadFile loads a snapshot file.
func ReadFile(path string) (*SnapshotV1, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
