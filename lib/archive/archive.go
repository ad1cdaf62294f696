// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive packs both event collections into one export file
// and reads them back.
//
// An export is the magic line "muster-export/1", one compression tag
// byte, and the compressed CBOR encoding of a [Bundle]. When recipients
// are given the whole file is additionally encrypted with age; Read
// recognizes the age header and needs a matching identity.
package archive

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/muster/lib/codec"
	"github.com/bureau-foundation/muster/lib/eventdb"
	"github.com/bureau-foundation/muster/lib/operation"
	"github.com/bureau-foundation/muster/lib/secret"
)

const (
	magic     = "muster-export/1\n"
	ageHeader = "age-encryption.org/v1"

	// MaxPayload bounds the decompressed bundle size.
	MaxPayload = 256 << 20
)

var (
	// ErrNotAnExport reports input without the export magic.
	ErrNotAnExport = errors.New("not a muster export")

	// ErrEncrypted reports an encrypted export read without identities.
	ErrEncrypted = errors.New("export is encrypted")
)

// Compression selects the payload compression.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses "none", "lz4", or "zstd".
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// CompressionForPath picks the compression from a file name: ".lz4"
// selects lz4, ".json" or no recognized extension selects none, and
// ".zst" selects zstd. A trailing ".age" is ignored.
func CompressionForPath(path string) Compression {
	name := strings.TrimSuffix(filepath.Base(path), ".age")
	switch filepath.Ext(name) {
	case ".lz4":
		return CompressionLZ4
	case ".zst", ".zstd":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// Bundle is the content of an export: both collection documents in
// the persisted JSON format.
type Bundle struct {
	Created  time.Time `cbor:"created"`
	Active   []byte    `cbor:"active"`
	Archived []byte    `cbor:"archived"`
}

// Snapshot captures both collections of database.
func Snapshot(database *eventdb.Database, now time.Time) (Bundle, error) {
	active, err := database.Document(false)
	if err != nil {
		return Bundle{}, err
	}
	archived, err := database.Document(true)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{Created: now.UTC(), Active: active, Archived: archived}, nil
}

// Validate decodes both documents and returns the event counts.
func (b Bundle) Validate(settings *operation.Settings) (active, archived int, err error) {
	_, activeEvents, err := eventdb.DecodeDocument(b.Active, settings)
	if err != nil {
		return 0, 0, fmt.Errorf("archive: active collection: %w", err)
	}
	_, archivedEvents, err := eventdb.DecodeDocument(b.Archived, settings)
	if err != nil {
		return 0, 0, fmt.Errorf("archive: archived collection: %w", err)
	}
	return len(activeEvents), len(archivedEvents), nil
}

// WriteOptions controls Write.
type WriteOptions struct {
	Compression Compression

	// Recipients are age public keys (age1...). Empty leaves the
	// export unencrypted.
	Recipients []string
}

// Write encodes bundle to w.
func Write(w io.Writer, bundle Bundle, options WriteOptions) error {
	payload, err := codec.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("archive: encoding bundle: %w", err)
	}

	var encoded bytes.Buffer
	encoded.WriteString(magic)
	encoded.WriteByte(byte(options.Compression))
	if err := compress(&encoded, payload, options.Compression); err != nil {
		return err
	}

	if len(options.Recipients) == 0 {
		_, err := w.Write(encoded.Bytes())
		return err
	}

	recipients := make([]age.Recipient, 0, len(options.Recipients))
	for _, key := range options.Recipients {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return fmt.Errorf("archive: parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	encryptor, err := age.Encrypt(w, recipients...)
	if err != nil {
		return fmt.Errorf("archive: creating age encryptor: %w", err)
	}
	if _, err := encryptor.Write(encoded.Bytes()); err != nil {
		return fmt.Errorf("archive: encrypting: %w", err)
	}
	if err := encryptor.Close(); err != nil {
		return fmt.Errorf("archive: finalizing encryption: %w", err)
	}
	return nil
}

// Read decodes an export. identities holds age identity file contents
// and may be nil for unencrypted exports. It is borrowed, not closed.
func Read(r io.Reader, identities *secret.Buffer) (Bundle, error) {
	buffered := bufio.NewReader(r)
	header, _ := buffered.Peek(len(ageHeader))
	var source io.Reader = buffered
	if string(header) == ageHeader {
		if identities == nil {
			return Bundle{}, ErrEncrypted
		}
		parsed, err := age.ParseIdentities(bytes.NewReader(identities.Bytes()))
		if err != nil {
			return Bundle{}, fmt.Errorf("archive: parsing identities: %w", err)
		}
		decrypted, err := age.Decrypt(buffered, parsed...)
		if err != nil {
			return Bundle{}, fmt.Errorf("archive: decrypting: %w", err)
		}
		source = decrypted
	}

	prefix := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(source, prefix); err != nil {
		return Bundle{}, fmt.Errorf("archive: reading header: %w", ErrNotAnExport)
	}
	if string(prefix[:len(magic)]) != magic {
		return Bundle{}, ErrNotAnExport
	}

	payload, err := decompress(source, Compression(prefix[len(magic)]))
	if err != nil {
		return Bundle{}, err
	}
	var bundle Bundle
	if err := codec.Unmarshal(payload, &bundle); err != nil {
		return Bundle{}, fmt.Errorf("archive: decoding bundle: %w", err)
	}
	return bundle, nil
}

func compress(w io.Writer, payload []byte, compression Compression) error {
	switch compression {
	case CompressionNone:
		_, err := w.Write(payload)
		return err
	case CompressionLZ4:
		writer := lz4.NewWriter(w)
		if _, err := writer.Write(payload); err != nil {
			return fmt.Errorf("archive: lz4: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("archive: lz4: %w", err)
		}
		return nil
	case CompressionZstd:
		writer, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return fmt.Errorf("archive: zstd: %w", err)
		}
		if _, err := writer.Write(payload); err != nil {
			writer.Close()
			return fmt.Errorf("archive: zstd: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("archive: zstd: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("archive: unsupported compression %s", compression)
	}
}

func decompress(r io.Reader, compression Compression) ([]byte, error) {
	var source io.Reader
	switch compression {
	case CompressionNone:
		source = r
	case CompressionLZ4:
		source = lz4.NewReader(r)
	case CompressionZstd:
		decoder, err := zstd.NewReader(r, zstd.WithDecoderMaxMemory(MaxPayload))
		if err != nil {
			return nil, fmt.Errorf("archive: zstd: %w", err)
		}
		defer decoder.Close()
		source = decoder
	default:
		return nil, fmt.Errorf("archive: unsupported compression %s", compression)
	}

	payload, err := io.ReadAll(io.LimitReader(source, MaxPayload+1))
	if err != nil {
		return nil, fmt.Errorf("archive: decompressing %s payload: %w", compression, err)
	}
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("archive: payload exceeds %d bytes", MaxPayload)
	}
	return payload, nil
}
