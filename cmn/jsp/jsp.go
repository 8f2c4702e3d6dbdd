// Package jsp (JSON persistence) saves and loads the JSON documents that
// back the Persistent Store: a header of signature (which carries the format
// version) + body length + xxhash64 checksum, followed by a jsoniter-encoded
// body, written via
// temp-file-then-rename so a reader never observes a partial write.
//
// Modeled on the teacher's cmn/jsp/file.go (NVIDIA/aistore), generalized
// from aistore's own metadata files to dadp's config/policy-mappings/
// endpoints documents.
package jsp

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/OneOfOne/xxhash"
	jsoniter "github.com/json-iterator/go"

	"github.com/daone-dadp/dadp-go/cmn"
)

const (
	signature = "dadpjsp1"
	headerLen = len(signature) + 8 + 8 // signature + uint64 bodyLen + uint64 xxhash
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Save encodes v as JSON and writes it to filepath atomically: encode into
// a temp file in the same directory, fsync+close, then rename over the
// destination. A reader of filepath either sees the whole previous document
// or the whole new one, never a partial write.
func Save(filepath string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return cmn.Wrap(err, "jsp: marshal")
	}
	sum := xxhash.Checksum64(body)

	var hdr bytes.Buffer
	hdr.WriteString(signature)
	_ = binary.Write(&hdr, binary.LittleEndian, uint64(len(body)))
	_ = binary.Write(&hdr, binary.LittleEndian, sum)

	tmp := filepath + ".tmp." + cmn.GenTie()
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return cmn.Wrap(err, "jsp: create temp file")
	}
	if _, err := f.Write(hdr.Bytes()); err != nil {
		f.Close()
		os.Remove(tmp)
		return cmn.Wrap(err, "jsp: write header")
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(tmp)
		return cmn.Wrap(err, "jsp: write body")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return cmn.Wrap(err, "jsp: fsync")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return cmn.Wrap(err, "jsp: close")
	}
	if err := os.Rename(tmp, filepath); err != nil {
		os.Remove(tmp)
		return cmn.Wrap(err, "jsp: rename")
	}
	return nil
}

// ErrBadChecksum is returned by Load when the stored checksum does not
// match the decoded body. The caller (store) treats this as "empty" and
// leaves the stale file in place for human inspection per spec.md §4.1.
var ErrBadChecksum = cmn.ErrPersistence

// Load reads and validates a document written by Save, decoding it into v.
// A missing file returns the plain os.ErrNotExist (callers should treat
// this as "no document yet", not a persistence failure).
func Load(filepath string, v interface{}) error {
	f, err := os.Open(filepath)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr := make([]byte, headerLen)
	if _, err := io.ReadFull(f, hdr); err != nil {
		return cmn.Wrap(ErrBadChecksum, "jsp: truncated header")
	}
	if string(hdr[:len(signature)]) != signature {
		return cmn.Wrap(ErrBadChecksum, "jsp: bad signature")
	}
	bodyLen := binary.LittleEndian.Uint64(hdr[len(signature) : len(signature)+8])
	wantSum := binary.LittleEndian.Uint64(hdr[len(signature)+8:])

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(f, body); err != nil {
		return cmn.Wrap(ErrBadChecksum, "jsp: truncated body")
	}
	if xxhash.Checksum64(body) != wantSum {
		return cmn.Wrap(ErrBadChecksum, "jsp: checksum mismatch")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return cmn.Wrap(err, "jsp: unmarshal")
	}
	return nil
}
