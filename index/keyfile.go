package index

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/wikipack/internal/compress"
	"github.com/hupe1980/wikipack/internal/similarity"
	"github.com/hupe1980/wikipack/internal/strtable"
)

const (
	keyFileMagic   = "WPIX"
	keyFileVersion = 1
	keyFileBase    = "compindex.key"
)

// KeyFileName returns the key file name for compression t.
func KeyFileName(t compress.Type) string {
	return keyFileBase + t.Ext()
}

// keyFile is the decoded key file: posting i belongs to matrix term i.
type keyFile struct {
	matrix   *similarity.Matrix
	postings *strtable.Table
}

// encode lays out [magic][version][uvarint matrix len][matrix][postings].
func (k *keyFile) encode() ([]byte, error) {
	m, err := k.matrix.MarshalBinary()
	if err != nil {
		return nil, err
	}
	p, err := k.postings.MarshalBinary()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, len(keyFileMagic)+1+binary.MaxVarintLen64+len(m)+len(p))
	buf = append(buf, keyFileMagic...)
	buf = append(buf, keyFileVersion)
	buf = binary.AppendUvarint(buf, uint64(len(m)))
	buf = append(buf, m...)
	return append(buf, p...), nil
}

func decodeKeyFile(data []byte) (*keyFile, error) {
	if len(data) < len(keyFileMagic)+1 || string(data[:len(keyFileMagic)]) != keyFileMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	data = data[len(keyFileMagic):]
	if data[0] != keyFileVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCorrupt, data[0])
	}
	data = data[1:]

	n, k := binary.Uvarint(data)
	if k <= 0 || uint64(len(data)-k) < n {
		return nil, fmt.Errorf("%w: matrix length", ErrCorrupt)
	}

	kf := &keyFile{matrix: &similarity.Matrix{}, postings: strtable.New()}
	if err := kf.matrix.UnmarshalBinary(data[k : k+int(n)]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := kf.postings.UnmarshalBinary(data[k+int(n):]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if kf.postings.Len() != kf.matrix.Len() {
		return nil, fmt.Errorf("%w: %d terms but %d posting lists", ErrCorrupt, kf.matrix.Len(), kf.postings.Len())
	}
	return kf, nil
}
