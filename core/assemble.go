package core

import (
	"bytes"
	"fmt"
	"io"

	"github.com/crately/sevenpar/internal/digest"
	"github.com/crately/sevenpar/internal/sevenz"
)

// buildDatabase stages the archive database from terminal jobs, in job
// index order, skipping failed jobs. Zero-length inputs become
// stream-less file entries and contribute no folder.
func (a *Archiver) buildDatabase(jobs []*job) *sevenz.Database {
	db := &sevenz.Database{}
	for _, j := range jobs {
		if !j.succeeded() {
			continue
		}
		var folder sevenz.Folder
		for i, item := range j.items {
			size := j.segSizes[i]
			entry := sevenz.FileEntry{
				Name:          item.Name,
				Size:          size,
				HasStream:     size > 0,
				MTime:         item.ModTime,
				MTimeDefined:  !item.ModTime.IsZero(),
				Attrib:        item.Attributes,
				AttribDefined: item.Attributes != 0,
			}
			if size > 0 {
				entry.CRC = j.segCRCs[i]
				entry.CRCDefined = true
				folder.SubSizes = append(folder.SubSizes, size)
				folder.SubCRCs = append(folder.SubCRCs, j.segCRCs[i])
				folder.SubCRCsDefined = append(folder.SubCRCsDefined, true)
			}
			db.Files = append(db.Files, entry)
		}
		if len(folder.SubSizes) == 0 {
			continue
		}
		chain := a.chainFolder(j.chain, j.read)
		folder.Coders = chain.Coders
		folder.BindPairs = chain.BindPairs
		folder.UnpackSizes = chain.UnpackSizes
		db.Folders = append(db.Folders, folder)
		db.PackSizes = append(db.PackSizes, j.packSize)
	}
	return db
}

// chainFolder describes the coder chain a chain run used, in the decode
// direction: the packed stream feeds the encryption coder (when present),
// whose output feeds the compression coder, whose output is the folder's
// decoded data.
func (a *Archiver) chainFolder(res chainResult, unpacked uint64) sevenz.Folder {
	comp := sevenz.Coder{
		ID:            a.method,
		NumInStreams:  1,
		NumOutStreams: 1,
		Props:         res.props,
	}
	if res.aesProps == nil {
		return sevenz.Folder{
			Coders:      []sevenz.Coder{comp},
			UnpackSizes: []uint64{unpacked},
		}
	}
	crypt := sevenz.Coder{
		ID:            sevenz.MethodAES256,
		NumInStreams:  1,
		NumOutStreams: 1,
		Props:         res.aesProps,
	}
	return sevenz.Folder{
		Coders:      []sevenz.Coder{comp, crypt},
		BindPairs:   []sevenz.BindPair{{InIndex: 0, OutIndex: 1}},
		UnpackSizes: []uint64{unpacked, res.coderSize},
	}
}

// writeArchive serializes the container: because every payload is already
// buffered, the header database and the encoded header are built first,
// so the signature block is emitted complete and the whole archive
// streams to any io.Writer without seeking.
func (a *Archiver) writeArchive(out io.Writer, jobs []*job) error {
	db := a.buildDatabase(jobs)
	headerRaw, err := sevenz.EncodeHeader(db)
	if err != nil {
		return err
	}

	var dataSize uint64
	for _, sz := range db.PackSizes {
		dataSize += sz
	}

	packedHeader, headerFolder, err := a.encodeHeaderStream(headerRaw)
	if err != nil {
		return err
	}
	tail := sevenz.EncodeEncodedHeaderTail(dataSize, uint64(len(packedHeader)), headerFolder)
	sig := sevenz.SignatureBlock(dataSize+uint64(len(packedHeader)), uint64(len(tail)), digest.Sum(tail))

	if _, err := out.Write(sig[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkFailure, err)
	}
	for _, j := range jobs {
		if !j.hasStream() {
			continue
		}
		if _, err := out.Write(j.payload.Bytes()); err != nil {
			return fmt.Errorf("%w: %v", ErrSinkFailure, err)
		}
	}
	if _, err := out.Write(packedHeader); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkFailure, err)
	}
	if _, err := out.Write(tail); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkFailure, err)
	}

	a.log().Debug("archive written",
		"files", len(db.Files),
		"folders", len(db.Folders),
		"packed", dataSize,
		"header", len(headerRaw))
	return nil
}

// encodeHeaderStream compresses the raw header through the configured
// chain, producing the packed header folder the trailing tag stream
// describes.
func (a *Archiver) encodeHeaderStream(header []byte) ([]byte, sevenz.Folder, error) {
	var packed bytes.Buffer
	res, err := a.runChain(&packed, bytes.NewReader(header), uint64(len(header)))
	if err != nil {
		return nil, sevenz.Folder{}, err
	}
	folder := a.chainFolder(res, uint64(len(header)))
	return packed.Bytes(), folder, nil
}
