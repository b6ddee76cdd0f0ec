package pmtiles

import (
	"fmt"
	"os"
)

// Cluster rewrites inputPath into outputPath with tile content reordered
// into Hilbert-clustered, contiguous storage, optionally re-running
// deduplication across the whole archive (spec.md's supplemental re-cluster
// operation, grounded on the teacher's original `pmtiles cluster`).
func Cluster(inputPath, outputPath string, dedup bool) (HeaderV3, error) {
	ds, err := OpenFileDataSource(inputPath)
	if err != nil {
		return HeaderV3{}, err
	}
	defer ds.Close()

	headerBytes, err := ds.ReadRange(0, HeaderV3LenBytes)
	if err != nil {
		return HeaderV3{}, err
	}
	header, err := DeserializeHeader(headerBytes)
	if err != nil {
		return HeaderV3{}, err
	}
	if header.Clustered && !dedup {
		return HeaderV3{}, fmt.Errorf("pmtiles: archive %s is already clustered", inputPath)
	}

	metaRaw, err := ds.ReadRange(header.MetadataOffset, header.MetadataLength)
	if err != nil {
		return HeaderV3{}, err
	}

	resolver := NewPrecompressedResolver(header.TileCompression)
	if !dedup {
		resolver.DisableDedup()
	}
	progress := getProgressWriter().NewCountProgress(int64(header.TileEntriesCount), "clustering")
	defer progress.Close()

	tmpfile, err := os.CreateTemp("", "tilekiln-cluster-*")
	if err != nil {
		return HeaderV3{}, err
	}
	defer os.Remove(tmpfile.Name())
	defer tmpfile.Close()

	if err := IterateEntries(header, ds.ReadRange, func(e EntryV3) {
		data, err := ds.ReadRange(header.TileDataOffset+e.Offset, uint64(e.Length))
		if err != nil {
			return
		}
		// entries already compressed on disk; the resolver is configured for
		// the same compression so AddTileIsNew treats these bytes as final.
		for i := uint64(0); i < uint64(e.RunLength); i++ {
			if isNew, out, _ := resolver.AddTileIsNew(e.TileID+i, data); isNew {
				tmpfile.Write(out)
			}
		}
		progress.Add(1)
	}); err != nil {
		return HeaderV3{}, err
	}

	newHeader, err := finalizeArchive(outputPath, resolver, header, tmpfile, metaRaw)
	if err != nil {
		return HeaderV3{}, err
	}
	return newHeader, nil
}

// finalizeArchive assembles header + root + metadata + leaves + tile data
// (already staged in tileData) into outputPath.
func finalizeArchive(outputPath string, resolver *Resolver, template HeaderV3, tileData *os.File, metaRaw []byte) (HeaderV3, error) {
	rootBytes, leavesBytes, _, err := optimizeDirectories(resolver.Entries, rootBudget-HeaderV3LenBytes, template.InternalCompression)
	if err != nil {
		return HeaderV3{}, err
	}

	header := template
	header.RootOffset = HeaderV3LenBytes
	header.RootLength = uint64(len(rootBytes))
	header.MetadataOffset = header.RootOffset + header.RootLength
	header.MetadataLength = uint64(len(metaRaw))
	header.LeafDirectoryOffset = header.MetadataOffset + header.MetadataLength
	header.LeafDirectoryLength = uint64(len(leavesBytes))
	header.TileDataOffset = header.LeafDirectoryOffset + header.LeafDirectoryLength
	tileDataLen, err := tileDataSize(tileData)
	if err != nil {
		return HeaderV3{}, err
	}
	header.TileDataLength = tileDataLen
	header.AddressedTilesCount = resolver.AddressedTiles
	header.TileEntriesCount = uint64(len(resolver.Entries))
	header.TileContentsCount = countDistinctContents(resolver.Entries)
	header.Clustered = true

	out, err := os.Create(outputPath)
	if err != nil {
		return HeaderV3{}, err
	}
	defer out.Close()

	out.Write(SerializeHeader(header))
	out.Write(rootBytes)
	out.Write(metaRaw)
	out.Write(leavesBytes)
	if _, err := tileData.Seek(0, 0); err != nil {
		return HeaderV3{}, err
	}
	buf := make([]byte, 1<<20)
	for {
		n, rerr := tileData.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if rerr != nil {
			break
		}
	}

	return header, nil
}

func tileDataSize(f *os.File) (uint64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}
