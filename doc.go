// Package gribdex builds coordinate indexes over cloud-hosted GRIB
// weather archives and resolves coordinate selections into the byte
// ranges that hold the selected messages.
//
// NWP archives such as NOAA's GEFS publish one ".idx" sidecar per GRIB
// file, listing each message's variable, level and byte offset. Reading
// one variable at one level otherwise means downloading whole
// multi-gigabyte files; with an index, it is a handful of ranged GETs.
//
// # Building
//
//	desc, _ := dataset.Load(yamlBytes)
//	store := s3blob.NewStore(client, "noaa-gefs-pds", "")
//	ix, err := gribdex.Build(ctx, store, desc,
//	    gribdex.WithFetchConcurrency(64),
//	    gribdex.WithLogger(gribdex.NewTextLogger(slog.LevelInfo)),
//	)
//
// Build discovers the archive's model runs, detects where the schema
// drifted (members added, variables retired) and ingests every sidecar
// with bounded concurrency. The result is immutable.
//
// # Resolving
//
//	res, err := ix.Resolve(ctx, gribdex.Selection{
//	    Variables: []int{tmpIdx},
//	    Levels:    []int{surfaceIdx},
//	})
//	for path, ranges := range res.Ranges {
//	    // schedule ranged GETs
//	}
//
// Selections name coordinates by index into the published label
// registry. Combinations the archive never held come back in
// res.Missing, not as errors.
//
// # Persistence
//
//	data, _ := ix.Encode()
//	ix2, _ := gribdex.Load(data, desc)
//
// Snapshots are self-describing (codec + compression in the header) and
// can be published atomically through blobstore/s3.Publisher.
package gribdex
