// Package wikipack packages an encyclopedia dump for offline use and serves
// it: full-word and partial-word search over article titles, article and
// image retrieval with redirects, and paginated background searches.
//
// # Layout
//
// A library is three immutable artifact directories below one root, each
// closed by a manifest.json written last:
//
//	index/     compindex.key.zst, compindex-NN.ids.zst
//	articles/  00000000.cdp ...
//	images/    00000000.cdi ...   (optional)
//
// The root may be a local directory (memory mapped), an S3 bucket prefix or
// a MinIO bucket; see the blobstore packages.
//
// # Quick Start
//
// Build once:
//
//	linker := wikipack.NewLinker("Anexo", "Categoría")
//	stats, err := wikipack.Build(ctx, blobstore.NewLocalStore("./cdpedia"), wikipack.BuildInput{
//	    Documents: docs,                                   // iter.Seq[model.Document]
//	    Articles:  content.NewFlatDirSource("./preprocessed/articles"),
//	    Redirects: redirects,
//	    Images:    content.NewDirSource("./preprocessed/images"),
//	    Language:  "es",
//	}, wikipack.BuildConfig{})
//
// Serve:
//
//	lib, err := wikipack.OpenLocal(ctx, "./cdpedia")
//	defer lib.Close()
//
//	hits, _ := lib.Search(ctx, []string{"conejo"})
//	page, _ := lib.GetItem(ctx, hits[0].Link)
//
//	id, _ := lib.StartSearch([]string{"conejo", "blanc"})
//	first, _ := lib.GetResults(ctx, id, 0, 20)
//
// Package config opens a library from a YAML file (local, S3 or MinIO
// artifacts), and package metrics/prometheus exports the MetricsCollector
// hooks to Prometheus.
//
// Every not-found flavor (unknown article, redirect loop, unreadable block,
// evicted search session) satisfies errors.Is(err, wikipack.ErrNotFound).
package wikipack
