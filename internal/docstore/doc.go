// Package docstore persists document entries across independently
// compressed shards.
//
// Document id d lives in shard d mod N. N is picked at build time so each
// shard holds roughly TargetShardSize bytes of encoded entries, which bounds
// the cost of loading one shard no matter how large the corpus grows.
//
// Shard files are named compindex-NN.ids plus the compression extension.
package docstore
