// Package mtx reads sparse adjacency matrices and reads and writes solved
// layout checkpoints.
//
// # Adjacency Input
//
// The raw input is a coordinate-list matrix file:
//
//	% comment lines start with a percent sign
//	4
//	1 2
//	2 3
//	3 3
//
// The first non-comment line holds the dimension N; further tokens on it
// are ignored, so MatrixMarket size lines ("N N nnz") are accepted. Every
// following line holds a 1-based "row col" pair, again ignoring anything
// after the second token. Diagonal entries are counted as self loops and
// dropped. Lines without two integers, or with indices outside [1, N], are
// counted as malformed and skipped. Neither is an error.
//
// Use [ImportAdjacency] to read a file or [ReadAdjacency] to read any
// io.Reader, then hand [Adjacency.Pairs] to graph.Build.
//
// # Similarity Matrices
//
// [ReadSimilarity] builds an adjacency from a dense CSV similarity matrix
// by keeping pairs above a cutoff, and [WriteAdjacency] writes it back out
// as a matrix file.
//
// # Solved Checkpoints
//
// A checkpoint stores only the active nodes and the edges between them:
//
//	3 2
//	0 0 .500 -1.250 .000
//	1 1 1.000 .000 .000
//	2 2 -.250 .750 .000
//	0 1
//	1 2
//
// The header holds the node and edge line counts. Node lines are
// "index id x y z" with coordinates at three decimals and no leading zero,
// edge lines are pairs of node indices from the block above. [WriteSolved]
// produces this format from a graph; [ReadSolved] accepts it with or
// without leading zeros and returns a [Checkpoint], which can rebuild a
// graph with [Checkpoint.Graph].
//
// # JSON
//
// [WriteJSON] and [ReadJSON] carry the same content as a JSON document for
// tools that do not want to parse the line format.
package mtx
