// Package wal implements the write-ahead log: an append-only JSON Lines file
// with one mutation record per line.
//
// Records are tagged by a snake_case "type" field:
//
//	{"type":"create_collection","tenant":"t","name":"docs","dimension":3}
//	{"type":"delete_collection","tenant":"t","name":"docs"}
//	{"type":"upsert_vector","tenant":"t","collection":"docs","id":"a","values":[1,0,0],"metadata":{"k":"v"}}
//	{"type":"delete_vector","tenant":"t","collection":"docs","id":"a"}
//
// Replay tolerates damage: blank lines are skipped and lines that fail to
// decode or validate are reported to a callback and skipped, so one torn
// write cannot hide the records after it.
package wal
