// Package isto ("image storage") persists timestamped binary blobs —
// typically camera frames or recorded message batches from an
// industrial vision pipeline — into a two-tier durable store on a local
// filesystem.
//
// Producers append blobs with SaveData as they are generated. Consumers
// later retrieve them by id (GetDataByID), by timestamp comparison
// including nearest-match (GetDataByTimestamp), or as a ranged batch
// (GetDataItems). A rotating tier enforces an aggregate byte budget and
// a free-disk-space floor by evicting the oldest entries; a permanent
// tier holds curated items (for example, those manually labeled)
// indefinitely. MakePermanent and MakeRotating move an item between
// tiers.
//
// A Store is not internally synchronized against concurrent calls from
// multiple goroutines: callers that share a Store across goroutines must
// serialize their calls to it themselves. Only one Store may have a
// given tier directory open at a time; a second Open on the same
// directory fails, because each tier's SQLite index is held open under
// an exclusive transaction for the Store's lifetime, and SQLite refuses
// a second such transaction on the same file.
package isto
