package memory

import (
	"encoding/json"
	"fmt"
)

// EncodeBuckets marshals each snapshot bucket to JSON, keyed by bucket name.
func EncodeBuckets(snapshot Snapshot) (map[string][]byte, error) {
	targets := snapshot.Buckets()
	out := make(map[string][]byte, len(BucketNames))
	for _, bucket := range BucketNames {
		data, err := json.Marshal(targets[bucket])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// DecodeBucket unmarshals one persisted bucket into snapshot. Unknown
// buckets and empty payloads are ignored.
func DecodeBucket(snapshot *Snapshot, bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	target, ok := snapshot.Buckets()[bucket]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
