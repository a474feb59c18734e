package cache

// Timeline snapshot queries
const (
	InsertSnapshotRowQuery = `
		INSERT INTO timeline_snapshots (
			channel_id, message_id, created_at, payload, saved_at
		) VALUES (?, ?, ?, ?, ?)
	`

	SelectSnapshotQuery = `
		SELECT payload
		FROM timeline_snapshots
		WHERE channel_id = ?
		ORDER BY created_at ASC
	`

	DeleteSnapshotQuery = `
		DELETE FROM timeline_snapshots
		WHERE channel_id = ?
	`

	DeleteStaleSnapshotsQuery = `
		DELETE FROM timeline_snapshots
		WHERE saved_at < ?
	`
)
